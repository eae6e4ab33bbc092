package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAI calls the chat completions API of OpenAI or of any compatible
// endpoint.
type OpenAI struct {
	client    openai.Client
	model     string
	maxTokens int64
}

// NewOpenAI creates an OpenAI agent. baseURL points at the API root
// (".../v1"); empty means api.openai.com. As with Anthropic, the SDK's own
// retries are disabled.
func NewOpenAI(apiKey, model, baseURL string, maxTokens int64) *OpenAI {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OpenAI{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (o *OpenAI) Call(ctx context.Context, msgs Messages) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if msgs.System != "" {
		messages = append(messages, openai.SystemMessage(msgs.System))
	}
	messages = append(messages, openai.UserMessage(msgs.User))

	params := openai.ChatCompletionNewParams{
		Model:     o.model,
		Messages:  messages,
		MaxTokens: openai.Int(o.maxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai")
	}
	return completion.Choices[0].Message.Content, nil
}
