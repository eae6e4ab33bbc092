package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"failsight/agent"
	"failsight/failure"
)

// Client performs one bounded call to the analysis agent and turns its
// output into a validated Analysis.
type Client struct {
	agent        agent.Agent
	timeout      time.Duration
	includeTrace bool
}

// NewClient creates a client for a. A non-positive timeout falls back to
// DefaultTimeout.
func NewClient(a agent.Agent, timeout time.Duration, includeTrace bool) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{agent: a, timeout: timeout, includeTrace: includeTrace}
}

type callResult struct {
	text string
	err  error
}

// Call asks the agent to explain f. The whole exchange is bounded by the
// client's timeout, measured from the start of the call. There are no
// retries: any error means no analysis is available for this failure.
func (c *Client) Call(ctx context.Context, f failure.Failure) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := agent.Messages{
		System: SystemPrompt,
		User:   BuildUserMessage(f, c.includeTrace),
	}

	// Buffered so the goroutine can always finish, even after the caller
	// gave up waiting.
	done := make(chan callResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callResult{err: fmt.Errorf("agent panic: %v", r)}
			}
		}()
		text, err := c.agent.Call(ctx, msgs)
		done <- callResult{text: text, err: err}
	}()

	var res callResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, c.contextError(ctx.Err(), nil)
	}

	if res.err != nil {
		if ctx.Err() != nil {
			return nil, c.contextError(ctx.Err(), res.err)
		}
		return nil, fmt.Errorf("%w: %v", ErrAgent, res.err)
	}
	return Parse(res.text)
}

// contextError classifies a call that ended with ctx done. Only an expired
// deadline is a timeout; a caller that cancelled is reported as an agent
// failure.
func (c *Client) contextError(ctxErr, agentErr error) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		if agentErr != nil {
			return fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, agentErr)
		}
		return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("%w: %w", ErrAgent, ctxErr)
}

// Parse converts raw agent output into an Analysis.
func Parse(text string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	var decoded any
	if err := json.Unmarshal([]byte(StripFences(text)), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	rec, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: got %T", ErrMalformedResponse, decoded)
	}

	a, ok := Validate(rec)
	if !ok {
		return nil, ErrInvalidAnalysis
	}
	return a, nil
}
