package analysis

import (
	"regexp"
	"strconv"
	"strings"

	"failsight/failure"
)

// SystemPrompt instructs the agent on the output contract.
const SystemPrompt = `You are an error analysis assistant. Return ONLY valid JSON. No markdown, no prose, no code blocks.
Never include secrets or sensitive data. Use probabilistic language (e.g. "may", "might", "possibly").
These are hypotheses, not guarantees.

JSON schema:
{
  "english_exception": "string - clear human-readable explanation of the error",
  "probable_causes": ["string", "..."],
  "suggested_fixes": ["string", "..."],
  "confidence": 0.0-1.0,
  "safe_log_summary": "string - brief summary safe for logs, no secrets"
}`

// BuildUserMessage describes the failure to the agent. The full trace is
// only sent when includeTrace is set.
func BuildUserMessage(f failure.Failure, includeTrace bool) string {
	var sb strings.Builder
	sb.WriteString("Exception: " + f.Type + "\n")
	sb.WriteString("Message: " + f.Message + "\n")
	sb.WriteString("File: " + f.File + "\n")
	sb.WriteString("Line: " + strconv.Itoa(f.Line))
	if includeTrace {
		sb.WriteString("\nTrace:\n")
		sb.WriteString(f.TraceString())
	}
	return sb.String()
}

var (
	reFenceOpen  = regexp.MustCompile("^```\\w*\\s*")
	reFenceClose = regexp.MustCompile("\\s*```\\s*$")
)

// StripFences removes a leading ```lang marker and a trailing ``` marker
// from agent output. Text that does not start with a fence is only trimmed.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = reFenceOpen.ReplaceAllString(s, "")
		s = reFenceClose.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}
