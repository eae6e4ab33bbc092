package agent

// streamMessage is a single line of Amp's --stream-json NDJSON output.
// Only the fields needed to extract the final answer are decoded.
type streamMessage struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	// result fields
	IsError    bool   `json:"is_error,omitempty"`
	Result     string `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	NumTurns   int    `json:"num_turns,omitempty"`
}
