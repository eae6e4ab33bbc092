// Package analysis turns a failure into a validated, cacheable explanation
// produced by an external agent.
//
// The pipeline is fingerprint → cache read → agent call → validation →
// cache write. Every step that touches the outside world is bounded and
// absorbs its own errors, so Analyzer.Analyze only ever returns an
// explanation or nil.
package analysis

import (
	"encoding/json"
	"errors"
	"slices"
)

// Sentinel errors returned by Client.Call. They classify why no analysis was
// produced and are only used for logging and metrics.
var (
	ErrTimeout           = errors.New("agent call timed out")
	ErrAgent             = errors.New("agent call failed")
	ErrEmptyResponse     = errors.New("agent returned an empty response")
	ErrMalformedResponse = errors.New("agent response is not a JSON object")
	ErrInvalidAnalysis   = errors.New("agent response failed validation")
)

// Analysis is a validated explanation of a failure. The zero value is not
// meaningful; instances are only produced by Validate, so every Analysis has
// a non-blank explanation and a confidence within [0, 1].
type Analysis struct {
	englishExplanation string
	probableCauses     []string
	suggestedFixes     []string
	confidence         float64
	safeLogSummary     string
}

// record is the wire and cache form of an Analysis.
type record struct {
	EnglishException string   `json:"english_exception"`
	ProbableCauses   []string `json:"probable_causes"`
	SuggestedFixes   []string `json:"suggested_fixes"`
	Confidence       float64  `json:"confidence"`
	SafeLogSummary   string   `json:"safe_log_summary"`
}

func (a *Analysis) EnglishExplanation() string { return a.englishExplanation }
func (a *Analysis) ProbableCauses() []string   { return slices.Clone(a.probableCauses) }
func (a *Analysis) SuggestedFixes() []string   { return slices.Clone(a.suggestedFixes) }
func (a *Analysis) Confidence() float64        { return a.confidence }
func (a *Analysis) SafeLogSummary() string     { return a.safeLogSummary }

// MarshalJSON encodes the analysis in its record form. Feeding the decoded
// record back through Validate yields an equal Analysis.
func (a *Analysis) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toRecord())
}

// Record returns the analysis as a generic map, the shape Validate accepts.
func (a *Analysis) Record() map[string]any {
	return map[string]any{
		"english_exception": a.englishExplanation,
		"probable_causes":   stringsToAny(a.probableCauses),
		"suggested_fixes":   stringsToAny(a.suggestedFixes),
		"confidence":        a.confidence,
		"safe_log_summary":  a.safeLogSummary,
	}
}

func (a *Analysis) toRecord() record {
	r := record{
		EnglishException: a.englishExplanation,
		ProbableCauses:   a.probableCauses,
		SuggestedFixes:   a.suggestedFixes,
		Confidence:       a.confidence,
		SafeLogSummary:   a.safeLogSummary,
	}
	if r.ProbableCauses == nil {
		r.ProbableCauses = []string{}
	}
	if r.SuggestedFixes == nil {
		r.SuggestedFixes = []string{}
	}
	return r
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
