package analysis

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Validate builds an Analysis from an untrusted record, typically the
// decoded output of the agent or a cached entry. It never fails loudly:
// the second return value is false when the record cannot be salvaged,
// which only happens when english_exception is missing or blank.
//
// Lenient coercions:
//   - list fields keep their order; every element is rendered as a string
//     and blank elements are dropped; a non-list becomes an empty list
//   - confidence accepts numbers and numeric strings and is clamped into
//     [0, 1]; anything else is 0
//   - a missing or blank safe_log_summary falls back to english_exception
func Validate(rec map[string]any) (*Analysis, bool) {
	english, ok := rec["english_exception"].(string)
	if !ok || strings.TrimSpace(english) == "" {
		return nil, false
	}

	a := &Analysis{
		englishExplanation: english,
		probableCauses:     stringList(rec["probable_causes"]),
		suggestedFixes:     stringList(rec["suggested_fixes"]),
		confidence:         confidence(rec["confidence"]),
		safeLogSummary:     english,
	}
	if s, ok := rec["safe_log_summary"].(string); ok && strings.TrimSpace(s) != "" {
		a.safeLogSummary = s
	}
	return a, true
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := stringify(item)
		if strings.TrimSpace(s) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func confidence(v any) float64 {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		n, err := val.Float64()
		if err != nil {
			return 0
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		f = n
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(1, f))
}
