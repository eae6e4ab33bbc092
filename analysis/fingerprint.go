package analysis

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"failsight/failure"
)

// FingerprintPrefix namespaces fingerprints inside a shared cache backend.
const FingerprintPrefix = "failsight_"

// TraceFingerprintLines is how many leading trace lines take part in the
// fingerprint when trace inclusion is enabled.
const TraceFingerprintLines = 10

// Fingerprint derives the cache key for a failure. A nil trace means trace
// inclusion is disabled; otherwise only the first TraceFingerprintLines
// lines are hashed, so deep stacks that differ only far from the failure
// site share a key.
func Fingerprint(failureType, message string, trace []string) string {
	d := xxhash.New()
	d.WriteString(failureType)
	d.WriteString("\x00")
	d.WriteString(message)
	if trace != nil {
		if len(trace) > TraceFingerprintLines {
			trace = trace[:TraceFingerprintLines]
		}
		d.WriteString("\x00")
		d.WriteString(hexSum(strings.Join(trace, "\n")))
	}
	return FingerprintPrefix + formatSum(d.Sum64())
}

// FingerprintFailure fingerprints f, including its trace when includeTrace
// is set.
func FingerprintFailure(f failure.Failure, includeTrace bool) string {
	var trace []string
	if includeTrace {
		trace = f.TraceLines()
	}
	return Fingerprint(f.Type, f.Message, trace)
}

func hexSum(s string) string {
	return formatSum(xxhash.Sum64String(s))
}

func formatSum(sum uint64) string {
	s := strconv.FormatUint(sum, 16)
	if len(s) < 16 {
		s = strings.Repeat("0", 16-len(s)) + s
	}
	return s
}
