package gate

import (
	"fmt"
	"net/http"
)

// Config is the immutable runtime configuration of a Gate.
type Config struct {
	Enabled         bool
	OnlyStatusCodes []int // statuses that are worth explaining, default [500]
	IncludeTrace    bool  // show the formatted trace in the HTML page

	// NewErrorID, when set, labels augmented responses instead of the
	// random hex identifier. An empty result falls back to hex.
	NewErrorID func(r *http.Request) string
}

// DefaultConfig returns a disabled gate that would only explain 500s.
func DefaultConfig() Config {
	return Config{OnlyStatusCodes: []int{http.StatusInternalServerError}}
}

// Validate checks the status allow-list.
func (c Config) Validate() error {
	for _, code := range c.OnlyStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("status code %d out of range [100,599]", code)
		}
	}
	return nil
}
