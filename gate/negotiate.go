package gate

import (
	"strings"

	"github.com/munnerz/goautoneg"
)

// WantsJSON reports whether an Accept header asks for a JSON body rather
// than an HTML page. JSON must be named explicitly (application/json or a
// +json type) and must not rank below text/html; wildcards alone select HTML.
func WantsJSON(accept string) bool {
	if accept == "" {
		return false
	}
	jsonQ, htmlQ := -1.0, -1.0
	for _, c := range goautoneg.ParseAccept(accept) {
		switch {
		case c.Type == "application" && (c.SubType == "json" || strings.HasSuffix(c.SubType, "+json")):
			jsonQ = max(jsonQ, c.Q)
		case c.Type == "text" && c.SubType == "html":
			htmlQ = max(htmlQ, c.Q)
		}
	}
	return jsonQ > 0 && jsonQ >= htmlQ
}
