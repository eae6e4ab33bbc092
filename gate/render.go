package gate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"failsight/analysis"
	"failsight/failure"
)

//go:embed templates/*.html
var templateFS embed.FS

var errorPage = template.Must(template.ParseFS(templateFS, "templates/error.html"))

// StatusText returns the reason phrase shown on the error page.
func StatusText(code int) string {
	switch code {
	case 400:
		return "Bad Request"
	case 401:
		return "Unauthorized"
	case 403:
		return "Forbidden"
	case 404:
		return "Not Found"
	case 405:
		return "Method Not Allowed"
	case 500:
		return "Internal Server Error"
	case 502:
		return "Bad Gateway"
	case 503:
		return "Service Unavailable"
	default:
		return "Error"
	}
}

// jsonBody is the structured representation. Field order is part of the
// output.
type jsonBody struct {
	ErrorID          string   `json:"error_id"`
	EnglishException string   `json:"english_exception"`
	ProbableCauses   []string `json:"probable_causes"`
	SuggestedFixes   []string `json:"suggested_fixes"`
	Confidence       float64  `json:"confidence"`
}

// JSONResponse builds the structured replacement response.
func JSONResponse(a *analysis.Analysis, errorID string, status int) (*Response, error) {
	body, err := json.Marshal(jsonBody{
		ErrorID:          errorID,
		EnglishException: a.EnglishExplanation(),
		ProbableCauses:   a.ProbableCauses(),
		SuggestedFixes:   a.SuggestedFixes(),
		Confidence:       a.Confidence(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode json response: %w", err)
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Response{Status: status, Header: h, Body: body}, nil
}

type pageData struct {
	ErrorID          string
	StatusCode       int
	StatusText       string
	FailureType      string
	FailureMessage   string
	EnglishException string
	ProbableCauses   []string
	SuggestedFixes   []string
	ConfidencePct    int
	Trace            []TraceFrame
}

// HTMLResponse renders the error page. The trace section is only filled
// when includeTrace is set.
func HTMLResponse(a *analysis.Analysis, f failure.Failure, errorID string, status int, includeTrace bool) (*Response, error) {
	data := pageData{
		ErrorID:          errorID,
		StatusCode:       status,
		StatusText:       StatusText(status),
		FailureType:      f.Type,
		FailureMessage:   f.Message,
		EnglishException: a.EnglishExplanation(),
		ProbableCauses:   a.ProbableCauses(),
		SuggestedFixes:   a.SuggestedFixes(),
		ConfidencePct:    int(a.Confidence()*100 + 0.5),
	}
	if includeTrace {
		data.Trace = FormatTrace(f.Frames, true)
	}

	var buf bytes.Buffer
	if err := errorPage.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render error page: %w", err)
	}
	h := http.Header{}
	h.Set("Content-Type", "text/html; charset=UTF-8")
	return &Response{Status: status, Header: h, Body: buf.Bytes()}, nil
}
