// Package gate decides, per failure event, whether to ask for an analysis
// and turns an analysis into a replacement error response. It is the only
// part of the pipeline that sees HTTP.
package gate

import (
	"context"
	"fmt"
	"net/http"

	"failsight/analysis"
	"failsight/failure"
	"failsight/logger"
)

// Analyzer produces an explanation for a failure, or nil.
// *analysis.Analyzer is the production implementation.
type Analyzer interface {
	Analyze(ctx context.Context, f failure.Failure) *analysis.Analysis
}

// Gate is the invocation gate. It is safe for concurrent use.
type Gate struct {
	enabled      bool
	allowed      map[int]bool
	includeTrace bool
	newErrorID   func(*http.Request) string
	analyzer     Analyzer
	log          logger.Logger
}

// New creates a gate. cfg is copied; later changes to it have no effect.
func New(cfg Config, an Analyzer, log logger.Logger) *Gate {
	if log == nil {
		log = logger.Nop()
	}
	allowed := make(map[int]bool, len(cfg.OnlyStatusCodes))
	for _, code := range cfg.OnlyStatusCodes {
		allowed[code] = true
	}
	return &Gate{
		enabled:      cfg.Enabled,
		allowed:      allowed,
		includeTrace: cfg.IncludeTrace,
		newErrorID:   cfg.NewErrorID,
		analyzer:     an,
		log:          log,
	}
}

// OnFailure handles one failure event. When an analysis is available it
// sets a replacement response on ev at the failure's original status;
// otherwise ev is left untouched and default error handling applies.
// OnFailure never panics.
func (g *Gate) OnFailure(ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("gate.panic", logger.String("panic", fmt.Sprint(r)))
		}
	}()

	if !g.enabled || ev == nil {
		return
	}

	err := ev.Err
	if err == nil {
		err = ev.Failure.Err()
	}
	status := failure.StatusCode(err)
	if !g.allowed[status] {
		return
	}

	a := g.analyze(ev)
	if a == nil {
		return
	}

	errorID := g.errorID(ev.Request)
	wantsJSON := ev.Request != nil && WantsJSON(ev.Request.Header.Get("Accept"))

	var (
		resp     *Response
		buildErr error
	)
	if wantsJSON {
		resp, buildErr = JSONResponse(a, errorID, status)
	} else {
		resp, buildErr = HTMLResponse(a, ev.Failure, errorID, status, g.includeTrace)
	}
	if buildErr != nil {
		g.log.Warn("gate.render_failed", logger.String("error_id", errorID), logger.Err(buildErr))
		return
	}

	ev.SetResponse(resp)
	g.log.Info("gate.replaced",
		logger.String("error_id", errorID),
		logger.Int("status", status),
		logger.Bool("json", wantsJSON),
	)
}

// analyze calls the analyzer, treating a panic as "no analysis".
func (g *Gate) analyze(ev *Event) (a *analysis.Analysis) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("gate.analyzer_panic", logger.String("panic", fmt.Sprint(r)))
			a = nil
		}
	}()
	if g.analyzer == nil {
		return nil
	}
	ctx := context.Background()
	if ev.Request != nil {
		ctx = ev.Request.Context()
	}
	return g.analyzer.Analyze(ctx, ev.Failure)
}

// errorID returns a fresh identifier. A custom generator that returns an
// empty string or panics yields a hex identifier instead.
func (g *Gate) errorID(r *http.Request) (id string) {
	if g.newErrorID == nil {
		return HexErrorID()
	}
	defer func() {
		if rec := recover(); rec != nil || id == "" {
			id = HexErrorID()
		}
	}()
	return g.newErrorID(r)
}
