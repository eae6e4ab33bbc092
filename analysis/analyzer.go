package analysis

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"failsight/agent"
	"failsight/failure"
	"failsight/logger"
	"failsight/store"
)

// Caller produces an analysis for a failure. *Client is the production
// implementation.
type Caller interface {
	Call(ctx context.Context, f failure.Failure) (*Analysis, error)
}

// Options carries the optional collaborators of an Analyzer.
type Options struct {
	Log     logger.Logger // defaults to logger.Nop()
	Metrics *Metrics      // nil disables metrics
	Tracer  trace.Tracer  // defaults to the global otel tracer
}

// Analyzer orchestrates the pipeline:
// fingerprint → cache read → agent call → validation → cache write.
type Analyzer struct {
	caller       Caller
	cache        *ResultCache
	includeTrace bool
	log          logger.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

// New wires an Analyzer over an agent and a cache backend. s may be nil,
// which disables caching just like a zero CacheTTL.
func New(a agent.Agent, s store.Store, cfg Config, opts Options) *Analyzer {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	client := NewClient(a, cfg.Timeout, cfg.IncludeTrace)
	cache := NewResultCache(s, cfg.CacheTTL, log)
	return NewAnalyzer(client, cache, cfg.IncludeTrace, opts)
}

// NewAnalyzer creates an Analyzer from an already built caller and cache.
func NewAnalyzer(c Caller, cache *ResultCache, includeTrace bool, opts Options) *Analyzer {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("failsight/analysis")
	}
	if cache == nil {
		cache = NewResultCache(nil, 0, opts.Log)
	}
	return &Analyzer{
		caller:       c,
		cache:        cache,
		includeTrace: includeTrace,
		log:          opts.Log,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
	}
}

// Analyze returns an explanation of f, or nil when none can be produced.
// It never panics and never returns an error: agent failures, malformed
// output and cache problems all collapse into nil.
func (a *Analyzer) Analyze(ctx context.Context, f failure.Failure) (result *Analysis) {
	ctx, span := a.tracer.Start(ctx, "analysis.Analyze",
		trace.WithAttributes(attribute.String("failure.type", f.Type)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("analysis.panic", logger.String("panic", fmt.Sprint(r)))
			span.SetStatus(codes.Error, "panic")
			a.countRequest(OutcomePanic)
			result = nil
		}
	}()

	fingerprint := a.Fingerprint(f)
	span.SetAttributes(attribute.String("analysis.fingerprint", fingerprint))
	log := a.log.WithFields(logger.String("fingerprint", fingerprint))

	if a.cache.Enabled() {
		if cached, ok := a.cache.Get(ctx, fingerprint); ok {
			a.countCache("hit")
			a.countRequest(OutcomeCacheHit)
			span.SetAttributes(attribute.Bool("analysis.cache_hit", true))
			log.Debug("analysis.cache_hit")
			return cached
		}
		a.countCache("miss")
	}

	start := time.Now()
	res, err := a.caller.Call(ctx, f)
	elapsed := time.Since(start)
	a.observeAgent(err, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, agentResult(err))
		a.countRequest(OutcomeAbsent)
		log.Warn("analysis.agent_failed",
			logger.String("failure_type", f.Type),
			logger.Duration("duration", elapsed),
			logger.Err(err),
		)
		return nil
	}
	if res == nil {
		a.countRequest(OutcomeAbsent)
		return nil
	}

	a.cache.Put(ctx, fingerprint, res)
	a.countRequest(OutcomeAnalyzed)
	log.Info("analysis.completed",
		logger.String("failure_type", f.Type),
		logger.Duration("duration", elapsed),
	)
	return res
}

// Fingerprint returns the cache key Analyze uses for f.
func (a *Analyzer) Fingerprint(f failure.Failure) string {
	return FingerprintFailure(f, a.includeTrace)
}

// Forget drops the cached analysis for fingerprint so the next matching
// failure is sent to the agent again.
func (a *Analyzer) Forget(ctx context.Context, fingerprint string) error {
	return a.cache.Invalidate(ctx, fingerprint)
}

func (a *Analyzer) countRequest(outcome string) {
	if a.metrics != nil {
		a.metrics.Requests.WithLabelValues(outcome).Inc()
	}
}

func (a *Analyzer) countCache(result string) {
	if a.metrics != nil {
		a.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (a *Analyzer) observeAgent(err error, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}
	a.metrics.AgentCalls.WithLabelValues(agentResult(err)).Inc()
	a.metrics.AgentLatency.Observe(elapsed.Seconds())
}
