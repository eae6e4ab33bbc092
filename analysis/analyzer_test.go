package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"failsight/agent"
	"failsight/failure"
	"failsight/logger"
)

// countingAgent returns text and counts its calls.
type countingAgent struct {
	text  string
	err   error
	calls atomic.Int32
}

func (c *countingAgent) Call(context.Context, agent.Messages) (string, error) {
	c.calls.Add(1)
	return c.text, c.err
}

func newTestAnalyzer(a agent.Agent, s *recordingStore, ttl time.Duration) (*Analyzer, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	cfg := Config{Timeout: time.Second, CacheTTL: ttl}
	return New(a, s, cfg, Options{Log: logger.Nop(), Metrics: m}), m
}

func TestAnalyzer_MissCallsAgentAndCaches(t *testing.T) {
	ag := &countingAgent{text: validJSON}
	s := newRecordingStore()
	an, m := newTestAnalyzer(ag, s, time.Minute)
	f := testFailure()

	first := an.Analyze(context.Background(), f)
	if first == nil {
		t.Fatal("expected an analysis")
	}
	second := an.Analyze(context.Background(), f)
	if second == nil {
		t.Fatal("expected a cached analysis")
	}

	if n := ag.calls.Load(); n != 1 {
		t.Errorf("agent called %d times, want 1", n)
	}
	if second.EnglishExplanation() != first.EnglishExplanation() {
		t.Errorf("cached explanation %q differs from %q", second.EnglishExplanation(), first.EnglishExplanation())
	}
	if _, ok := s.data[FingerprintFailure(f, false)]; !ok {
		t.Error("analysis not stored under the failure fingerprint")
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeAnalyzed)); got != 1 {
		t.Errorf("analyzed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeCacheHit)); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("cache misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AgentCalls.WithLabelValues("ok")); got != 1 {
		t.Errorf("agent ok = %v, want 1", got)
	}
}

func TestAnalyzer_ZeroTTLSkipsCache(t *testing.T) {
	ag := &countingAgent{text: validJSON}
	s := newRecordingStore()
	an, m := newTestAnalyzer(ag, s, 0)

	for i := 0; i < 3; i++ {
		if an.Analyze(context.Background(), testFailure()) == nil {
			t.Fatal("expected an analysis")
		}
	}
	if gets, sets := s.calls(); gets != 0 || sets != 0 {
		t.Errorf("store saw %d gets and %d sets, want none", gets, sets)
	}
	if n := ag.calls.Load(); n != 3 {
		t.Errorf("agent called %d times, want 3", n)
	}
	if got := testutil.CollectAndCount(m.CacheLookups); got != 0 {
		t.Errorf("cache lookups recorded: %d", got)
	}
}

func TestAnalyzer_InvalidOutputNotCached(t *testing.T) {
	ag := &countingAgent{text: `{"english_exception":"   "}`}
	s := newRecordingStore()
	an, m := newTestAnalyzer(ag, s, time.Minute)

	if a := an.Analyze(context.Background(), testFailure()); a != nil {
		t.Fatalf("Analyze = %+v, want nil", a)
	}
	if _, sets := s.calls(); sets != 0 {
		t.Errorf("invalid analysis written to cache (%d sets)", sets)
	}
	if got := testutil.ToFloat64(m.AgentCalls.WithLabelValues("invalid")); got != 1 {
		t.Errorf("invalid = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues(OutcomeAbsent)); got != 1 {
		t.Errorf("absent = %v, want 1", got)
	}
}

func TestAnalyzer_AgentErrorIsAbsent(t *testing.T) {
	ag := &countingAgent{err: errors.New("503 overloaded")}
	an, _ := newTestAnalyzer(ag, newRecordingStore(), time.Minute)
	if a := an.Analyze(context.Background(), testFailure()); a != nil {
		t.Fatalf("Analyze = %+v, want nil", a)
	}
}

func TestAnalyzer_CacheFailureFallsThroughToAgent(t *testing.T) {
	ag := &countingAgent{text: validJSON}
	s := newRecordingStore()
	s.getErr = errors.New("redis down")
	s.setErr = errors.New("redis down")
	an, _ := newTestAnalyzer(ag, s, time.Minute)

	if an.Analyze(context.Background(), testFailure()) == nil {
		t.Fatal("cache failure should not prevent an analysis")
	}
	if n := ag.calls.Load(); n != 1 {
		t.Errorf("agent called %d times, want 1", n)
	}
}

type panickingCaller struct{}

func (panickingCaller) Call(context.Context, failure.Failure) (*Analysis, error) {
	panic("unexpected")
}

func TestAnalyzer_NeverPanics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	an := NewAnalyzer(panickingCaller{}, nil, false, Options{Metrics: m})

	var got *Analysis
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("Analyze panicked: %v", r)
			}
		}()
		got = an.Analyze(context.Background(), testFailure())
	}()
	if got != nil {
		t.Errorf("Analyze = %+v, want nil", got)
	}
	if v := testutil.ToFloat64(m.Requests.WithLabelValues(OutcomePanic)); v != 1 {
		t.Errorf("panic outcome = %v, want 1", v)
	}
}

func TestAnalyzer_ConcurrentMissesBothWrite(t *testing.T) {
	ag := &countingAgent{text: validJSON}
	start := make(chan struct{})
	slow := agent.Func(func(ctx context.Context, m agent.Messages) (string, error) {
		<-start
		return ag.Call(ctx, m)
	})
	s := newRecordingStore()
	an, _ := newTestAnalyzer(slow, s, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			an.Analyze(context.Background(), testFailure())
		}()
	}
	// Both goroutines are past the cache read before either agent call returns.
	time.Sleep(50 * time.Millisecond)
	close(start)
	wg.Wait()

	if n := ag.calls.Load(); n != 2 {
		t.Errorf("agent called %d times, want 2", n)
	}
	if _, sets := s.calls(); sets != 2 {
		t.Errorf("store saw %d writes, want 2", sets)
	}
}

func TestAnalyzer_ForgetSendsNextFailureToAgent(t *testing.T) {
	ag := &countingAgent{text: validJSON}
	s := newRecordingStore()
	an, _ := newTestAnalyzer(ag, s, time.Minute)
	f := testFailure()

	an.Analyze(context.Background(), f)
	if err := an.Forget(context.Background(), an.Fingerprint(f)); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if err := an.Forget(context.Background(), an.Fingerprint(f)); err != nil {
		t.Fatalf("second Forget: %v", err)
	}
	an.Analyze(context.Background(), f)

	if n := ag.calls.Load(); n != 2 {
		t.Errorf("agent called %d times, want 2", n)
	}
}
