package decision

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/registry"
	"github.com/0Papitchu/GBPBot-sub001/internal/scorecache"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

func TestMain(m *testing.M) {
	_ = logger.InitWithConfig(logger.LogConfig{Level: "ERROR", Format: "text"})
	os.Exit(m.Run())
}

// fakeAnalyzer counts calls and delegates to fn.
type fakeAnalyzer struct {
	calls int
	fn    func(ctx context.Context, subject types.Subject) (types.Analysis, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, subject types.Subject) (types.Analysis, error) {
	f.calls++
	return f.fn(ctx, subject)
}

func succeedWith(score int, confidence float64) func(context.Context, types.Subject) (types.Analysis, error) {
	return func(context.Context, types.Subject) (types.Analysis, error) {
		return types.Analysis{Score: score, Confidence: confidence, Rationale: "ok"}, nil
	}
}

func failWith(err error) func(context.Context, types.Subject) (types.Analysis, error) {
	return func(context.Context, types.Subject) (types.Analysis, error) {
		return types.Analysis{}, err
	}
}

func testSubject() types.Subject {
	return types.Subject{
		Kind:         types.SubjectToken,
		TokenAddress: "0xabc123",
		ContractHash: "0xdeadbeefcafe",
		Snapshot:     types.MarketSnapshot{PriceChange1hPct: 0.5, LiquidityUSD: 100_000},
		ObservedAt:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func testTTL() TTLConfig {
	return TTLConfig{Low: 5 * time.Minute, Normal: 2 * time.Minute, High: 20 * time.Second}
}

func newTestOrchestrator(a, b *fakeAnalyzer, failureThreshold uint32) (*Orchestrator, *registry.Registry) {
	descs := []provider.Descriptor{
		{ID: "A", Kind: provider.KindLocalLarge, MaxLatencyBudget: 500 * time.Millisecond, Priority: 1, Enabled: true},
		{ID: "B", Kind: provider.KindRemote, MaxLatencyBudget: 500 * time.Millisecond, Priority: 2, Enabled: true},
	}
	reg := registry.New(descs, failureThreshold, 30*time.Second)
	analyzers := map[string]interfaces.Analyzer{"A": a, "B": b}
	return New(scorecache.New(64), reg, analyzers, nil, testTTL()), reg
}

func TestDecideCachesResult(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	b := &fakeAnalyzer{fn: succeedWith(10, 0.1)}
	o, _ := newTestOrchestrator(a, b, 3)
	subject := testSubject()

	first, err := o.Decide(context.Background(), subject, types.Auto, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first.Score != 85 || first.ProviderID != "A" {
		t.Fatalf("Expected {85, A}, got {%d, %s}", first.Score, first.ProviderID)
	}

	second, err := o.Decide(context.Background(), subject, types.Auto, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if second.ProviderID != types.CachedProviderID {
		t.Errorf("Expected cached provider id, got %s", second.ProviderID)
	}
	if second.Score != 85 {
		t.Errorf("Expected cached score 85, got %d", second.Score)
	}
	if a.calls != 1 {
		t.Errorf("Expected exactly 1 provider call, got %d", a.calls)
	}
	if b.calls != 0 {
		t.Errorf("Expected no fallback calls, got %d", b.calls)
	}
}

func TestDecideFallsBackOnFailure(t *testing.T) {
	a := &fakeAnalyzer{fn: failWith(provider.ErrUnavailable)}
	b := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	o, _ := newTestOrchestrator(a, b, 3)

	rec, err := o.Decide(context.Background(), testSubject(), types.Auto, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected fallback to succeed, got %v", err)
	}
	if rec.Score != 85 || rec.ProviderID != "B" {
		t.Errorf("Expected {85, B}, got {%d, %s}", rec.Score, rec.ProviderID)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("Expected one call each, got A=%d B=%d", a.calls, b.calls)
	}
}

func TestDecideAllProvidersFail(t *testing.T) {
	a := &fakeAnalyzer{fn: failWith(provider.ErrUnavailable)}
	b := &fakeAnalyzer{fn: failWith(provider.ErrRateLimited)}
	o, _ := newTestOrchestrator(a, b, 5)

	_, err := o.Decide(context.Background(), testSubject(), types.Auto, 2*time.Second)
	if !errors.Is(err, provider.ErrExhausted) {
		t.Fatalf("Expected ErrExhausted, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("Expected every candidate tried once, got A=%d B=%d", a.calls, b.calls)
	}
}

func TestDecideExplicitOpenCircuitSkipsFallback(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(70, 0.8)}
	b := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	o, reg := newTestOrchestrator(a, b, 1)

	// Trip A's circuit.
	reg.RecordOutcome("A", false, 100*time.Millisecond)

	_, err := o.Decide(context.Background(), testSubject(), types.Explicit("A"), 2*time.Second)
	if !errors.Is(err, provider.ErrExhausted) {
		t.Fatalf("Expected ErrExhausted for explicit open provider, got %v", err)
	}
	if a.calls != 0 {
		t.Errorf("Expected A not to be called while open, got %d", a.calls)
	}
	if b.calls != 0 {
		t.Errorf("Expected no silent fallback from an explicit choice, got %d calls to B", b.calls)
	}
}

func TestDecideExplicitUsesOnlyThatProvider(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(70, 0.8)}
	b := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	o, _ := newTestOrchestrator(a, b, 3)

	rec, err := o.Decide(context.Background(), testSubject(), types.Explicit("B"), 2*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.ProviderID != "B" {
		t.Errorf("Expected provider B, got %s", rec.ProviderID)
	}
	if a.calls != 0 {
		t.Errorf("Expected A untouched, got %d calls", a.calls)
	}
}

func TestDecideRejectsOutOfRangeAnalysis(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(150, 0.9)}
	b := &fakeAnalyzer{fn: succeedWith(85, 1.5)}
	o, _ := newTestOrchestrator(a, b, 5)

	_, err := o.Decide(context.Background(), testSubject(), types.Auto, 2*time.Second)
	if !errors.Is(err, provider.ErrExhausted) {
		t.Fatalf("Expected ErrExhausted when every result is out of range, got %v", err)
	}
}

func TestDecideOverallBudgetExhaustion(t *testing.T) {
	block := func(ctx context.Context, _ types.Subject) (types.Analysis, error) {
		<-ctx.Done()
		return types.Analysis{}, ctx.Err()
	}
	a := &fakeAnalyzer{fn: block}
	b := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	o, _ := newTestOrchestrator(a, b, 5)

	start := time.Now()
	_, err := o.Decide(context.Background(), testSubject(), types.Auto, 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, provider.ErrExhausted) {
		t.Fatalf("Expected ErrExhausted on budget exhaustion, got %v", err)
	}
	if b.calls != 0 {
		t.Errorf("Expected no attempt after budget exhausted, got %d calls to B", b.calls)
	}
	if elapsed > time.Second {
		t.Errorf("Expected return near budget, took %v", elapsed)
	}
}

func TestDecideFeedsRegistryHealth(t *testing.T) {
	a := &fakeAnalyzer{fn: failWith(provider.ErrTimeout)}
	b := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	o, reg := newTestOrchestrator(a, b, 2)

	// Two decides on distinct subjects so the cache does not short-circuit.
	s1 := testSubject()
	s2 := testSubject()
	s2.TokenAddress = "0xother"
	if _, err := o.Decide(context.Background(), s1, types.Auto, 2*time.Second); err != nil {
		t.Fatalf("Expected fallback success, got %v", err)
	}
	if _, err := o.Decide(context.Background(), s2, types.Auto, 2*time.Second); err != nil {
		t.Fatalf("Expected fallback success, got %v", err)
	}

	// A failed twice with threshold 2, so its circuit must now be open and
	// the next auto selection should call B alone.
	if state, err := reg.State("A"); err != nil || state != gobreaker.StateOpen {
		t.Fatalf("Expected A's circuit open after %d failures, got %v (err %v)", a.calls, state, err)
	}
	s3 := testSubject()
	s3.TokenAddress = "0xthird"
	before := a.calls
	if _, err := o.Decide(context.Background(), s3, types.Auto, 2*time.Second); err != nil {
		t.Fatalf("Expected success via B, got %v", err)
	}
	if a.calls != before {
		t.Errorf("Expected open circuit to skip A, got %d extra calls", a.calls-before)
	}
}

// fakeEnricher counts calls and delegates to fn.
type fakeEnricher struct {
	calls int
	fn    func(ctx context.Context, subject types.Subject) (map[string]any, error)
}

func (f *fakeEnricher) Enrich(ctx context.Context, subject types.Subject) (map[string]any, error) {
	f.calls++
	return f.fn(ctx, subject)
}

func TestDecideSkipsEnrichmentOnTightBudget(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	b := &fakeAnalyzer{fn: succeedWith(10, 0.1)}
	slow := &fakeEnricher{fn: func(context.Context, types.Subject) (map[string]any, error) {
		time.Sleep(600 * time.Millisecond)
		return map[string]any{"news_sentiment": "POSITIVE"}, nil
	}}
	o, _ := newTestOrchestrator(a, b, 3)
	o.enricher = slow

	start := time.Now()
	rec, err := o.Decide(context.Background(), testSubject(), types.Auto, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Expected provider success despite slow enricher, got %v", err)
	}
	if rec.ProviderID != "A" {
		t.Errorf("Expected provider A, got %s", rec.ProviderID)
	}
	if slow.calls != 0 {
		t.Errorf("Expected enrichment skipped under a tight budget, got %d calls", slow.calls)
	}
	if elapsed > 400*time.Millisecond {
		t.Errorf("Expected prompt return, took %v", elapsed)
	}
}

func TestDecideBoundsSlowEnrichment(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	b := &fakeAnalyzer{fn: succeedWith(10, 0.1)}
	// Sleeps through its deadline the way a scraper that ignores ctx would.
	stuck := &fakeEnricher{fn: func(context.Context, types.Subject) (map[string]any, error) {
		time.Sleep(3 * time.Second)
		return nil, nil
	}}
	o, _ := newTestOrchestrator(a, b, 3)
	o.enricher = stuck

	start := time.Now()
	rec, err := o.Decide(context.Background(), testSubject(), types.Auto, 2*time.Second)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Expected provider success despite stuck enricher, got %v", err)
	}
	if rec.ProviderID != "A" {
		t.Errorf("Expected provider A, got %s", rec.ProviderID)
	}
	if a.calls != 1 {
		t.Errorf("Expected one provider attempt, got %d", a.calls)
	}
	// The enricher gets at most a quarter of the budget before it is abandoned.
	if elapsed > 1500*time.Millisecond {
		t.Errorf("Expected enrichment abandoned within its slice, took %v", elapsed)
	}
}

func TestDecideMergesEnrichmentContext(t *testing.T) {
	var seen map[string]any
	a := &fakeAnalyzer{fn: func(_ context.Context, subject types.Subject) (types.Analysis, error) {
		seen = subject.Context
		return types.Analysis{Score: 85, Confidence: 0.9, Rationale: "ok"}, nil
	}}
	b := &fakeAnalyzer{fn: succeedWith(10, 0.1)}
	o, _ := newTestOrchestrator(a, b, 3)
	o.enricher = &fakeEnricher{fn: func(context.Context, types.Subject) (map[string]any, error) {
		return map[string]any{"news_sentiment": "NEGATIVE"}, nil
	}}

	subject := testSubject()
	subject.Context = map[string]any{"existing": "x"}
	if _, err := o.Decide(context.Background(), subject, types.Auto, 2*time.Second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if seen["news_sentiment"] != "NEGATIVE" {
		t.Errorf("Expected enriched context to reach the provider, got %v", seen)
	}
	if seen["existing"] != "x" {
		t.Errorf("Expected existing context preserved, got %v", seen)
	}
}

func TestDecideSkipsProviderWithHeldProbeSlot(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(70, 0.8)}
	b := &fakeAnalyzer{fn: failWith(provider.ErrUnavailable)}
	descs := []provider.Descriptor{
		{ID: "A", Kind: provider.KindLocalLarge, MaxLatencyBudget: 500 * time.Millisecond, Priority: 1, Enabled: true},
		{ID: "B", Kind: provider.KindRemote, MaxLatencyBudget: 500 * time.Millisecond, Priority: 2, Enabled: true},
	}
	reg := registry.New(descs, 1, 20*time.Millisecond)
	o := New(scorecache.New(64), reg, map[string]interfaces.Analyzer{"A": a, "B": b}, nil, testTTL())

	// Trip A, wait for the re-probe window, then hold the single half-open
	// slot the way a concurrent in-flight decision would.
	reg.RecordOutcome("A", false, 50*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if !reg.Reserve("A") {
		t.Fatal("Expected half-open reservation to succeed")
	}

	_, err := o.Decide(context.Background(), testSubject(), types.Auto, 2*time.Second)
	if !errors.Is(err, provider.ErrExhausted) {
		t.Fatalf("Expected ErrExhausted with the probe slot held, got %v", err)
	}
	if a.calls != 0 {
		t.Errorf("Expected no duplicate half-open call to A, got %d", a.calls)
	}
	if b.calls != 1 {
		t.Errorf("Expected B tried once, got %d", b.calls)
	}

	// Settling the held slot with a success closes A again.
	reg.RecordOutcome("A", true, 50*time.Millisecond)
	if state, serr := reg.State("A"); serr != nil || state != gobreaker.StateClosed {
		t.Errorf("Expected A closed after the settled probe, got %v (err %v)", state, serr)
	}
}

func TestTTLConfigFor(t *testing.T) {
	ttl := testTTL()

	if got := ttl.For(types.VolatilityHigh); got != 20*time.Second {
		t.Errorf("Expected HIGH TTL 20s, got %v", got)
	}
	if got := ttl.For(types.VolatilityLow); got != 5*time.Minute {
		t.Errorf("Expected LOW TTL 5m, got %v", got)
	}
	if got := ttl.For(types.VolatilityNormal); got != 2*time.Minute {
		t.Errorf("Expected NORMAL TTL 2m, got %v", got)
	}
}

func TestDecideHighVolatilityShortTTL(t *testing.T) {
	a := &fakeAnalyzer{fn: succeedWith(85, 0.9)}
	b := &fakeAnalyzer{fn: succeedWith(10, 0.1)}
	o, _ := newTestOrchestrator(a, b, 3)

	subject := testSubject()
	subject.Snapshot.PriceChange1hPct = 15 // HIGH volatility

	rec, err := o.Decide(context.Background(), subject, types.Auto, 2*time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Volatility != types.VolatilityHigh {
		t.Errorf("Expected HIGH volatility recorded, got %s", rec.Volatility)
	}
}
