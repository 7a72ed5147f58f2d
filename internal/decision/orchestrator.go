package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/interfaces"
	"github.com/0Papitchu/GBPBot-sub001/internal/logger"
	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/registry"
	"github.com/0Papitchu/GBPBot-sub001/internal/scorecache"
	"github.com/0Papitchu/GBPBot-sub001/internal/trace"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Enrichment runs on the decision path, so it gets at most a quarter of the
// remaining budget and is skipped outright when that slice falls under the
// floor; the providers always keep the bulk of the budget.
const (
	enrichShare     = 4
	minEnrichBudget = 250 * time.Millisecond
)

// TTLConfig maps a subject's volatility class to the cache TTL for its score.
// Stale scores are most dangerous when prices move fast, so HIGH gets the
// shortest TTL.
type TTLConfig struct {
	Low    time.Duration
	Normal time.Duration
	High   time.Duration
}

func (t TTLConfig) For(vol types.VolatilityClass) time.Duration {
	switch vol {
	case types.VolatilityHigh:
		return t.High
	case types.VolatilityLow:
		return t.Low
	default:
		return t.Normal
	}
}

// Orchestrator is the single entry point for scoring a subject: cache first,
// then the registry's candidate providers in order, each under its own slice
// of the overall budget.
type Orchestrator struct {
	cache     *scorecache.Cache
	reg       *registry.Registry
	analyzers map[string]interfaces.Analyzer
	enricher  interfaces.Enricher
	ttl       TTLConfig
	now       func() time.Time
}

// New wires the orchestrator. analyzers maps provider descriptor IDs to their
// adapter; enricher may be nil.
func New(cache *scorecache.Cache, reg *registry.Registry, analyzers map[string]interfaces.Analyzer, enricher interfaces.Enricher, ttl TTLConfig) *Orchestrator {
	return &Orchestrator{
		cache:     cache,
		reg:       reg,
		analyzers: analyzers,
		enricher:  enricher,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Decide produces a normalized decision record for the subject, or
// provider.ErrExhausted when neither the cache nor any candidate provider
// could produce one within overallBudget.
//
// Provider attempts are strictly sequential in the registry's order; the same
// subject is never fanned out to several providers at once. Per-provider
// failures are absorbed into the fallback loop and never escape directly.
func (o *Orchestrator) Decide(ctx context.Context, subject types.Subject, strategy types.Strategy, overallBudget time.Duration) (types.DecisionRecord, error) {
	ctx, span := trace.StartSpan(ctx, "decision.Decide")
	defer span.End()

	key := subject.Key()
	if rec, ok := o.cache.Get(key); ok {
		rec.ProviderID = types.CachedProviderID
		logger.Debug(ctx, "Cache hit", "key", key, "score", rec.Score)
		return rec, nil
	}

	candidates, err := o.reg.Select(subject.Kind, strategy)
	if err != nil {
		logger.Warn(ctx, "Provider selection failed", "strategy", strategy.String(), "error", err)
		return types.DecisionRecord{}, fmt.Errorf("%w: %v", provider.ErrExhausted, err)
	}
	if len(candidates) == 0 {
		return types.DecisionRecord{}, fmt.Errorf("%w: no eligible providers", provider.ErrExhausted)
	}

	deadline := o.now().Add(overallBudget)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	subject = o.enrich(ctx, subject, deadline.Sub(o.now()))

	var lastErr error
	for _, cand := range candidates {
		remaining := deadline.Sub(o.now())
		if remaining <= 0 {
			break
		}
		attemptBudget := cand.MaxLatencyBudget
		if remaining < attemptBudget {
			attemptBudget = remaining
		}

		if !o.reg.Reserve(cand.ID) {
			// Circuit opened since Select, or another decision already holds
			// the single half-open probe slot.
			logger.Debug(ctx, "Provider slot unavailable", "provider_id", cand.ID)
			continue
		}
		analysis, latency, err := o.attempt(ctx, cand, subject, attemptBudget)
		o.reg.RecordOutcome(cand.ID, err == nil, latency)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "Provider attempt failed",
				"provider_id", cand.ID,
				"error", err,
				"latency_ms", latency.Milliseconds(),
			)
			if ctx.Err() != nil {
				// Overall budget exhausted; do not start another attempt.
				break
			}
			continue
		}

		vol := subject.Snapshot.Volatility()
		rec := types.DecisionRecord{
			Score:      analysis.Score,
			Confidence: analysis.Confidence,
			Rationale:  analysis.Rationale,
			ProviderID: cand.ID,
			ProducedAt: o.now(),
			Volatility: vol,
		}
		o.cache.Put(key, rec, o.ttl.For(vol))

		logger.Decision(ctx, subject.TokenAddress, rec.Score, rec.Confidence, rec.ProviderID,
			"latency_ms", latency.Milliseconds(),
			"volatility", string(vol),
		)
		return rec, nil
	}

	if lastErr != nil {
		return types.DecisionRecord{}, fmt.Errorf("%w: last error: %v", provider.ErrExhausted, lastErr)
	}
	return types.DecisionRecord{}, provider.ErrExhausted
}

// attempt runs one provider call under its own deadline and normalizes the
// returned error into the provider taxonomy.
func (o *Orchestrator) attempt(ctx context.Context, cand provider.Descriptor, subject types.Subject, budget time.Duration) (types.Analysis, time.Duration, error) {
	analyzer, ok := o.analyzers[cand.ID]
	if !ok {
		return types.Analysis{}, 0, fmt.Errorf("no analyzer wired for %q: %w", cand.ID, provider.ErrUnavailable)
	}

	ctx, span := trace.StartSpan(ctx, "decision.attempt")
	defer span.End()

	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	start := o.now()
	analysis, err := analyzer.Analyze(attemptCtx, subject)
	latency := o.now().Sub(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: %v", provider.ErrTimeout, err)
		} else if !provider.Recoverable(err) {
			err = fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
		}
		return types.Analysis{}, latency, err
	}
	if analysis.Score < 0 || analysis.Score > 100 || analysis.Confidence < 0 || analysis.Confidence > 1 {
		return types.Analysis{}, latency, fmt.Errorf("%w: score=%d confidence=%.3f out of range",
			provider.ErrMalformed, analysis.Score, analysis.Confidence)
	}
	return analysis, latency, nil
}

// enrich merges best-effort context into the subject before the provider
// attempts. Enrichment failures never fail the decision, and a slow enricher
// never eats the attempt budget: the call runs under its own sub-deadline and
// is abandoned once that elapses.
func (o *Orchestrator) enrich(ctx context.Context, subject types.Subject, remaining time.Duration) types.Subject {
	if o.enricher == nil {
		return subject
	}
	budget := remaining / enrichShare
	if budget < minEnrichBudget {
		logger.Debug(ctx, "Context enrichment skipped", "token", subject.TokenAddress, "remaining_ms", remaining.Milliseconds())
		return subject
	}
	ectx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type enrichResult struct {
		extra map[string]any
		err   error
	}
	// Not every enricher honors ctx (scrapers in particular), so the call runs
	// in its own goroutine; a late result is dropped.
	ch := make(chan enrichResult, 1)
	go func() {
		extra, err := o.enricher.Enrich(ectx, subject)
		ch <- enrichResult{extra: extra, err: err}
	}()

	var extra map[string]any
	select {
	case <-ectx.Done():
		logger.Debug(ctx, "Context enrichment timed out", "token", subject.TokenAddress, "budget_ms", budget.Milliseconds())
		return subject
	case res := <-ch:
		if res.err != nil {
			logger.Debug(ctx, "Context enrichment failed", "token", subject.TokenAddress, "error", res.err)
			return subject
		}
		extra = res.extra
	}
	if len(extra) == 0 {
		return subject
	}
	merged := make(map[string]any, len(subject.Context)+len(extra))
	for k, v := range subject.Context {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	subject.Context = merged
	return subject
}
