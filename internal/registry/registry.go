package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/0Papitchu/GBPBot-sub001/internal/provider"
	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// latencyAlpha is the EWMA smoothing factor for rolling provider latency.
const latencyAlpha = 0.2

// Registry holds the configured provider descriptors and their health state.
// It is pure bookkeeping plus selection policy: no network or file I/O ever
// happens here. RecordOutcome is the only mutator of health state and is safe
// to call from concurrent in-flight decisions.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*providerEntry
}

type providerEntry struct {
	desc    provider.Descriptor
	breaker *gobreaker.TwoStepCircuitBreaker

	mu      sync.Mutex
	ewmaMS  float64
	samples int64
	pending []func(bool)
}

// HealthSnapshot is a read-only view of one provider's health, for status
// reporting.
type HealthSnapshot struct {
	ID           string          `json:"id"`
	Kind         provider.Kind   `json:"kind"`
	State        string          `json:"state"`
	AvgLatencyMS float64         `json:"avg_latency_ms"`
	Samples      int64           `json:"samples"`
	Counts       gobreaker.Counts `json:"counts"`
}

// New builds a registry for the given descriptors. Each provider gets its own
// circuit: CLOSED to OPEN after failureThreshold consecutive failures, OPEN to
// HALF_OPEN once openTimeout elapses, and exactly one probe is admitted while
// HALF_OPEN before the circuit settles CLOSED (probe success) or back OPEN
// (probe failure). Startup state is all circuits CLOSED.
func New(descs []provider.Descriptor, failureThreshold uint32, openTimeout time.Duration) *Registry {
	r := &Registry{entries: make(map[string]*providerEntry, len(descs))}
	for _, d := range descs {
		st := gobreaker.Settings{
			Name:        d.ID,
			MaxRequests: 1,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failureThreshold
			},
		}
		r.entries[d.ID] = &providerEntry{
			desc:    d,
			breaker: gobreaker.NewTwoStepCircuitBreaker(st),
		}
	}
	return r
}

// Select returns the ordered candidate list for one decision.
//
// Explicit strategy yields a singleton; if that provider's circuit is OPEN the
// selection fails outright, no silent fallback is substituted for an explicit
// choice. Auto yields enabled providers with non-OPEN circuits ordered by
// circuit state (CLOSED before HALF_OPEN), then ascending rolling latency,
// then configured priority.
func (r *Registry) Select(kind types.SubjectKind, strategy types.Strategy) ([]provider.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !strategy.IsAuto() {
		e, ok := r.entries[strategy.Provider]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", strategy.Provider)
		}
		if !e.desc.Enabled {
			return nil, fmt.Errorf("provider %q is disabled", strategy.Provider)
		}
		if e.breaker.State() == gobreaker.StateOpen {
			return nil, fmt.Errorf("provider %q circuit open: %w", strategy.Provider, provider.ErrUnavailable)
		}
		return []provider.Descriptor{e.desc}, nil
	}

	type candidate struct {
		desc      provider.Descriptor
		stateRank int
		ewmaMS    float64
	}
	var candidates []candidate
	for _, e := range r.entries {
		if !e.desc.Enabled {
			continue
		}
		if !servesKind(e.desc, kind) {
			continue
		}
		// State() also advances OPEN circuits whose re-probe deadline has
		// elapsed into HALF_OPEN.
		rank := 0
		switch e.breaker.State() {
		case gobreaker.StateOpen:
			continue
		case gobreaker.StateHalfOpen:
			rank = 1
		}
		e.mu.Lock()
		ewma := e.ewmaMS
		e.mu.Unlock()
		candidates = append(candidates, candidate{desc: e.desc, stateRank: rank, ewmaMS: ewma})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.stateRank != b.stateRank {
			return a.stateRank < b.stateRank
		}
		if a.ewmaMS != b.ewmaMS {
			return a.ewmaMS < b.ewmaMS
		}
		if a.desc.Priority != b.desc.Priority {
			return a.desc.Priority < b.desc.Priority
		}
		return a.desc.ID < b.desc.ID
	})

	out := make([]provider.Descriptor, len(candidates))
	for i, c := range candidates {
		out[i] = c.desc
	}
	return out, nil
}

// servesKind keeps the fast token classifier out of market-wide subjects it
// has no features for.
func servesKind(d provider.Descriptor, kind types.SubjectKind) bool {
	if kind == types.SubjectMarket && d.Kind == provider.KindLocalFast {
		return false
	}
	return true
}

// Reserve claims the provider's circuit for one imminent call and must be
// paired with a RecordOutcome that settles the claim. The claim is what makes
// the HALF_OPEN single-probe guarantee hold under concurrency: the breaker
// admits one reservation in HALF_OPEN, so a second caller racing for the same
// re-probe is refused here instead of issuing a duplicate network call.
// Reserve also fails when the circuit is OPEN or the provider is unknown.
func (r *Registry) Reserve(id string) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	done, err := e.breaker.Allow()
	if err != nil {
		return false
	}
	e.mu.Lock()
	e.pending = append(e.pending, done)
	e.mu.Unlock()
	return true
}

// RecordOutcome feeds one call attempt back into the provider's health state:
// the rolling latency average and the circuit state machine. If a Reserve
// claim is outstanding the outcome settles it; otherwise the circuit is
// consulted directly, so callers that never Reserve still feed the breaker.
func (r *Registry) RecordOutcome(id string, success bool, latency time.Duration) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	e.mu.Lock()
	ms := float64(latency.Milliseconds())
	if e.samples == 0 {
		e.ewmaMS = ms
	} else {
		e.ewmaMS = latencyAlpha*ms + (1-latencyAlpha)*e.ewmaMS
	}
	e.samples++
	var done func(bool)
	if len(e.pending) > 0 {
		done = e.pending[0]
		e.pending = e.pending[1:]
	}
	e.mu.Unlock()

	if done != nil {
		done(success)
		return
	}

	// An OPEN circuit admits nothing; outcomes that slipped past selection
	// while the circuit tripped still count toward the latency average but
	// not toward circuit counts.
	d, err := e.breaker.Allow()
	if err != nil {
		return
	}
	d(success)
}

// State returns the circuit state for one provider
func (r *Registry) State(id string) (gobreaker.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return gobreaker.StateClosed, fmt.Errorf("unknown provider %q", id)
	}
	return e.breaker.State(), nil
}

// Descriptor returns the configured descriptor for one provider
func (r *Registry) Descriptor(id string) (provider.Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return provider.Descriptor{}, fmt.Errorf("unknown provider %q", id)
	}
	return e.desc, nil
}

// Health returns a snapshot of every provider's health state, sorted by ID.
func (r *Registry) Health() []HealthSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]HealthSnapshot, 0, len(r.entries))
	for _, e := range r.entries {
		e.mu.Lock()
		snap := HealthSnapshot{
			ID:           e.desc.ID,
			Kind:         e.desc.Kind,
			State:        e.breaker.State().String(),
			AvgLatencyMS: e.ewmaMS,
			Samples:      e.samples,
			Counts:       e.breaker.Counts(),
		}
		e.mu.Unlock()
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
