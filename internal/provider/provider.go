package provider

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/store"
)

// Kind distinguishes the configured backend variants.
type Kind string

const (
	KindLocalFast  Kind = "LOCAL_FAST"
	KindLocalLarge Kind = "LOCAL_LARGE"
	KindRemote     Kind = "REMOTE"
)

// Per-provider failures, recoverable by falling back to the next candidate.
var (
	ErrTimeout     = errors.New("provider timeout")
	ErrAuth        = errors.New("provider auth error")
	ErrRateLimited = errors.New("provider rate limited")
	ErrUnavailable = errors.New("provider unavailable")
	ErrMalformed   = errors.New("provider malformed response")
)

// ErrExhausted is terminal for one Decide call: the candidate list or the
// overall budget ran out before any provider succeeded. Callers must treat it
// as "no decision available", never as a score of zero.
var ErrExhausted = errors.New("all providers exhausted")

// Recoverable reports whether the error is a per-provider failure the
// orchestrator may absorb by trying the next candidate.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrAuth) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrMalformed)
}

// ClassifyStatus maps an HTTP response status to the error taxonomy. 429 and
// 5xx are transport-level outcomes, never MalformedResponse.
func ClassifyStatus(status int) error {
	switch {
	case status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("http %d: %w", status, ErrAuth)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("http %d: %w", status, ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("http %d: %w", status, ErrUnavailable)
	default:
		return fmt.Errorf("http %d: %w", status, ErrMalformed)
	}
}

// Descriptor is the configuration-derived identity of one backend. Built
// once at startup; health state lives in the registry, not here.
type Descriptor struct {
	ID               string
	Kind             Kind
	Backend          string
	Model            string
	Endpoint         string
	MaxLatencyBudget time.Duration
	Priority         int
	Enabled          bool
	RPS              float64
	Burst            int
	MaxTokens        int
	Temperature      float32
}

// DescriptorFromConfig builds a Descriptor from its config entry.
func DescriptorFromConfig(pc store.ProviderConfig) Descriptor {
	return Descriptor{
		ID:               pc.ID,
		Kind:             Kind(pc.Kind),
		Backend:          pc.Backend,
		Model:            pc.Model,
		Endpoint:         pc.Endpoint,
		MaxLatencyBudget: pc.MaxLatencyBudget,
		Priority:         pc.Priority,
		Enabled:          pc.Enabled,
		RPS:              pc.RPS,
		Burst:            pc.Burst,
		MaxTokens:        pc.MaxTokens,
		Temperature:      pc.Temperature,
	}
}
