package notify

import (
	"sync"
	"time"
)

// CategorySummary bypasses the per-channel bucket and is gated only by the
// summary interval.
const CategorySummary = "summary"

// Throttle rate-limits outbound notifications with one lazy token bucket per
// channel: capacity is the configured max per hour, refilled continuously at
// capacity/hour from the elapsed time since the last refill, so no background
// timer is needed. A denied Admit is a normal outcome, not an error.
type Throttle struct {
	mu          sync.Mutex
	defaultCap  int
	perChannel  map[string]int
	summaryGap  time.Duration
	buckets     map[string]*bucket
	lastSummary map[string]time.Time
	now         func() time.Time
}

type bucket struct {
	tokens     float64
	capacity   int
	lastRefill time.Time
}

// New creates a throttle with a default per-channel hourly cap, optional
// per-channel overrides, and the minimum gap between periodic summaries.
func New(maxPerHour int, perChannel map[string]int, summaryInterval time.Duration) *Throttle {
	return &Throttle{
		defaultCap:  maxPerHour,
		perChannel:  perChannel,
		summaryGap:  summaryInterval,
		buckets:     make(map[string]*bucket),
		lastSummary: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Admit reports whether a notification on the channel may be sent now, and
// consumes a token (or marks the summary sent) when it may.
func (t *Throttle) Admit(channel, category string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if category == CategorySummary {
		last, ok := t.lastSummary[channel]
		if ok && now.Sub(last) < t.summaryGap {
			return false
		}
		t.lastSummary[channel] = now
		return true
	}

	b := t.bucketFor(channel, now)
	b.refill(now)
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Tick performs periodic maintenance: it refills every known bucket to now.
// Admission is already correct without it because refills are computed lazily;
// Tick just keeps long-idle buckets from carrying stale refill timestamps.
func (t *Throttle) Tick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range t.buckets {
		b.refill(now)
	}
}

// Tokens returns the whole tokens currently available on the channel.
func (t *Throttle) Tokens(channel string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	b := t.bucketFor(channel, now)
	b.refill(now)
	return int(b.tokens)
}

func (t *Throttle) bucketFor(channel string, now time.Time) *bucket {
	b, ok := t.buckets[channel]
	if ok {
		return b
	}
	capacity := t.defaultCap
	if c, ok := t.perChannel[channel]; ok {
		capacity = c
	}
	b = &bucket{tokens: float64(capacity), capacity: capacity, lastRefill: now}
	t.buckets[channel] = b
	return b
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill)
	if elapsed <= 0 {
		return
	}
	b.tokens += float64(b.capacity) * elapsed.Hours()
	if max := float64(b.capacity); b.tokens > max {
		b.tokens = max
	}
	b.lastRefill = now
}
