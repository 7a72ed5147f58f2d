package scorecache

import (
	"fmt"
	"testing"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

func rec(score int) types.DecisionRecord {
	return types.DecisionRecord{Score: score, Confidence: 0.9, ProviderID: "test"}
}

// fakeClock lets tests advance cache time without sleeping.
type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(capacity int) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	c := New(capacity)
	c.now = clock.now
	return c, clock
}

func TestPutAndGet(t *testing.T) {
	c, _ := newTestCache(8)

	c.Put("k1", rec(85), time.Minute)

	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("Expected hit for k1")
	}
	if got.Score != 85 {
		t.Errorf("Expected score 85, got %d", got.Score)
	}

	if _, ok := c.Get("missing"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestTTLExpiry(t *testing.T) {
	c, clock := newTestCache(8)

	c.Put("k1", rec(70), time.Minute)

	clock.advance(59 * time.Second)
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("Expected hit before TTL elapsed")
	}

	clock.advance(2 * time.Second)
	if _, ok := c.Get("k1"); ok {
		t.Error("Expected miss after TTL elapsed")
	}
	if c.Len() != 0 {
		t.Errorf("Expected expired entry to be removed, got len %d", c.Len())
	}
}

func TestOverwriteSameKey(t *testing.T) {
	c, _ := newTestCache(8)

	c.Put("k1", rec(40), time.Minute)
	c.Put("k1", rec(90), time.Minute)

	if c.Len() != 1 {
		t.Fatalf("Expected 1 entry after overwrite, got %d", c.Len())
	}
	got, _ := c.Get("k1")
	if got.Score != 90 {
		t.Errorf("Expected overwritten score 90, got %d", got.Score)
	}
}

func TestCapacityEviction(t *testing.T) {
	c, clock := newTestCache(3)

	// Staggered inserts so expiry order is unambiguous: k1 expires first.
	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), rec(i*10), time.Minute)
		clock.advance(time.Second)
	}

	c.Put("k4", rec(40), time.Minute)

	if c.Len() != 3 {
		t.Fatalf("Expected len 3 after eviction, got %d", c.Len())
	}
	if _, ok := c.Get("k1"); ok {
		t.Error("Expected k1 (earliest expiry, never read) to be evicted")
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("Expected %s to survive eviction", k)
		}
	}
}

func TestEvictionPrefersUnread(t *testing.T) {
	c, clock := newTestCache(3)

	for i := 1; i <= 3; i++ {
		c.Put(fmt.Sprintf("k%d", i), rec(i*10), time.Minute)
		clock.advance(time.Second)
	}

	// k1 is oldest but read; k2 stays unread and must go first.
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("Expected hit for k1")
	}

	c.Put("k4", rec(40), time.Minute)

	if _, ok := c.Get("k2"); ok {
		t.Error("Expected unread k2 to be evicted before read k1")
	}
	if _, ok := c.Get("k1"); !ok {
		t.Error("Expected read k1 to survive eviction")
	}
}

func TestOverwriteRefreshesEvictionOrder(t *testing.T) {
	c, clock := newTestCache(2)

	c.Put("k1", rec(10), time.Minute)
	clock.advance(time.Second)
	c.Put("k2", rec(20), 2*time.Minute)
	clock.advance(time.Second)

	// k1 now expires last; the unread eviction order must follow the new TTL,
	// not the one it was inserted with.
	c.Put("k1", rec(11), 10*time.Minute)
	clock.advance(time.Second)

	c.Put("k3", rec(30), 10*time.Minute)

	if _, ok := c.Get("k2"); ok {
		t.Error("Expected k2 (earliest expiry after overwrite) to be evicted")
	}
	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("Expected refreshed k1 to survive eviction")
	}
	if got.Score != 11 {
		t.Errorf("Expected overwritten score 11, got %d", got.Score)
	}
	if _, ok := c.Get("k3"); !ok {
		t.Error("Expected k3 to survive eviction")
	}
}

func TestWeightedEntries(t *testing.T) {
	c, _ := newTestCache(10)

	c.PutWeighted("big", rec(50), time.Minute, 6)
	c.PutWeighted("small", rec(60), time.Minute, 3)

	if c.Weight() != 9 {
		t.Fatalf("Expected weight 9, got %d", c.Weight())
	}

	// Pushes total weight to 12; the unread earliest-expiry entry goes.
	c.PutWeighted("third", rec(70), time.Minute, 3)
	if c.Weight() > 10 {
		t.Errorf("Expected weight within capacity 10, got %d", c.Weight())
	}
	if _, ok := c.Get("big"); ok {
		t.Error("Expected big (earliest unread) to be evicted")
	}
}

func TestOversizedEntryRejected(t *testing.T) {
	c, _ := newTestCache(4)

	c.PutWeighted("huge", rec(50), time.Minute, 5)

	if c.Len() != 0 {
		t.Errorf("Expected oversized entry to be rejected, got len %d", c.Len())
	}
}
