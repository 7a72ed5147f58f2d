package scorecache

import (
	"container/list"
	"sync"
	"time"

	"github.com/0Papitchu/GBPBot-sub001/internal/types"
)

// Cache is a bounded, TTL-aware store of decision records. Expiry is lazy: an
// expired entry is evicted on the lookup that finds it, so there is no
// background sweeper. Eviction under capacity pressure removes the entry
// least recently read (writes do not refresh recency); entries never read are
// evicted before read ones, earliest expiry first.
//
// All operations serialize through one mutex and touch only the map and the
// recency list; no I/O happens inside the cache.
type Cache struct {
	mu       sync.Mutex
	capacity int
	weight   int
	items    map[string]*list.Element
	order    *list.List // front = most recently read
	now      func() time.Time
}

type entry struct {
	key       string
	record    types.DecisionRecord
	expiresAt time.Time
	weight    int
	read      bool
}

// New creates a cache holding at most capacity units of entry weight.
func New(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Get returns the cached record for key. An entry past its TTL is treated as
// a miss and removed immediately. A hit bumps the entry's read recency.
func (c *Cache) Get(key string) (types.DecisionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return types.DecisionRecord{}, false
	}
	e := el.Value.(*entry)
	if !c.now().Before(e.expiresAt) {
		c.remove(el)
		return types.DecisionRecord{}, false
	}
	e.read = true
	c.order.MoveToFront(el)
	return e.record, true
}

// Put stores record under key with the given TTL and unit weight. Put never
// fails; on key collision the existing entry is overwritten in place.
func (c *Cache) Put(key string, record types.DecisionRecord, ttl time.Duration) {
	c.PutWeighted(key, record, ttl, 1)
}

// PutWeighted is Put for callers that account entry size. A record heavier
// than the whole capacity is not stored.
func (c *Cache) PutWeighted(key string, record types.DecisionRecord, ttl time.Duration, weight int) {
	if weight > c.capacity {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(ttl)

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		c.weight += weight - e.weight
		e.record = record
		e.expiresAt = expiresAt
		e.weight = weight
		// An unread entry's list position encodes its expiry rank, so the new
		// TTL moves it. Read entries keep their recency slot; a write is not
		// a read.
		if !e.read {
			c.order.Remove(el)
			c.items[key] = c.insert(e)
		}
		c.evictOver()
		return
	}

	e := &entry{key: key, record: record, expiresAt: expiresAt, weight: weight}
	c.items[key] = c.insert(e)
	c.weight += weight
	c.evictOver()
}

// Len returns the number of resident entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Weight returns the total resident entry weight
func (c *Cache) Weight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.weight
}

// insert places a never-read entry within the unread tail so that the back of
// the list is always the next eviction victim: unread entries sit behind read
// ones, ordered with the earliest expiry at the back.
func (c *Cache) insert(e *entry) *list.Element {
	pos := c.order.Back()
	for pos != nil {
		pe := pos.Value.(*entry)
		if pe.read || pe.expiresAt.After(e.expiresAt) {
			break
		}
		pos = pos.Prev()
	}
	if pos == nil {
		return c.order.PushFront(e)
	}
	return c.order.InsertAfter(e, pos)
}

func (c *Cache) evictOver() {
	for c.weight > c.capacity {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.remove(back)
	}
}

func (c *Cache) remove(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.items, e.key)
	c.weight -= e.weight
}
