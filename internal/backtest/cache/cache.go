// Package cache memoizes indicator computations so that concurrent
// parameter-sweep runs share results instead of recomputing them. A cache is
// created once per batch, passed explicitly into the orchestrator and every
// run, and discarded (or retained for the next tuning iteration) by the
// caller. It is never an ambient singleton.
package cache

import (
	"container/list"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/stratforge/backtest/internal/indicator"
	"github.com/stratforge/backtest/internal/series"
)

// Key identifies one indicator computation: the indicator family, its
// canonical parameter string, and the content identity of the series it runs
// over. Broker parameters are deliberately absent — indicators depend only on
// price data, so varying broker configs never invalidates entries.
type Key struct {
	Kind     indicator.Kind
	Params   string
	SeriesID string
}

// String returns the canonical text form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%s(%s)@%s", k.Kind, k.Params, k.SeriesID)
}

// KeyFor builds the cache key for an indicator over a series.
func KeyFor(ind indicator.Indicator, ts *series.TimeSeries) Key {
	return Key{
		Kind:     ind.Kind(),
		Params:   ind.Params(),
		SeriesID: ts.ID(),
	}
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits         int64
	Misses       int64
	Computations int64
	Entries      int
}

// Cache memoizes indicator series keyed by Key.
//
// Guarantees:
//   - At most one concurrent computation per key; other requesters block and
//     receive the same value.
//   - Successful computations are memoized for the cache lifetime (or until
//     evicted under an optional LRU capacity bound).
//   - Failed computations are returned to the waiters of that attempt only,
//     never memoized; a later request computes again.
type Cache struct {
	mu       sync.Mutex
	entries  map[Key]*list.Element
	order    *list.List
	capacity int

	group singleflight.Group

	hits         atomic.Int64
	misses       atomic.Int64
	computations atomic.Int64
}

type entry struct {
	key   Key
	value indicator.Series
}

// New creates an unbounded cache. Indicator parameter sets and series are
// finite per experiment, so unbounded is the normal mode.
func New() *Cache {
	return NewWithCapacity(0)
}

// NewWithCapacity creates a cache that holds at most capacity entries,
// evicting the least recently used. capacity <= 0 means unbounded. Eviction
// only ever removes completed entries: an in-flight computation lives in the
// singleflight group, not in the entry map, so it can never be evicted.
func NewWithCapacity(capacity int) *Cache {
	return &Cache{
		entries:  make(map[Key]*list.Element),
		order:    list.New(),
		capacity: capacity,
	}
}

// GetOrCompute returns the memoized series for key, running compute at most
// once across all concurrent callers with the same key. Every caller of the
// same attempt receives the same value or the same error.
func (c *Cache) GetOrCompute(key Key, compute func() (indicator.Series, error)) (indicator.Series, error) {
	if value, ok := c.lookup(key); ok {
		c.hits.Add(1)

		return value, nil
	}

	c.misses.Add(1)

	result, err, _ := c.group.Do(key.String(), func() (any, error) {
		// A racing caller may have stored the value between our lookup
		// and joining the flight.
		if value, ok := c.lookup(key); ok {
			return value, nil
		}

		c.computations.Add(1)

		value, err := compute()
		if err != nil {
			// Propagate to this attempt's waiters without poisoning
			// the cache.
			return nil, err
		}

		c.store(key, value)

		return value, nil
	})
	if err != nil {
		return nil, err
	}

	value, ok := result.(indicator.Series)
	if !ok {
		return nil, fmt.Errorf("cache entry for %s has unexpected type %T", key, result)
	}

	return value, nil
}

// Value computes (or recalls) the indicator over the series.
func (c *Cache) Value(ind indicator.Indicator, ts *series.TimeSeries) (indicator.Series, error) {
	return c.GetOrCompute(KeyFor(ind, ts), func() (indicator.Series, error) {
		return ind.Compute(ts)
	})
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:         c.hits.Load(),
		Misses:       c.misses.Load(),
		Computations: c.computations.Load(),
		Entries:      entries,
	}
}

// Reset discards all entries and counters. Callers must ensure no requests
// are in flight.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[Key]*list.Element)
	c.order.Init()
	c.hits.Store(0)
	c.misses.Store(0)
	c.computations.Store(0)
}

func (c *Cache) lookup(key Key) (indicator.Series, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	c.order.MoveToFront(element)

	ent, ok := element.Value.(*entry)
	if !ok {
		return nil, false
	}

	return ent.value, true
}

func (c *Cache) store(key Key, value indicator.Series) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.order.MoveToFront(element)

		if ent, ok := element.Value.(*entry); ok {
			ent.value = value
		}

		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})

	if c.capacity > 0 {
		for len(c.entries) > c.capacity {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}

			c.order.Remove(oldest)

			if ent, ok := oldest.Value.(*entry); ok {
				delete(c.entries, ent.key)
			}
		}
	}
}
