// Package resultcache memoises balancing results by search input.
//
// A search is a deterministic function of its input, so a result can be
// reused whenever the roster, ratings, team sizes and constraint groups are
// unchanged. Keys are 64-bit xxhash fingerprints of a canonical encoding,
// checked against the encoding itself on every hit.
package resultcache

import (
	"container/list"
	"context"
	"encoding/binary"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/okian/teambalance/internal/domain/balance"
	"github.com/okian/teambalance/internal/domain/roster"
	"github.com/okian/teambalance/pkg/metrics"
)

// Default cache configuration constants.
const (
	defaultMaxSize = 1024
)

// Key identifies a search input. Sum is its fingerprint; the canonical
// encoding is kept alongside so two inputs whose fingerprints collide are
// never mistaken for each other.
type Key struct {
	Sum   uint64
	canon string
}

// Canonical returns the canonical encoding of the input.
func (k Key) Canonical() string { return k.canon }

// Cache stores balance results keyed by search input.
type Cache interface {
	// Get returns the cached result for key, if any. An entry whose
	// fingerprint matches but whose input differs is a miss.
	Get(ctx context.Context, key Key) (balance.Result, bool)

	// Put stores a result, evicting the oldest entry when full.
	Put(ctx context.Context, key Key, res balance.Result)

	// Purge drops every entry.
	Purge(ctx context.Context)

	Size() int64
}

type entry struct {
	key Key
	res balance.Result
}

// inMemoryCache implements Cache with a map and an insertion-ordered list.
// For bounded mode (maxSize > 0) the oldest entry is evicted first.
// For unbounded mode (maxSize <= 0) entries are never evicted.
type inMemoryCache struct {
	mu      sync.Mutex
	entries map[uint64]*list.Element
	order   *list.List // front is newest
	maxSize int
	size    atomic.Int64
}

// NewInMemoryCache creates a result cache with configuration options.
func NewInMemoryCache(opts ...Option) Cache {
	c := &inMemoryCache{
		maxSize: defaultMaxSize,
	}

	// Apply all options
	for _, opt := range opts {
		opt(c)
	}

	c.entries = make(map[uint64]*list.Element)
	c.order = list.New()
	return c
}

func (c *inMemoryCache) Get(ctx context.Context, key Key) (balance.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key.Sum]
	if !ok || el.Value.(*entry).key.canon != key.canon {
		metrics.RecordCacheMiss()
		return balance.Result{}, false
	}
	metrics.RecordCacheHit()
	return el.Value.(*entry).res, true
}

func (c *inMemoryCache) Put(ctx context.Context, key Key, res balance.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key.Sum]; ok {
		el.Value.(*entry).key = key
		el.Value.(*entry).res = res
		c.order.MoveToFront(el)
		return
	}
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	c.entries[key.Sum] = c.order.PushFront(&entry{key: key, res: res})
	c.size.Add(1)
	metrics.UpdateCacheSize(int(c.size.Load()))
}

func (c *inMemoryCache) Purge(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[uint64]*list.Element)
	c.order.Init()
	c.size.Store(0)
	metrics.UpdateCacheSize(0)
}

// evictOldest removes the least recently stored entry.
// Must be called with c.mu held.
func (c *inMemoryCache) evictOldest() {
	el := c.order.Back()
	if el == nil {
		return
	}
	c.order.Remove(el)
	delete(c.entries, el.Value.(*entry).key.Sum)
	c.size.Add(-1)
}

func (c *inMemoryCache) Size() int64 {
	return c.size.Load()
}

// Fingerprint hashes the canonical encoding of in.
func Fingerprint(in balance.Input) uint64 {
	return KeyOf(in).Sum
}

// KeyOf returns the cache key of in. The canonical encoding holds competitors
// sorted by ID (with name, rating and update time), the distinct team sizes
// in order, and the constraint groups in canonical order. Inputs that differ
// only in roster order share a key, which is sound because balancing results
// do not depend on roster order.
func KeyOf(in balance.Input) Key {
	var b []byte
	putInt := func(v int64) {
		b = binary.LittleEndian.AppendUint64(b, uint64(v))
	}

	competitors := slices.Clone(in.Roster)
	slices.SortFunc(competitors, func(a, b roster.Competitor) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	putInt(int64(len(competitors)))
	for _, c := range competitors {
		putInt(c.ID)
		putInt(int64(c.Rating))
		putInt(c.LastUpdated.UnixNano())
		putInt(int64(len(c.Name)))
		b = append(b, c.Name...)
	}

	sizes := slices.Clone(in.TeamSizes)
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)
	putInt(int64(len(sizes)))
	for _, s := range sizes {
		putInt(int64(s))
	}

	groups := slices.Clone(in.Constraints)
	slices.SortFunc(groups, roster.Set.Compare)
	putInt(int64(len(groups)))
	for _, g := range groups {
		ids := g.IDs()
		putInt(int64(len(ids)))
		for _, id := range ids {
			putInt(id)
		}
	}
	return Key{Sum: xxhash.Sum64(b), canon: string(b)}
}
