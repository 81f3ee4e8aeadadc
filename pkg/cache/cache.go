// Package cache provides the keyed TTL cache and its secondary hash
// indexes. Entries are whole-table snapshots (or any value); indexes map an
// extracted key (id, name, email) to the row holding it for O(1) point
// lookups. Writers must Clear the keys they touch; readers treat the cache
// as best-effort and fall back to the store on a miss.
package cache

import (
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/saferides/escort-dispatch/pkg/metrics"
	"github.com/saferides/escort-dispatch/pkg/tablestore"
)

const (
	// DefaultTTL suits volatile tables (requests, assignments).
	DefaultTTL = 5 * time.Minute
	// LongTTL suits slow-moving tables (riders).
	LongTTL = 30 * time.Minute
)

// Entry is an indexed row position inside a cached table snapshot.
// RowIndex is the 1-based data row.
type Entry struct {
	Row      []string
	RowIndex int
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

type index struct {
	dataKey string
	byValue *xsync.MapOf[string, Entry]
}

// Cache is a concurrent keyed TTL cache with attachable secondary indexes.
type Cache struct {
	entries    *xsync.MapOf[string, cacheEntry]
	indexes    *xsync.MapOf[string, *index] // keyed dataKey + "/" + indexKey
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL overrides the default entry lifetime.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.defaultTTL = ttl }
}

// WithClock injects a clock, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New returns an empty cache with a 5 minute default TTL.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    xsync.NewMapOf[string, cacheEntry](),
		indexes:    xsync.NewMapOf[string, *index](),
		defaultTTL: DefaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key with an explicit TTL.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	c.entries.Store(key, cacheEntry{value: value, expiresAt: c.now().Add(ttl)})
}

// Get returns the live value for key, or nil if absent or expired. An
// expired entry is dropped together with its indexes.
func (c *Cache) Get(key string) any {
	e, ok := c.entries.Load(key)
	if !ok {
		metrics.CacheMisses.WithLabelValues(key).Inc()
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.Clear(key)
		metrics.CacheMisses.WithLabelValues(key).Inc()
		return nil
	}
	metrics.CacheHits.WithLabelValues(key).Inc()
	return e.value
}

// GetTable returns the cached table snapshot for key, or nil.
func (c *Cache) GetTable(key string) *tablestore.Table {
	if t, ok := c.Get(key).(*tablestore.Table); ok {
		return t
	}
	return nil
}

// Clear removes the named keys and any indexes built over them. With no
// keys it empties the cache entirely.
func (c *Cache) Clear(keys ...string) {
	if len(keys) == 0 {
		c.entries.Clear()
		c.indexes.Clear()
		return
	}
	for _, key := range keys {
		c.entries.Delete(key)
		c.indexes.Range(func(ik string, idx *index) bool {
			if idx.dataKey == key {
				c.indexes.Delete(ik)
			}
			return true
		})
	}
}

// CreateIndex builds a hash index over the table snapshot cached under
// dataKey. extract receives each data row and its 1-based index and returns
// the index value (empty string to skip the row). The index lives until its
// backing entry is cleared or expires.
func (c *Cache) CreateIndex(dataKey, indexKey string, extract func(row []string, rowIndex int) string) error {
	t := c.GetTable(dataKey)
	if t == nil {
		return fmt.Errorf("no cached table under %q", dataKey)
	}
	byValue := xsync.NewMapOf[string, Entry]()
	for i, row := range t.Rows {
		v := extract(row, i+1)
		if v == "" {
			continue
		}
		byValue.Store(v, Entry{Row: row, RowIndex: i + 1})
	}
	c.indexes.Store(dataKey+"/"+indexKey, &index{dataKey: dataKey, byValue: byValue})
	return nil
}

// FindByIndex looks value up in an index previously built by CreateIndex.
// The second return is false when the index is gone or the value is absent.
func (c *Cache) FindByIndex(dataKey, indexKey, value string) (Entry, bool) {
	// A stale index must not outlive its entry.
	if c.Get(dataKey) == nil {
		c.indexes.Delete(dataKey + "/" + indexKey)
		return Entry{}, false
	}
	idx, ok := c.indexes.Load(dataKey + "/" + indexKey)
	if !ok {
		return Entry{}, false
	}
	e, ok := idx.byValue.Load(value)
	return e, ok
}
