// Package cache memoizes rendered retrieval results. Entries are keyed by
// the exact request tuple, expire after a TTL, are evicted least recently
// used first, and are filled at most once at a time per key.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Defaults for Config
const (
	DefaultSize        = 1000
	DefaultTTL         = 30 * time.Minute
	DefaultNegativeTTL = time.Minute
	DefaultRecency     = time.Second
)

// Key identifies one cached payload. No field may be dropped or merged:
// a payload is only ever served for the exact tuple it was rendered for.
type Key struct {
	Library string // Canonical library identifier
	Topic   string // Trimmed topic
	Limit   int    // Effective (clamped) limit
	Tokens  int    // Token budget, zero for unlimited
	Format  types.Format
}

// String returns an unambiguous encoding of the key
func (k Key) String() string {
	return fmt.Sprintf("%s|%q|%d|%d|%s", k.Library, k.Topic, k.Limit, k.Tokens, k.Format)
}

// Entry is one cached outcome. Entries are never modified after they are
// published; a refill replaces the entry whole.
type Entry struct {
	Key       Key
	Result    *types.ResultSet
	Payload   []byte
	Err       error // Set for negative entries; Result and Payload are nil
	FillID    string
	CreatedAt time.Time
	ExpiresAt time.Time

	promoted atomic.Int64 // Unix nanos of the last LRU promotion
}

// Negative reports whether the entry records a NotFound outcome
func (e *Entry) Negative() bool {
	return e.Err != nil
}

// Expired reports whether the entry is stale at now
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ComputeFunc produces the entry for a key on a miss. It must return
// either a populated entry or an error.
type ComputeFunc func(ctx context.Context) (*Entry, error)

// Config configures a Cache
type Config struct {
	Size        int           // Maximum number of entries
	TTL         time.Duration // Lifetime of successful entries
	NegativeTTL time.Duration // Lifetime of NotFound entries; zero disables negative caching
	Recency     time.Duration // Minimum gap between LRU promotions of one entry; zero promotes on every read
	Logger      *log.Logger   // Nil discards
	Now         func() time.Time
}

// DefaultConfig returns the default cache policy
func DefaultConfig() Config {
	return Config{
		Size:        DefaultSize,
		TTL:         DefaultTTL,
		NegativeTTL: DefaultNegativeTTL,
		Recency:     DefaultRecency,
	}
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits         int64 `json:"hits"`
	NegativeHits int64 `json:"negativeHits"`
	Misses       int64 `json:"misses"`
	Fills        int64 `json:"fills"`
	FillErrors   int64 `json:"fillErrors"`
	SharedWaits  int64 `json:"sharedWaits"`
	Expirations  int64 `json:"expirations"`
	Evictions    int64 `json:"evictions"`
	Size         int   `json:"size"`
	Capacity     int   `json:"capacity"`
}

// Cache is a TTL-bounded LRU of rendered results with single-flight fills
type Cache struct {
	index  *lru.Cache[Key, *Entry]
	group  singleflight.Group
	cfg    Config
	logger *log.Logger

	hits, negativeHits, misses     atomic.Int64
	fills, fillErrors, sharedWaits atomic.Int64
	expirations, evictions         atomic.Int64
}

// New creates a cache
func New(cfg Config) (*Cache, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", cfg.Size)
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", cfg.TTL)
	}
	if cfg.NegativeTTL < 0 {
		return nil, fmt.Errorf("negative TTL must not be negative, got %s", cfg.NegativeTTL)
	}
	if cfg.Recency < 0 {
		return nil, fmt.Errorf("recency interval must not be negative, got %s", cfg.Recency)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache{cfg: cfg, logger: cfg.Logger}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}

	index, err := lru.New[Key, *Entry](cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.index = index
	return c, nil
}

// Get returns a live entry for key. Expired entries are removed and
// reported as misses. Lookups take only the index read lock; an entry is
// promoted in the LRU order at most once per Config.Recency.
func (c *Cache) Get(key Key) (*Entry, bool) {
	entry, ok := c.index.Peek(key)
	if !ok {
		return nil, false
	}
	now := c.cfg.Now()
	if entry.Expired(now) {
		// Only drop the entry we saw; a concurrent refill may already have replaced it
		if current, ok := c.index.Peek(key); ok && current == entry {
			c.index.Remove(key)
		}
		c.expirations.Add(1)
		return nil, false
	}
	c.promote(key, entry, now)
	return entry, true
}

// promote moves key to the front of the LRU order. Concurrent readers of a
// recently promoted entry skip the exclusive lock.
func (c *Cache) promote(key Key, entry *Entry, now time.Time) {
	last := entry.promoted.Load()
	if c.cfg.Recency > 0 && now.Sub(time.Unix(0, last)) < c.cfg.Recency {
		return
	}
	if entry.promoted.CompareAndSwap(last, now.UnixNano()) {
		c.index.Get(key)
	}
}

// GetOrCompute returns the cached entry for key or fills it with compute.
// Concurrent callers for the same key share one compute call and receive
// its entry or its error. The boolean reports a cache hit. A negative entry
// is returned together with its recorded error.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute ComputeFunc) (*Entry, bool, error) {
	if entry, ok := c.Get(key); ok {
		return c.hit(entry)
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		// A fill may have completed between the miss above and joining the group
		if entry, ok := c.Get(key); ok {
			return fillResult{entry: entry, hit: true}, nil
		}
		entry, err := c.fill(ctx, key, compute)
		return fillResult{entry: entry}, err
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.sharedWaits.Add(1)
		}
		fr, _ := res.Val.(fillResult)
		if res.Err != nil {
			return fr.entry, false, res.Err
		}
		if fr.hit {
			return c.hit(fr.entry)
		}
		return fr.entry, false, nil
	}
}

type fillResult struct {
	entry *Entry
	hit   bool
}

func (c *Cache) hit(entry *Entry) (*Entry, bool, error) {
	if entry.Negative() {
		c.negativeHits.Add(1)
		return entry, true, entry.Err
	}
	c.hits.Add(1)
	return entry, true, nil
}

func (c *Cache) fill(ctx context.Context, key Key, compute ComputeFunc) (*Entry, error) {
	fillID := uuid.NewString()
	start := c.cfg.Now()

	entry, err := compute(ctx)
	if err != nil {
		c.fillErrors.Add(1)
		if errors.Is(err, types.ErrNotFound) && c.cfg.NegativeTTL > 0 {
			negative := &Entry{
				Key:       key,
				Err:       err,
				FillID:    fillID,
				CreatedAt: c.cfg.Now(),
			}
			negative.ExpiresAt = negative.CreatedAt.Add(c.cfg.NegativeTTL)
			c.add(key, negative)
			c.logger.Printf("cache: negative fill %s library=%s ttl=%s", fillID, key.Library, c.cfg.NegativeTTL)
			return negative, err
		}
		c.logger.Printf("cache: fill %s failed library=%s topic=%q: %v", fillID, key.Library, key.Topic, err)
		return nil, err
	}
	if entry == nil {
		c.fillErrors.Add(1)
		return nil, fmt.Errorf("cache: compute returned no entry for %s", key)
	}

	now := c.cfg.Now()
	entry.Key = key
	entry.Err = nil
	entry.FillID = fillID
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(c.cfg.TTL)
	c.add(key, entry)
	c.fills.Add(1)

	c.logger.Printf("cache: fill %s library=%s topic=%q limit=%d format=%s snippets=%d in %s",
		fillID, key.Library, key.Topic, key.Limit, key.Format, entry.Result.Len(), now.Sub(start))
	return entry, nil
}

// Invalidate drops every entry for a library, all versions included.
// It returns the number of entries removed.
func (c *Cache) Invalidate(library string) int {
	base := library
	if id, err := types.ParseLibraryID(library); err == nil {
		base = id.Base()
	}

	removed := 0
	for _, key := range c.index.Keys() {
		if key.Library == base || strings.HasPrefix(key.Library, base+"/") {
			if c.index.Remove(key) {
				removed++
			}
		}
	}
	if removed > 0 {
		c.logger.Printf("cache: invalidated %d entries for %s", removed, base)
	}
	return removed
}

// Purge drops every entry
func (c *Cache) Purge() {
	c.index.Purge()
}

// Len returns the number of resident entries, expired ones included
func (c *Cache) Len() int {
	return c.index.Len()
}

// Stats returns a snapshot of the counters
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:         c.hits.Load(),
		NegativeHits: c.negativeHits.Load(),
		Misses:       c.misses.Load(),
		Fills:        c.fills.Load(),
		FillErrors:   c.fillErrors.Load(),
		SharedWaits:  c.sharedWaits.Load(),
		Expirations:  c.expirations.Load(),
		Evictions:    c.evictions.Load(),
		Size:         c.index.Len(),
		Capacity:     c.cfg.Size,
	}
}

func (c *Cache) add(key Key, entry *Entry) {
	entry.promoted.Store(entry.CreatedAt.UnixNano())
	if c.index.Add(key, entry) {
		c.evictions.Add(1)
	}
}
