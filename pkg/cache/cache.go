// Package cache provides an in-memory LRU result cache for ad-hoc queries,
// with per-entry TTL and single-flight execution so concurrent identical
// queries hit the store at most once.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/docfusion/docfusion/pkg/errors"
	"github.com/docfusion/docfusion/pkg/models"
)

type entry struct {
	result    *models.QueryResult
	expiresAt time.Time
}

// QueryCache caches query results keyed by normalized query text.
type QueryCache struct {
	lru    *lru.Cache[string, *entry]
	cfg    Config
	group  singleflight.Group
	stats  stats
	gen    atomic.Uint64
	now    func() time.Time
	logger zerolog.Logger
}

// New creates a query cache with the given configuration.
func New(cfg Config, logger zerolog.Logger) (*QueryCache, error) {
	cfg.Validate()
	l, err := lru.New[string, *entry](cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	return &QueryCache{
		lru:    l,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "query_cache").Logger(),
	}, nil
}

// Normalize canonicalizes query text for use as a cache key. Whitespace
// runs collapse to single spaces; letter case is preserved because string
// literals inside the query are case-sensitive.
func Normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

// Get returns the cached result for key, if present and unexpired. Expired
// entries are removed at lookup time.
func (c *QueryCache) Get(key string) (*models.QueryResult, bool) {
	res, ok := c.lookup(key)
	if ok {
		c.stats.hits.Add(1)
	} else {
		c.stats.misses.Add(1)
	}
	return res, ok
}

// lookup is Get without hit/miss accounting, for re-checks inside an
// execution flight.
func (c *QueryCache) lookup(key string) (*models.QueryResult, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.stats.expirations.Add(1)
		return nil, false
	}
	res := *e.result
	res.Cached = true
	return &res, true
}

// Put stores a result under key. Results exceeding the configured row bound
// are not stored.
func (c *QueryCache) Put(key string, result *models.QueryResult) {
	c.put(key, result, c.gen.Load())
}

func (c *QueryCache) put(key string, result *models.QueryResult, gen uint64) {
	if result == nil || len(result.Rows) > c.cfg.MaxCachedRows {
		return
	}
	// A mutation invalidated the cache while this result was being
	// computed; storing it would reinstate stale data.
	if gen != c.gen.Load() {
		return
	}
	if evicted := c.lru.Add(key, &entry{result: result, expiresAt: c.now().Add(c.cfg.TTL)}); evicted {
		c.stats.evictions.Add(1)
	}
}

// GetOrExecute returns the cached result for key, or runs execute and
// caches its result. Concurrent callers with the same key share a single
// execution; the shared outcome, success or failure, is delivered to all
// of them. Cancellation is the exception: a waiter whose own context is
// still live re-attempts instead of inheriting the executing caller's
// cancellation.
func (c *QueryCache) GetOrExecute(ctx context.Context, key string, execute func(context.Context) (*models.QueryResult, error)) (*models.QueryResult, error) {
	if res, ok := c.Get(key); ok {
		return res, nil
	}

	for {
		v, err, shared := c.group.Do(key, func() (interface{}, error) {
			// Another flight may have filled the entry between our miss and
			// acquiring the flight.
			if res, ok := c.lookup(key); ok {
				return res, nil
			}
			gen := c.gen.Load()
			res, err := execute(ctx)
			if err != nil {
				return nil, err
			}
			c.put(key, res, gen)
			return res, nil
		})
		if err != nil {
			if shared && isCancellation(err) && ctx.Err() == nil {
				continue
			}
			return nil, err
		}

		// The pointer delivered by the flight is the one that went into
		// the cache, shared by every caller that joined; hand each caller
		// its own header so mutating a response never reaches the entry.
		res := *v.(*models.QueryResult)
		return &res, nil
	}
}

// isCancellation reports whether err came from a dead context rather than
// from the query itself.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.GetCode(err) == apperrors.CodeCanceled
}

// Invalidate clears all cached entries. Called after every successful
// mutation so queries never observe stale documents.
func (c *QueryCache) Invalidate() {
	c.gen.Add(1)
	purged := c.lru.Len()
	c.lru.Purge()
	if purged > 0 {
		c.logger.Debug().Int("purged", purged).Msg("query cache invalidated")
	}
}

// Stats returns a snapshot of cache counters.
func (c *QueryCache) Stats() Stats {
	return c.stats.snapshot(c.lru.Len())
}

// Len returns the current number of cached entries.
func (c *QueryCache) Len() int {
	return c.lru.Len()
}
