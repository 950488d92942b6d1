// Package cache memoizes adapter fetches per (source, date) with a TTL.
// Concurrent lookups of one key share a single fetch, and a failed fetch
// falls back to the last stored records when there are any.
package cache

import (
	"context"
	"time"

	"github.com/harrisonrobin/friday/pkg/logging"
	"github.com/harrisonrobin/friday/pkg/metrics"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/source"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched entry is served without refetching.
const DefaultTTL = 5 * time.Minute

// FetchFunc produces fresh records for a key.
type FetchFunc func(ctx context.Context) ([]model.RawRecord, error)

// Result is the outcome of a lookup. Stale is set when a fetch failed and
// older stored records were returned instead.
type Result struct {
	Records   []model.RawRecord
	FetchedAt time.Time
	Hit       bool
	Stale     bool
}

type Cache struct {
	store Store
	ttl   time.Duration
	log   *zap.Logger
	group singleflight.Group

	now func() time.Time
}

func New(store Store, ttl time.Duration, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{store: store, ttl: ttl, log: logging.OrNop(log), now: time.Now}
}

// GetOrFetch returns the stored records for k when younger than ttl
// (the cache default when ttl is zero), otherwise calls fetch and stores
// the result. A failed fetch returns the stale entry if one exists and
// a SourceUnavailable error if not.
func (c *Cache) GetOrFetch(ctx context.Context, k Key, ttl time.Duration, fetch FetchFunc) (Result, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	log := c.log.With(zap.String("source", k.Source), zap.String("date", k.Date.String()))

	old, err := c.store.Get(ctx, k)
	if err != nil {
		log.Warn("cache read failed, refetching", zap.Error(err))
		metrics.RecordCacheLookup(k.Source, metrics.Error)
		old = nil
	}
	if old != nil && c.now().Sub(old.WrittenAt) < ttl {
		metrics.RecordCacheLookup(k.Source, metrics.Hit)
		return Result{Records: old.Records, FetchedAt: old.WrittenAt, Hit: true}, nil
	}

	v, err, shared := c.group.Do(k.String(), func() (any, error) {
		recs, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		e := &Entry{Records: recs, WrittenAt: c.now()}
		if err := c.store.Put(ctx, k, e); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
		return e, nil
	})
	if err != nil {
		if old != nil {
			log.Warn("fetch failed, serving stale records",
				zap.Error(err), zap.Time("written_at", old.WrittenAt))
			metrics.RecordCacheLookup(k.Source, metrics.Stale)
			return Result{Records: old.Records, FetchedAt: old.WrittenAt, Stale: true}, nil
		}
		return Result{}, source.Unavailable(k.Source, err)
	}

	metrics.RecordCacheLookup(k.Source, metrics.Miss)
	e := v.(*Entry)
	log.Debug("fetched", zap.Int("records", len(e.Records)), zap.Bool("shared", shared))
	return Result{Records: e.Records, FetchedAt: e.WrittenAt}, nil
}

// Invalidate drops the entry for k.
func (c *Cache) Invalidate(ctx context.Context, k Key) error {
	return c.store.Delete(ctx, k)
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}
