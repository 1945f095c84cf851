// Package cache holds the per-category metric records between
// refreshes. A TTL store answers reads while a record is fresh; expired
// categories are refreshed through a single-flight group so concurrent
// readers share one upstream round trip. The last known good record is
// kept separately, beyond its TTL, to feed the fallback policy.
package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/yourorg/tokendash/internal/config"
	"github.com/yourorg/tokendash/internal/model"
)

// Refresher rebuilds one category record from its upstream sources.
// prev is the last known record for the category, or nil.
type Refresher interface {
	Refresh(ctx context.Context, cat model.Category, prev *model.Record) *model.Record
}

// Layer caches one record per category with a per-category TTL.
type Layer struct {
	refresher Refresher
	store     *gocache.Cache
	ttls      map[model.Category]time.Duration
	group     singleflight.Group

	// lastKnown outlives TTL expiry; it is the fallback source for
	// refreshes that fail
	mu        sync.RWMutex
	lastKnown map[model.Category]*model.Record

	hits   func(cat model.Category)
	misses func(cat model.Category)
}

// New creates a cache layer over the given refresher, with TTLs from
// configuration. The bim_analysis category never expires on its own;
// it is invalidated explicitly when a new model is uploaded.
func New(refresher Refresher, cfg config.Config) *Layer {
	return &Layer{
		refresher: refresher,
		store:     gocache.New(gocache.NoExpiration, time.Minute),
		ttls: map[model.Category]time.Duration{
			model.CategoryNetwork:     cfg.NetworkTTL,
			model.CategoryToken:       cfg.TokenTTL,
			model.CategoryStaking:     cfg.StakingTTL,
			model.CategoryAssets:      cfg.AssetsTTL,
			model.CategoryBIMAnalysis: gocache.NoExpiration,
		},
		lastKnown: make(map[model.Category]*model.Record),
	}
}

// WithCounters registers hit/miss callbacks used for metrics export and
// returns the layer.
func (l *Layer) WithCounters(hits, misses func(cat model.Category)) *Layer {
	l.hits = hits
	l.misses = misses
	return l
}

// Get returns the record for a category, refreshing it when the cached
// copy has expired or was never fetched. Concurrent callers for the
// same expired category block on one shared refresh.
func (l *Layer) Get(ctx context.Context, cat model.Category) *model.Record {
	if rec, ok := l.store.Get(string(cat)); ok {
		if l.hits != nil {
			l.hits(cat)
		}
		return rec.(*model.Record)
	}
	if l.misses != nil {
		l.misses(cat)
	}

	// The refresh is decoupled from the requester's lifecycle: an
	// abandoned request must not cancel the refresh other waiters and
	// later readers depend on.
	v, _, shared := l.group.Do(string(cat), func() (any, error) {
		return l.refresh(context.WithoutCancel(ctx), cat), nil
	})
	if shared {
		logrus.Debugf("Shared in-flight refresh for %s", cat)
	}
	return v.(*model.Record)
}

// refresh rebuilds the record and swaps it in whole. Readers see either
// the old record or the new one, never a partially written mix.
func (l *Layer) refresh(ctx context.Context, cat model.Category) *model.Record {
	rec := l.refresher.Refresh(ctx, cat, l.Peek(cat))

	l.store.Set(string(cat), rec, l.ttls[cat])

	l.mu.Lock()
	l.lastKnown[cat] = rec
	l.mu.Unlock()

	return rec
}

// Peek returns the last known record for a category without triggering
// a refresh, even if its TTL has lapsed. Nil when never fetched.
func (l *Layer) Peek(cat model.Category) *model.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastKnown[cat]
}

// Invalidate expires the cached record for a category so the next read
// refreshes it. The last known record is kept as fallback input.
func (l *Layer) Invalidate(cat model.Category) {
	l.store.Delete(string(cat))
	logrus.Infof("Invalidated cached %s record", cat)
}

// Ages reports the age of every last known record, for /status.
func (l *Layer) Ages() map[string]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]string, len(l.lastKnown))
	for cat, rec := range l.lastKnown {
		out[string(cat)] = rec.Age().Truncate(time.Millisecond).String()
	}
	return out
}
