// Package assemble builds the composite dashboard payload out of the
// cached per-category records.
package assemble

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourorg/tokendash/internal/aggregate"
	"github.com/yourorg/tokendash/internal/cache"
	"github.com/yourorg/tokendash/internal/model"
)

// Assembler answers dashboard requests from the cache layer. Every
// requested category is present in the response, whatever state its
// sources are in; degraded categories carry fallback or default data
// and are flagged stale.
type Assembler struct {
	cache *cache.Layer
}

// New creates an assembler over the given cache layer.
func New(cache *cache.Layer) *Assembler {
	return &Assembler{cache: cache}
}

// Assemble gathers the records for the requested categories, fetching
// expired ones concurrently. Duplicate categories collapse to one
// entry. An empty request yields every category.
func (a *Assembler) Assemble(ctx context.Context, cats []model.Category) model.Payload {
	if len(cats) == 0 {
		cats = model.AllCategories()
	}

	seen := make(map[model.Category]bool, len(cats))
	unique := cats[:0:0]
	for _, cat := range cats {
		if !seen[cat] {
			seen[cat] = true
			unique = append(unique, cat)
		}
	}

	payload := make(model.Payload, len(unique))
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	for _, cat := range unique {
		cat := cat
		g.Go(func() error {
			rec := normalize(cat, a.cache.Get(ctx, cat))
			mu.Lock()
			payload[cat] = rec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stale := 0
	for _, rec := range payload {
		if rec.Stale {
			stale++
		}
	}
	if stale > 0 {
		logrus.WithFields(logrus.Fields{
			"categories": len(payload),
			"stale":      stale,
		}).Warn("Dashboard assembled with degraded categories")
	}

	return payload
}

// normalize guarantees the canonical key set of a category: any key
// missing from the record is filled from the static defaults. Records
// are immutable, so patching copies first.
func normalize(cat model.Category, rec *model.Record) *model.Record {
	var patched *model.Record
	for k, v := range aggregate.Defaults(cat) {
		if _, ok := rec.Fields[k]; ok {
			continue
		}
		if patched == nil {
			patched = rec.Clone(rec.Source, rec.Stale)
		}
		patched.Fields[k] = v
	}
	if patched == nil {
		return rec
	}
	return patched
}
