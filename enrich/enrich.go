// Package enrich attaches Wikimedia Commons imagery to batches of places.
package enrich

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"mahatour/models"
	"mahatour/wikimedia"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Workers      int
	ItemTimeout  time.Duration
	BatchTimeout time.Duration
	// Persist writes every updated place back through the Persister.
	Persist bool
	// Refresh also looks up places that already carry Wikimedia data.
	Refresh bool
}

// Result is the outcome of one pass. Places always has the input's length and
// order.
type Result struct {
	Places        []models.Place `json:"places"`
	Updated       int            `json:"updated"`
	Failed        int            `json:"failed"`
	PersistFailed int            `json:"persistFailed"`
	Cached        bool           `json:"cached"`
}

func (r Result) clone() Result {
	r.Places = clonePlaces(r.Places)
	return r
}

type Service struct {
	lookup   wikimedia.Lookuper
	persist  Persister
	log      *zap.Logger
	Defaults Options
}

// NewService wires a lookup provider and an optional persister. persist may be
// nil, in which case Options.Persist is ignored.
func NewService(lookup wikimedia.Lookuper, persist Persister, defaults Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{lookup: lookup, persist: persist, log: log.Named("enrich"), Defaults: defaults}
}

// SearchTerm is the free-text query sent to the image provider for p.
func SearchTerm(p models.Place) string {
	return fmt.Sprintf("%s %s Maharashtra India", p.Name, p.Location)
}

// Merge copies a match into p. The Wikimedia block is always replaced; the
// image URL only fills an empty slot.
func Merge(p *models.Place, m *models.ImageMatch) {
	info := m.Wikimedia
	p.Wikimedia = &info
	if p.ImageURL == "" {
		p.ImageURL = m.ImageURL
	}
}

func eligible(p models.Place, refresh bool) bool {
	if refresh {
		return models.IsEnrichableCategory(p.Category)
	}
	return p.Enrichable()
}

// Enrich runs one pass over places. cache may be nil.
//
// An unchanged batch (same id set as the last completed pass on cache) is
// answered from the cache without any lookups. A lookup failure only leaves
// its own place untouched. When ctx is cancelled or the batch deadline passes,
// the places finished so far are returned together with the context error and
// nothing is cached.
func (s *Service) Enrich(ctx context.Context, cache *Cache, places []models.Place, opts Options) (Result, error) {
	if cache != nil {
		if res, ok := cache.lookup(places); ok {
			return res, nil
		}
	}

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	batchCtx := ctx
	if opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, opts.BatchTimeout)
		defer cancel()
	}

	if opts.Refresh {
		batchCtx = wikimedia.WithRefresh(batchCtx)
	}

	out := clonePlaces(places)
	var updated, failed, persistFailed atomic.Int32
	persist := opts.Persist && s.persist != nil
	start := time.Now()

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i := range out {
		if !eligible(out[i], opts.Refresh) {
			continue
		}
		if batchCtx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if s.enrichOne(batchCtx, &out[i], opts.ItemTimeout) {
				updated.Add(1)
				if persist && !s.persistOne(batchCtx, out[i], opts.ItemTimeout) {
					persistFailed.Add(1)
				}
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := Result{
		Places:        out,
		Updated:       int(updated.Load()),
		Failed:        int(failed.Load()),
		PersistFailed: int(persistFailed.Load()),
	}
	if res.Updated == 0 {
		res.Places = clonePlaces(places)
	}

	if err := batchCtx.Err(); err != nil {
		s.log.Warn("enrichment pass interrupted",
			zap.Int("places", len(places)),
			zap.Int("updated", res.Updated),
			zap.Error(err))
		return res, err
	}

	s.log.Info("enrichment pass finished",
		zap.Int("places", len(places)),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Int("persistFailed", res.PersistFailed),
		zap.Duration("took", time.Since(start)))

	if cache != nil {
		cache.store(places, res)
	}
	return res, nil
}

func (s *Service) enrichOne(ctx context.Context, p *models.Place, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	m, err := s.lookup.Lookup(ctx, SearchTerm(*p))
	if err != nil {
		s.log.Debug("no image for place", zap.String("place", p.ID), zap.String("name", p.Name), zap.Error(err))
		return false
	}
	Merge(p, m)
	return true
}

func (s *Service) persistOne(ctx context.Context, p models.Place, timeout time.Duration) bool {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.persist.Persist(ctx, p); err != nil {
		s.log.Error("persisting enrichment failed", zap.String("place", p.ID), zap.Error(err))
		return false
	}
	return true
}

func clonePlaces(in []models.Place) []models.Place {
	if in == nil {
		return nil
	}
	out := make([]models.Place, len(in))
	copy(out, in)
	for i := range out {
		if out[i].Wikimedia != nil {
			w := *out[i].Wikimedia
			out[i].Wikimedia = &w
		}
	}
	return out
}
