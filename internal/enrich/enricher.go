// Package enrich attaches related entities to a primary payload. Lookups that
// fail for any reason are replaced with caller-supplied placeholders so the
// primary payload is never lost to a secondary failure.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// Getter fetches one entity by id.
type Getter[K comparable, V any] interface {
	Get(ctx context.Context, id K) (V, error)
}

// BatchGetter fetches every existing entity among ids in one call. Missing ids are omitted.
type BatchGetter[K comparable, V any] interface {
	Getter[K, V]
	GetMany(ctx context.Context, ids []K) ([]V, error)
}

// Config describes one enrichment source.
type Config[K comparable, V any] struct {
	// Source names the lookup in logs and metrics.
	Source string
	Lookup Getter[K, V]
	// Key extracts the id of a value returned by a batched lookup.
	Key         func(V) K
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// Enricher resolves ids against one source, batched when the source supports it.
type Enricher[K comparable, V any] struct {
	source      string
	lookup      Getter[K, V]
	batch       BatchGetter[K, V]
	key         func(V) K
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
}

// New validates cfg and constructs an Enricher.
func New[K comparable, V any](cfg Config[K, V]) (*Enricher[K, V], error) {
	if cfg.Lookup == nil {
		return nil, errors.New("enrich: lookup is required")
	}
	if cfg.Source == "" {
		return nil, errors.New("enrich: source name is required")
	}
	enricher := &Enricher[K, V]{
		source:      cfg.Source,
		lookup:      cfg.Lookup,
		key:         cfg.Key,
		timeout:     cfg.Timeout,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if batch, ok := cfg.Lookup.(BatchGetter[K, V]); ok {
		if cfg.Key == nil {
			return nil, fmt.Errorf("enrich: %s supports batched lookups but no key function was given", cfg.Source)
		}
		enricher.batch = batch
	}
	if enricher.concurrency <= 0 {
		enricher.concurrency = defaultConcurrency
	}
	if enricher.logger == nil {
		enricher.logger = zap.NewNop()
	}
	return enricher, nil
}

// One resolves a single id, returning fallback(id) when the lookup fails.
func (e *Enricher[K, V]) One(ctx context.Context, id K, fallback func(K) V) V {
	value, err := e.get(ctx, id)
	if err != nil {
		e.substitute(id, err)
		return fallback(id)
	}
	return value
}

// Many resolves ids and returns one value per input position. Each id that
// cannot be resolved gets fallback(index, id); the other positions are unaffected.
func (e *Enricher[K, V]) Many(ctx context.Context, ids []K, fallback func(index int, id K) V) []V {
	results := make([]V, len(ids))
	if len(ids) == 0 {
		return results
	}

	unique := uniqueKeys(ids)
	var found map[K]V
	var failures map[K]error
	if e.batch != nil {
		found, failures = e.resolveBatch(ctx, unique)
	} else {
		found, failures = e.resolveEach(ctx, unique)
	}

	for index, id := range ids {
		if value, ok := found[id]; ok {
			results[index] = value
			continue
		}
		e.substitute(id, failures[id])
		results[index] = fallback(index, id)
	}
	return results
}

func (e *Enricher[K, V]) resolveBatch(ctx context.Context, ids []K) (map[K]V, map[K]error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	e.metrics.IncLookup(e.source, metrics.LookupModeBatch)
	values, err := e.batch.GetMany(callCtx, ids)
	if err != nil {
		failures := make(map[K]error, len(ids))
		for _, id := range ids {
			failures[id] = err
		}
		return map[K]V{}, failures
	}

	found := make(map[K]V, len(values))
	for _, value := range values {
		found[e.key(value)] = value
	}
	failures := make(map[K]error)
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			failures[id] = errMissingFromBatch
		}
	}
	return found, failures
}

// resolveEach issues the per-id lookups concurrently. Goroutines never return an
// error, so one failure cannot cancel its siblings.
func (e *Enricher[K, V]) resolveEach(ctx context.Context, ids []K) (map[K]V, map[K]error) {
	values := make([]V, len(ids))
	errs := make([]error, len(ids))

	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for index, id := range ids {
		index, id := index, id
		group.Go(func() error {
			values[index], errs[index] = e.get(ctx, id)
			return nil
		})
	}
	_ = group.Wait()

	found := make(map[K]V, len(ids))
	failures := make(map[K]error)
	for index, id := range ids {
		if errs[index] != nil {
			failures[id] = errs[index]
			continue
		}
		found[id] = values[index]
	}
	return found, failures
}

func (e *Enricher[K, V]) get(ctx context.Context, id K) (V, error) {
	callCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	e.metrics.IncLookup(e.source, metrics.LookupModeSingle)
	return e.lookup.Get(callCtx, id)
}

func (e *Enricher[K, V]) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

func (e *Enricher[K, V]) substitute(id K, cause error) {
	if cause == nil {
		cause = errMissingFromBatch
	}
	e.metrics.IncPlaceholder(e.source)
	e.logger.Warn("enrichment lookup failed, using placeholder",
		zap.String("source", e.source),
		zap.Any("id", id),
		zap.Error(cause))
}

var errMissingFromBatch = errors.New("enrich: id missing from batched result")

func uniqueKeys[K comparable](ids []K) []K {
	seen := make(map[K]struct{}, len(ids))
	unique := make([]K, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
