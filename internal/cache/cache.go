package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-ingest/internal/config"
	"github.com/spec-kit/ticket-ingest/internal/domain"
)

// Loader produces a fresh Dataset, typically fetch + normalize.
type Loader func(ctx context.Context) (*domain.Dataset, error)

// Info describes the cache state for introspection displays.
type Info struct {
	RawCount      int
	FilteredCount int
	FetchedAt     time.Time
	TTL           time.Duration
	Valid         bool
	ExpiresIn     time.Duration
}

// DatasetCache owns the last successfully loaded dataset. The snapshot is
// replaced atomically on reload and never mutated in place; concurrent
// reload requests collapse into one in-flight load.
type DatasetCache struct {
	loader Loader
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu        sync.RWMutex
	dataset   *domain.Dataset
	fetchedAt time.Time

	group singleflight.Group
}

// NewDatasetCache constructs a cache around the loader.
func NewDatasetCache(cfg config.CacheConfig, loader Loader, logger *zap.Logger) *DatasetCache {
	return &DatasetCache{
		loader: loader,
		ttl:    cfg.TTL(),
		logger: logger,
		now:    time.Now,
	}
}

// Get returns the current dataset, performing a synchronous initial load
// when nothing has been loaded yet.
func (c *DatasetCache) Get(ctx context.Context) (*domain.Dataset, error) {
	c.mu.RLock()
	dataset := c.dataset
	c.mu.RUnlock()
	if dataset != nil {
		return dataset, nil
	}
	return c.reload(ctx)
}

// EnsureFresh reloads when the snapshot has outlived its TTL. A failed
// TTL-triggered reload keeps the stale dataset in place; the error is
// returned so explicit callers can surface it, but readers keep working.
func (c *DatasetCache) EnsureFresh(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.dataset != nil
	age := c.now().Sub(c.fetchedAt)
	c.mu.RUnlock()

	if loaded && age < c.ttl {
		return nil
	}
	_, err := c.reloadIfStale(ctx)
	return err
}

// ForceReload reloads unconditionally, used by the refresh workflow.
func (c *DatasetCache) ForceReload(ctx context.Context) error {
	_, err := c.reload(ctx)
	return err
}

// reloadResult marks whether a shared flight actually fetched, so forced
// callers can tell a real load apart from the freshness no-op.
type reloadResult struct {
	dataset *domain.Dataset
	fetched bool
}

// reloadIfStale re-checks freshness inside the single-flight function so a
// caller that raced past the outer check just after a reload finished does
// not trigger a second fetch.
func (c *DatasetCache) reloadIfStale(ctx context.Context) (*domain.Dataset, error) {
	result, err, _ := c.group.Do("reload", func() (any, error) {
		c.mu.RLock()
		dataset := c.dataset
		fresh := dataset != nil && c.now().Sub(c.fetchedAt) < c.ttl
		c.mu.RUnlock()
		if fresh {
			return reloadResult{dataset: dataset}, nil
		}
		loaded, err := c.load(ctx)
		if err != nil {
			return reloadResult{}, err
		}
		return reloadResult{dataset: loaded, fetched: true}, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(reloadResult).dataset, nil
}

// Info reports cache statistics.
func (c *DatasetCache) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info := Info{TTL: c.ttl}
	if c.dataset == nil {
		return info
	}
	info.RawCount = c.dataset.RawCount
	info.FilteredCount = c.dataset.Len()
	info.FetchedAt = c.fetchedAt
	remaining := c.ttl - c.now().Sub(c.fetchedAt)
	if remaining > 0 {
		info.Valid = true
		info.ExpiresIn = remaining
	}
	return info
}

// reload funnels concurrent reload requests through one in-flight load.
// On failure the previous snapshot is retained. A caller that joined a
// flight which resolved to the freshness no-op retries, so a forced reload
// always observes a real fetch.
func (c *DatasetCache) reload(ctx context.Context) (*domain.Dataset, error) {
	for {
		result, err, _ := c.group.Do("reload", func() (any, error) {
			dataset, err := c.load(ctx)
			if err != nil {
				return reloadResult{}, err
			}
			return reloadResult{dataset: dataset, fetched: true}, nil
		})
		if err != nil {
			return nil, err
		}
		if res := result.(reloadResult); res.fetched {
			return res.dataset, nil
		}
	}
}

// load performs one fetch+normalize and swaps the snapshot on success.
// Callers must hold the single-flight slot, not the mutex.
func (c *DatasetCache) load(ctx context.Context) (*domain.Dataset, error) {
	dataset, err := c.loader(ctx)
	if err != nil {
		c.logger.Warn("dataset reload failed; keeping stale snapshot", zap.Error(err))
		return nil, err
	}

	c.mu.Lock()
	c.dataset = dataset
	c.fetchedAt = c.now()
	c.mu.Unlock()

	c.logger.Info("dataset reloaded",
		zap.Int("raw_rows", dataset.RawCount),
		zap.Int("records", dataset.Len()),
	)
	return dataset, nil
}
