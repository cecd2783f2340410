package cache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/store"
)

const snapshotKey = "hazards:snapshot"

// SnapshotStore serves hazard queries from a cached copy of the full hazard
// set, filtering in memory. When a reload fails it keeps serving the previous
// snapshot until that is twice its TTL old.
type SnapshotStore struct {
	inner  store.HazardStore
	cache  *Cache
	ttl    time.Duration
	loadMu sync.Mutex

	// gen counts invalidations. A load that started before the latest
	// invalidation must not be cached.
	genMu sync.Mutex
	gen   uint64
}

// NewSnapshotStore wraps inner with a snapshot cached for ttl
func NewSnapshotStore(inner store.HazardStore, c *Cache, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{inner: inner, cache: c, ttl: ttl}
}

// Query filters the current snapshot. Results keep the inner store's order.
func (s *SnapshotStore) Query(ctx context.Context, f store.Filter) ([]hazard.Hazard, error) {
	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	results := []hazard.Hazard{}
	for _, h := range snapshot {
		if f.Matches(h) {
			results = append(results, h)
			if f.Limit > 0 && len(results) == f.Limit {
				break
			}
		}
	}
	return results, nil
}

// Create writes through to the inner store and drops the snapshot
func (s *SnapshotStore) Create(ctx context.Context, h hazard.Hazard) (hazard.Hazard, error) {
	created, err := s.inner.Create(ctx, h)
	if err != nil {
		return hazard.Hazard{}, err
	}
	s.invalidate()
	return created, nil
}

func (s *SnapshotStore) invalidate() {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.gen++
	s.cache.Delete(snapshotKey)
}

// Refresh reloads the snapshot from the inner store. A load overtaken by a
// Create is returned to the caller but not cached.
func (s *SnapshotStore) Refresh(ctx context.Context) ([]hazard.Hazard, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.genMu.Lock()
	startGen := s.gen
	s.genMu.Unlock()

	hazards, err := s.inner.Query(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load hazard snapshot: %w", err)
	}

	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.gen != startGen {
		return hazards, nil
	}
	if err := s.cache.Set(snapshotKey, hazards, s.ttl, "store"); err != nil {
		log.Printf("Failed to cache hazard snapshot: %v", err)
	}
	return hazards, nil
}

func (s *SnapshotStore) snapshot(ctx context.Context) ([]hazard.Hazard, error) {
	var cached []hazard.Hazard
	found, err := s.cache.Get(snapshotKey, &cached)
	if err != nil {
		log.Printf("Cache error: %v", err)
	}
	if found {
		return cached, nil
	}

	fresh, err := s.Refresh(ctx)
	if err == nil {
		return fresh, nil
	}

	var stale []hazard.Hazard
	if entry, ok, _ := s.cache.GetStale(snapshotKey, &stale); ok {
		log.Printf("Refresh failed, serving hazard snapshot from %s: %v", entry.CreatedAt.Format(time.RFC3339), err)
		return stale, nil
	}
	return nil, err
}
