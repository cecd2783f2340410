package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
)

// MemoryStore keeps hazards in process. It backs tests, the route-check CLI
// and servers started without a database URL.
type MemoryStore struct {
	hazards []hazard.Hazard
	ids     map[string]struct{}
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewMemoryStore creates a store seeded with the given hazards
func NewMemoryStore(seed ...hazard.Hazard) *MemoryStore {
	m := &MemoryStore{
		ids: make(map[string]struct{}),
		now: time.Now,
	}
	for _, h := range seed {
		m.hazards = append(m.hazards, h)
		m.ids[h.ID] = struct{}{}
	}
	return m
}

// Query returns matching hazards ordered by ReportedAt, newest first
func (m *MemoryStore) Query(ctx context.Context, f Filter) ([]hazard.Hazard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mutex.RLock()
	results := make([]hazard.Hazard, 0, len(m.hazards))
	for _, h := range m.hazards {
		if f.Matches(h) {
			results = append(results, h)
		}
	}
	m.mutex.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ReportedAt.After(results[j].ReportedAt)
	})
	if f.Limit > 0 && len(results) > f.Limit {
		results = results[:f.Limit]
	}
	return results, nil
}

// Create stores h, stamping CreatedAt when unset
func (m *MemoryStore) Create(ctx context.Context, h hazard.Hazard) (hazard.Hazard, error) {
	if err := ctx.Err(); err != nil {
		return hazard.Hazard{}, err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.ids[h.ID]; exists {
		return hazard.Hazard{}, fmt.Errorf("%w: %s", ErrDuplicateID, h.ID)
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = m.now().UTC()
	}
	m.hazards = append(m.hazards, h)
	m.ids[h.ID] = struct{}{}
	return h, nil
}

// Len returns the number of stored hazards
func (m *MemoryStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.hazards)
}
