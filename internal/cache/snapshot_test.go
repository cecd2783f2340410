package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/routesafe/server/internal/lib/geo"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/store"
)

// countingStore wraps a memory store, counting queries and optionally failing
type countingStore struct {
	*store.MemoryStore
	mu      sync.Mutex
	queries int
	fail    error
}

func (c *countingStore) Query(ctx context.Context, f store.Filter) ([]hazard.Hazard, error) {
	c.mu.Lock()
	c.queries++
	fail := c.fail
	c.mu.Unlock()
	if fail != nil {
		return nil, fail
	}
	return c.MemoryStore.Query(ctx, f)
}

func testHazard(id string, kind hazard.Kind) hazard.Hazard {
	return hazard.Hazard{
		ID:         id,
		Kind:       kind,
		Title:      id,
		Location:   hazard.PointLocation{Point: geo.Point{Latitude: -26.2, Longitude: 28.04}},
		Severity:   3,
		Active:     true,
		ReportedAt: time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC),
	}
}

func newSnapshotFixture() (*SnapshotStore, *countingStore, *fakeClock) {
	inner := &countingStore{MemoryStore: store.NewMemoryStore(
		testHazard("inc", hazard.KindIncident),
		testHazard("alert", hazard.KindAlert),
	)}
	c, clock := newTestCache()
	return NewSnapshotStore(inner, c, time.Minute), inner, clock
}

func TestSnapshotStore_ServesFromCache(t *testing.T) {
	s, inner, _ := newSnapshotFixture()
	ctx := context.Background()

	all, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	alerts, err := s.Query(ctx, store.Filter{Kinds: []hazard.Kind{hazard.KindAlert}})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert", alerts[0].ID)

	limited, err := s.Query(ctx, store.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	assert.Equal(t, 1, inner.queries, "snapshot loaded once")
}

func TestSnapshotStore_ReloadsAfterTTL(t *testing.T) {
	s, inner, clock := newSnapshotFixture()
	ctx := context.Background()

	_, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.queries)
}

func TestSnapshotStore_ServesStaleOnFailure(t *testing.T) {
	s, inner, clock := newSnapshotFixture()
	ctx := context.Background()

	_, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)

	inner.fail = errors.New("database unavailable")
	clock.Advance(90 * time.Second)

	got, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	clock.Advance(time.Minute)
	_, err = s.Query(ctx, store.Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
}

func TestSnapshotStore_CreateInvalidatesSnapshot(t *testing.T) {
	s, inner, _ := newSnapshotFixture()
	ctx := context.Background()

	_, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)

	_, err = s.Create(ctx, testHazard("new", hazard.KindIncident))
	require.NoError(t, err)

	got, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 2, inner.queries)
}

// pausingStore holds its first Query after reading, until release is closed
type pausingStore struct {
	*store.MemoryStore
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (p *pausingStore) Query(ctx context.Context, f store.Filter) ([]hazard.Hazard, error) {
	hazards, err := p.MemoryStore.Query(ctx, f)
	p.once.Do(func() {
		close(p.loaded)
		<-p.release
	})
	return hazards, err
}

func TestSnapshotStore_CreateDuringRefreshIsNotLost(t *testing.T) {
	inner := &pausingStore{
		MemoryStore: store.NewMemoryStore(),
		loaded:      make(chan struct{}),
		release:     make(chan struct{}),
	}
	c, _ := newTestCache()
	s := NewSnapshotStore(inner, c, time.Minute)
	ctx := context.Background()

	refreshed := make(chan []hazard.Hazard)
	go func() {
		hazards, err := s.Refresh(ctx)
		assert.NoError(t, err)
		refreshed <- hazards
	}()

	<-inner.loaded
	_, err := s.Create(ctx, testHazard("new", hazard.KindIncident))
	require.NoError(t, err)
	close(inner.release)
	assert.Empty(t, <-refreshed, "the in-flight load read the table before the insert")

	assert.Equal(t, 1, inner.Len())
	got, err := s.Query(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
}
