package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dpup/routesafe/server/internal/lib/hazard"
)

// SnapshotLoader reloads a cached hazard snapshot
type SnapshotLoader interface {
	Refresh(ctx context.Context) ([]hazard.Hazard, error)
}

// PeriodicRefreshService reloads the hazard snapshot ahead of its expiry so
// request paths rarely block on the database
type PeriodicRefreshService struct {
	loader   SnapshotLoader
	interval time.Duration
	metrics  *Metrics

	mu       sync.Mutex
	stopChan chan struct{}
	running  bool
}

// NewPeriodicRefreshService creates a refresher for loader
func NewPeriodicRefreshService(loader SnapshotLoader, interval time.Duration, metrics *Metrics) *PeriodicRefreshService {
	return &PeriodicRefreshService{
		loader:   loader,
		interval: interval,
		metrics:  metrics,
	}
}

// StartPeriodicRefresh loads once immediately and then every interval until
// ctx is cancelled or Stop is called
func (p *PeriodicRefreshService) StartPeriodicRefresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}

	p.running = true
	p.stopChan = make(chan struct{})
	log.Printf("Starting hazard snapshot refresh every %v", p.interval)

	go p.refreshLoop(ctx, p.stopChan)
	return nil
}

// Stop ends the refresh loop
func (p *PeriodicRefreshService) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}

	p.running = false
	close(p.stopChan)
	log.Printf("Stopped hazard snapshot refresh")
}

// IsRunning returns whether the refresh loop is active
func (p *PeriodicRefreshService) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PeriodicRefreshService) refreshLoop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Hazard snapshot refresh stopping due to context cancellation")
			return
		case <-stop:
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *PeriodicRefreshService) refresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	hazards, err := p.loader.Refresh(refreshCtx)
	p.metrics.refreshed(err)
	if err != nil {
		log.Printf("Hazard snapshot refresh failed: %v", err)
		return
	}
	log.Printf("Hazard snapshot refreshed (%d hazards)", len(hazards))
}
