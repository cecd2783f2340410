package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/dpup/prefab"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dpup/routesafe/server/internal/api"
	"github.com/dpup/routesafe/server/internal/cache"
	"github.com/dpup/routesafe/server/internal/config"
	"github.com/dpup/routesafe/server/internal/lib/hazard"
	"github.com/dpup/routesafe/server/internal/services"
	"github.com/dpup/routesafe/server/internal/store"
)

const startupTimeout = 30 * time.Second

func main() {
	// .env is optional; real deployments set PF__ variables directly
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	appConfig := loadConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics, err := services.NewMetrics(nil)
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	hazardStore, closeStore := openStore(ctx, &appConfig.Store)
	defer closeStore()

	// Route the service through the snapshot cache when enabled
	var serviceStore store.HazardStore = hazardStore
	var refresher *services.PeriodicRefreshService
	if appConfig.Store.CacheEnabled() {
		cacheInstance := cache.NewCache()
		snapshots := cache.NewSnapshotStore(hazardStore, cacheInstance, appConfig.Store.CacheTTL)
		serviceStore = snapshots

		if appConfig.Store.RefreshInterval > 0 {
			refresher = services.NewPeriodicRefreshService(snapshots, appConfig.Store.RefreshInterval, metrics)
			if err := refresher.StartPeriodicRefresh(ctx); err != nil {
				log.Printf("Failed to start periodic refresh: %v", err)
			}
		}
		if appConfig.Store.CleanupInterval > 0 {
			cacheInstance.StartPeriodicCleanup(ctx, appConfig.Store.CleanupInterval)
		}
		log.Printf("Hazard snapshot cache enabled (ttl: %s)", appConfig.Store.CacheTTL)
	}

	safetyService := services.NewSafetyService(serviceStore, &appConfig.Safety, metrics)
	handler := api.NewHandler(safetyService, appConfig.Safety.MaxPathPoints)
	router := api.NewRouter(handler, metrics.Handler())

	log.Printf("Route Safety API Server starting")
	log.Printf("Corridor: %.2f km, lookback: %dh", appConfig.Safety.CorridorKm, appConfig.Safety.SinceHours)

	// Server configuration (port, etc.) is loaded from prefab.yaml/env vars
	server := prefab.New(
		prefab.WithGRPCReflection(),
		prefab.WithHTTPHandlerFunc("/", homepageHandler),
		prefab.WithHTTPHandlerFunc("/api/", router.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/healthz", router.ServeHTTP),
		prefab.WithHTTPHandlerFunc("/metrics", router.ServeHTTP),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server.ServiceRegistrar(), healthServer)

	// Start the server (blocks until shutdown)
	err = server.Start()
	healthServer.Shutdown()
	if refresher != nil {
		refresher.Stop()
	}
	if err != nil {
		log.Printf("Server failed: %v", err)
	}
}

// loadConfig overlays prefab.yaml and PF__ environment variables onto the
// defaults and validates the result
func loadConfig() *config.Config {
	appConfig := config.DefaultConfig()

	if err := prefab.Config.Unmarshal("safety", &appConfig.Safety); err != nil {
		log.Fatalf("Failed to unmarshal safety section: %v", err)
	}
	if err := prefab.Config.Unmarshal("store", &appConfig.Store); err != nil {
		log.Fatalf("Failed to unmarshal store section: %v", err)
	}

	if err := appConfig.Validate(); err != nil {
		log.Fatalf("%v", err)
	}
	return appConfig
}

// openStore connects to PostGIS when a database URL is configured and falls
// back to an in-memory store otherwise. The returned func releases resources.
func openStore(ctx context.Context, cfg *config.StoreConfig) (store.HazardStore, func()) {
	if cfg.DatabaseURL == "" {
		var seed []hazard.Hazard
		if cfg.SeedFile != "" {
			var err error
			seed, err = store.LoadSeedFile(cfg.SeedFile, time.Now().UTC())
			if err != nil {
				log.Fatalf("Failed to load seed hazards: %v", err)
			}
		}
		log.Printf("Using in-memory hazard store (%d seeded)", len(seed))
		return store.NewMemoryStore(seed...), func() {}
	}

	startCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	pool, err := pgxpool.New(startCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	if err := pool.Ping(startCtx); err != nil {
		pool.Close()
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := store.Migrate(startCtx, pool); err != nil {
		pool.Close()
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Printf("Using PostGIS hazard store")
	return store.NewPostgresStore(pool), pool.Close
}

// homepageHandler serves a plain text index at the server root
func homepageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, err := fmt.Fprint(w, `Route Safety API

POST /api/v1/incidents/near-route   incidents along a route with a risk score
GET  /api/v1/incidents/nearby       incidents around a point
POST /api/v1/routes/evaluate        weighted unsafe-area and alert score
POST /api/v1/routes/segments        route split by risk (JSON or ?format=kml)
GET  /api/v1/hazards                hazards inside a bounding box
POST /api/v1/hazards                report a hazard

GET  /healthz
GET  /metrics
`)
	if err != nil {
		slog.Error("Failed to write homepage", "error", err)
	}
}
