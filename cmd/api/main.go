package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stationhub/internal/app"
	"stationhub/internal/config"
	database "stationhub/internal/db"
	"stationhub/internal/station"

	// Use an alias to prevent naming collisions with the 'server' variable
	apiserver "stationhub/internal/api/server"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting StationHub API Server...")

	// 1. Setup Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Config error: %v", err)
	}
	cfg.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Infrastructure (database, migrations, services)
	a, err := app.Open(cfg)
	if err != nil {
		log.Fatalf("❌ Startup failed: %v", err)
	}
	defer a.Close()

	// 3. Bootstrap admin account
	if err := database.SeedAdminUser(a.DB.DB, cfg.Auth.AdminUser, cfg.Auth.AdminPassword); err != nil {
		log.Fatalf("❌ Admin seed failed: %v", err)
	}

	// 4. Setup Metrics
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: cfg.Server.MetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Printf("📊 Metrics exposed at http://localhost%s/metrics", cfg.Server.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Metrics server error: %v", err)
		}
	}()

	// 5. Background recalculation
	worker := station.NewWorker(a.Service, cfg.Quality.RecalcInterval, cfg.Quality.BatchSize)
	go worker.Run(ctx)

	// 6. Start Server
	srv := apiserver.New(cfg, apiserver.Deps{
		DB:         a.DB,
		Service:    a.Service,
		Locator:    a.Locator,
		Prober:     a.Prober,
		Artwork:    a.Images,
		Images:     a.Storage,
		NowPlaying: a.NowPlaying,
	})

	log.Printf("🚀 API Server starting on %s", cfg.Server.Addr)
	if err := srv.Start(ctx); err != nil {
		log.Printf("❌ Server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Println("👋 API Server stopped")
}
