// Package app wires configuration into the services shared by the API server
// and the stationctl tool.
package app

import (
	"errors"
	"fmt"

	"stationhub/internal/config"
	database "stationhub/internal/db"
	"stationhub/internal/geo"
	"stationhub/internal/images"
	"stationhub/internal/importer"
	"stationhub/internal/nowplaying"
	"stationhub/internal/probe"
	"stationhub/internal/ratelimit"
	"stationhub/internal/station"
	"stationhub/internal/storage"
)

const itunesSearchURL = "https://itunes.apple.com/search"

type App struct {
	Config     *config.Config
	DB         *database.Client
	Limiter    ratelimit.Store
	Storage    *storage.Client
	Locator    *geo.Locator
	Images     *images.Pipeline
	Prober     *probe.Prober
	NowPlaying *nowplaying.Client
	Service    *station.Service
	Importer   *importer.Importer
}

// Open connects to the database, runs migrations and builds every service.
func Open(cfg *config.Config) (*App, error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		return nil, err
	}

	limiter, err := ratelimit.Open(cfg.RateLimit.Backend, cfg.RateLimit.BadgerPath)
	if err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ua := cfg.Services.UserAgent
	locator := geo.New(geo.Config{
		Endpoint:  cfg.Geo.Endpoint,
		Timeout:   cfg.Geo.Timeout,
		CacheTTL:  cfg.Geo.CacheTTL,
		CacheSize: cfg.Geo.CacheMax,
		UserAgent: ua,
	})
	store := storage.New(cfg)

	svc := station.NewService(
		station.NewGormStore(db.DB),
		limiter,
		station.Windows{
			Play:     cfg.RateLimit.PlayWindow,
			Like:     cfg.RateLimit.LikeWindow,
			Feedback: cfg.RateLimit.FeedbackWindow,
		},
		station.WithCountryResolver(locator),
	)

	return &App{
		Config:  cfg,
		DB:      db,
		Limiter: limiter,
		Storage: store,
		Locator: locator,
		Images: images.New(store, images.Config{
			Size:      cfg.Images.Size,
			MaxBytes:  cfg.Images.MaxBytes,
			Timeout:   cfg.Images.Timeout,
			UserAgent: ua,
		}),
		Prober: probe.New(cfg.Images.Timeout, ua),
		NowPlaying: nowplaying.New(nowplaying.Config{
			UserAgent: ua,
			ITunesURL: itunesSearchURL,
		}),
		Service: svc,
		Importer: importer.New(db.DB,
			importer.WithRadioBrowser(importer.NewRadioBrowser(cfg.Services.RadioBrowserURL, ua, 0)),
			importer.WithAreaResolver(locator),
			importer.WithRescorer(svc),
		),
	}, nil
}

// Close releases the rate limiter and the database pool.
func (a *App) Close() error {
	var errs []error
	if a.Limiter != nil {
		errs = append(errs, a.Limiter.Close())
	}
	if sqlDB, err := a.DB.DB.DB(); err == nil {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}
