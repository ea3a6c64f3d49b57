package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stationhub/internal/config"
	database "stationhub/internal/db"
	"stationhub/internal/models"
	"stationhub/internal/station"

	"stationhub/internal/api/handlers"
	"stationhub/internal/api/middleware"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	DB         *database.Client
	Service    *station.Service
	Locator    handlers.CountryLocator
	Prober     handlers.StreamProber
	Artwork    handlers.ArtworkPipeline
	Images     handlers.ImageStore
	NowPlaying handlers.TrackSource
}

type Server struct {
	cfg    *config.Config
	deps   Deps
	router *gin.Engine
}

func New(cfg *config.Config, deps Deps) *Server {
	if cfg.Server.Mode != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode) // Set to Release for production
	}

	handlers.RegisterValidators()

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: gin.New(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	if !s.cfg.Server.TrustProxy {
		_ = s.router.SetTrustedProxies(nil)
	}

	// CORS Configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}

	// IMPORTANT: "Authorization" must be allowed so the frontend can send the JWT
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{middleware.HeaderRequestID, "Retry-After"}

	s.router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.SilentLogger(),
		middleware.Metrics(),
		cors.New(corsConfig),
		middleware.RateLimit(s.cfg.Server.RequestRate),
	)
}

func (s *Server) setupRoutes() {
	db := s.deps.DB.DB

	// 1. Initialize Modular Handlers
	authHandler := handlers.NewAuthHandler(db, []byte(s.cfg.Auth.JWTSecret), s.cfg.Auth.TokenTTL)
	statsHandler := handlers.NewStatsHandler(db)
	stationHandler := handlers.NewStationHandler(db, s.deps.Service, s.deps.Locator, s.deps.Images)
	engagementHandler := handlers.NewEngagementHandler(db, s.deps.Service, s.cfg.Quality.BatchSize)
	mediaHandler := handlers.NewMediaHandler(db, s.deps.Service, s.deps.Prober, s.deps.Artwork, s.deps.NowPlaying)

	// Health Check
	s.router.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "service": "stationhub"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stationhub"})
	})

	// Locally stored artwork is served by the API itself
	if s.cfg.Storage.Provider != "s3" && len(s.cfg.Storage.PublicBaseURL) > 0 && s.cfg.Storage.PublicBaseURL[0] == '/' {
		s.router.Static(s.cfg.Storage.PublicBaseURL, filepath.Join(s.cfg.Storage.LocalStorage, s.cfg.Storage.BucketImages))
	}

	editor := middleware.RequireEditor()

	// API Group
	v1 := s.router.Group("/api/v1")
	{
		// ==========================================
		// PUBLIC ROUTES (No Token Required)
		// ==========================================
		v1.POST("/auth/login", authHandler.Login)

		v1.GET("/stats", statsHandler.GetStats)
		v1.GET("/tiers", stationHandler.GetTiers)

		v1.GET("/stations", stationHandler.ListStations)
		v1.GET("/stations/featured", stationHandler.GetFeatured)
		v1.GET("/stations/editors-picks", stationHandler.GetEditorsPicks)
		v1.GET("/stations/nearby", stationHandler.GetNearby)
		v1.GET("/stations/tier/:tier", stationHandler.GetByTier)
		v1.GET("/stations/:id", stationHandler.GetStation)
		v1.GET("/stations/:id/image", stationHandler.GetImage)
		v1.GET("/stations/:id/quality", engagementHandler.GetQuality)
		v1.GET("/stations/:id/now-playing", mediaHandler.NowPlaying)

		// --- LISTENER ACTIONS (rate limited per client and station)
		v1.POST("/stations/:id/play", engagementHandler.RecordPlay)
		v1.POST("/stations/:id/like", engagementHandler.RecordLike)
		v1.POST("/stations/:id/feedback", engagementHandler.SubmitFeedback)

		// ==========================================
		// PROTECTED ROUTES (JWT Token Required)
		// ==========================================
		protected := v1.Group("/")
		protected.Use(middleware.RequireAuth([]byte(s.cfg.Auth.JWTSecret))) // Checks for valid JWT
		{
			// --- ADMIN ONLY ---
			// Only Admins can create staff accounts.
			protected.POST("/auth/register", middleware.RequireRole(models.RoleAdmin), authHandler.Register)

			// --- EDITORS (admins pass too) ---
			protected.POST("/stations", editor, stationHandler.CreateStation)
			protected.PUT("/stations/:id", editor, stationHandler.UpdateStation)
			protected.DELETE("/stations/:id", editor, stationHandler.DeleteStation)

			protected.POST("/stations/:id/recalculate", editor, engagementHandler.Recalculate)
			protected.POST("/stations/:id/reactivate", editor, engagementHandler.Reactivate)
			protected.POST("/stations/:id/probe", editor, mediaHandler.ProbeStation)
			protected.POST("/stations/:id/image", editor, mediaHandler.UploadImage)

			protected.PUT("/feedback/:id/resolve", editor, engagementHandler.ResolveFeedback)
			protected.POST("/quality/recalculate", editor, engagementHandler.RecalculateAll)
		}
	}
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on the configured address until ctx is canceled, then drains
// in-flight requests for up to ten seconds.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
