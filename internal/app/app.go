package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/vjuliano/audiodrop/internal/admin"
	"github.com/vjuliano/audiodrop/internal/config"
	"github.com/vjuliano/audiodrop/internal/handler"
	"github.com/vjuliano/audiodrop/internal/ingest"
	"github.com/vjuliano/audiodrop/internal/middleware"
	"github.com/vjuliano/audiodrop/internal/ratelimit"
	"github.com/vjuliano/audiodrop/internal/store"
	"github.com/vjuliano/audiodrop/internal/sweep"
)

// The admin can raise the size cap at runtime up to 100MB, so the transport
// body limit is pinned above that instead of tracking the current cap.
const bodyLimit = "101M"

// App represents the application
type App struct {
	server  *echo.Echo
	sweeper *sweep.Sweeper
	config  *config.Config
	store   *store.Store
}

// New creates a new application instance
func New(configPath string) (*App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded: port=%d maxFileSize=%dMB rateLimit=%+v",
		cfg.Port(), cfg.MaxFileSize(), cfg.RateLimit())

	if err := setup(cfg); err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.SQLitePath())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	limiter := ratelimit.New(cfg, st)
	ingestor := ingest.New(cfg, st, limiter)
	manager := admin.NewManager(cfg, st)
	sessions := admin.NewSessions()
	sweeper := sweep.New(st, cfg.UploadPath(), sweep.DefaultInterval)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit(bodyLimit))

	app := &App{
		server:  e,
		sweeper: sweeper,
		config:  cfg,
		store:   st,
	}

	h := handler.NewHandler(cfg, st, ingestor, manager, sessions)
	registerRoutes(e, cfg, h)
	return app, nil
}

// Start starts the sweeper and the HTTP server.
func (a *App) Start() {
	a.sweeper.Start()

	serverAddr := fmt.Sprintf(":%d", a.config.Port())

	go func() {
		if err := a.server.Start(serverAddr); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	log.Printf("Server started on %s", serverAddr)
}

// Stop stops all application services
func (a *App) Stop() {
	a.sweeper.Stop()
}

// Shutdown gracefully shuts down the server
func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if closeErr := a.store.Close(); err == nil {
		err = closeErr
	}
	return err
}

// setup ensures all necessary directories exist
func setup(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.UploadPath(), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.PublicPath(), 0o755); err != nil {
		return err
	}
	if dir := filepath.Dir(cfg.SQLitePath()); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// registerRoutes registers all HTTP routes
func registerRoutes(e *echo.Echo, cfg *config.Config, h *handler.Handler) {
	e.POST("/api/upload", h.HandleUpload)
	e.GET("/uploads/:filename", h.HandleFileAccess)

	e.GET("/api/announcement", h.HandleGetAnnouncement)
	e.GET("/api/config", h.HandleGetConfig)

	e.POST("/api/admin/login", h.HandleAdminLogin)
	e.POST("/api/admin/logout", h.HandleAdminLogout)
	e.GET("/api/admin/check", h.HandleAdminCheck)
	e.GET("/api/admin/files", h.HandleAdminListFiles)
	e.DELETE("/api/admin/files/:id", h.HandleAdminDeleteFile)
	e.POST("/api/admin/announcement", h.HandleAdminSetAnnouncement)
	e.GET("/api/admin/rate-limit", h.HandleAdminGetRateLimit)
	e.POST("/api/admin/rate-limit", h.HandleAdminSetRateLimit)
	e.POST("/api/admin/file-size", h.HandleAdminSetFileSize)

	// Browser UI assets; the service works without them.
	e.Static("/", cfg.PublicPath())
}
