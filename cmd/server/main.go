package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gridworld-editor/backend/internal/api"
	"github.com/gridworld-editor/backend/internal/config"
	"github.com/gridworld-editor/backend/internal/index"
	"github.com/gridworld-editor/backend/internal/logging"
	"github.com/gridworld-editor/backend/internal/models"
	"github.com/gridworld-editor/backend/internal/session"
	"github.com/gridworld-editor/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// Version info (set during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configFlag := flag.String("config", "", "path to GridworldEditor.config (default: next to the executable)")
	flag.Parse()

	configPath := *configFlag
	if configPath == "" {
		exePath, err := os.Executable()
		if err != nil {
			fmt.Printf("Failed to get executable path: %v\n", err)
			os.Exit(1)
		}
		configPath = filepath.Join(filepath.Dir(exePath), "GridworldEditor.config")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Advanced.LogLevel)
	mainLog := log.With("Server")

	if err := cfg.EnsureDirectories(); err != nil {
		mainLog.Errorf("Failed to create directories: %v", err)
		os.Exit(1)
	}

	fileStore, err := storage.NewLocalStore(cfg.GetGenomesDir())
	if err != nil {
		mainLog.Errorf("Failed to initialize storage: %v", err)
		os.Exit(1)
	}

	sessionMgr := session.NewManager(fileStore, log)
	sessionMgr.SetMaxSessions(cfg.Session.MaxOpenSessions)
	sessionMgr.SetIndexOptions(index.Options{
		Threads:     cfg.Advanced.DuckDBThreads,
		MemoryLimit: cfg.Advanced.DuckDBMemoryLimit,
		TempDir:     cfg.Storage.IndexDirectory,
	})

	hub := api.NewWebSocketHub(sessionMgr, cfg.Advanced.WebSocketMaxMessageSize, log)
	sessionMgr.OnChange(hub.Notify)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background session cleanup
	go func() {
		interval := time.Duration(max(cfg.Session.CleanupIntervalMinutes, 1)) * time.Minute
		maxAge := time.Duration(cfg.Session.SessionTimeoutMinutes) * time.Minute
		if maxAge <= 0 {
			maxAge = session.SessionMaxAge
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := sessionMgr.CleanupOldSessions(maxAge); n > 0 {
					mainLog.Infof("Closed %d idle sessions", n)
				}
			}
		}
	}()

	e := echo.New()
	e.HideBanner = true

	api.SetupMiddleware(e, api.MiddlewareConfig{
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   cfg.Server.AllowOrigins,
		BodyLimit:      cfg.Server.BodyLimit,
		Timeout:        time.Duration(cfg.Server.ReadTimeout) * time.Second,
		GzipLevel:      cfg.Advanced.CompressionLevel,
		ShowDetails:    log.Level() == logging.LevelDebug,
	})

	handlers := api.NewHandlers(&api.Dependencies{
		Store:    fileStore,
		Sessions: sessionMgr,
		Hub:      hub,
		Version:  Version,
		Files: api.FileOptions{
			AllowDelete:  cfg.Security.AllowFileDeletion,
			AllowedTypes: api.ParseFileTypes(cfg.Security.AllowedFileTypes),
		},
		Log: log,
	})
	api.RegisterRoutes(e, handlers)

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║           Gridworld Genome Editor Server                  ║\n")
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Version:    %-45s║\n", Version)
	fmt.Printf("║  Build Time: %-45s║\n", BuildTime)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:    %-46s║\n", configPath)
	fmt.Printf("║  Listen:    http://%-38s║\n", cfg.GetServerAddr())
	fmt.Printf("║  Genomes:   %-46s║\n", cfg.GetGenomesDir())
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")

	go func() {
		if err := e.StartServer(s); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLog.Errorf("Server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	mainLog.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		mainLog.Warnf("Shutdown: %v", err)
	}
	hub.Close()
	for _, sess := range sessionMgr.ListSessions() {
		if sess.Status == models.SessionStatusDirty {
			mainLog.Warnf("Discarding unsaved changes of %s", sess.FileName)
		}
		sessionMgr.Close(sess.ID)
	}
}
