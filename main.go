package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	elog "github.com/labstack/gommon/log"

	"github.com/unr-deaddrop/server/internal/config"
	"github.com/unr-deaddrop/server/internal/policy"
	"github.com/unr-deaddrop/server/internal/service"
	"github.com/unr-deaddrop/server/internal/store"
	"github.com/unr-deaddrop/server/internal/tasks"
	handler "github.com/unr-deaddrop/server/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("Failed to create working directories: %v", err)
	}

	log.Printf("Starting deaddrop server...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Agent packages: %s", cfg.AgentPackageDir)
	log.Printf("Protocol packages: %s", cfg.ProtocolPackageDir)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize task runner
	taskRunner := tasks.NewRunner(db, cfg.Workers)

	// Initialize service
	svc := service.New(db, cfg, policyEngine, taskRunner)

	// Background receive poller, if scheduled
	var poller *tasks.Poller
	if cfg.PollSchedule != "" {
		poller, err = tasks.NewPoller(cfg.PollSchedule, svc.PollReceive)
		if err != nil {
			log.Fatalf("Failed to initialize receive poller: %v", err)
		}
		poller.Start()
		log.Printf("Receive poller scheduled: %s", cfg.PollSchedule)
	}

	// Initialize handler
	h := handler.NewHandler(svc)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLogLevel(cfg.LogLevel))

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	h.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down deaddrop server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	if poller != nil {
		poller.Stop()
	}
	taskRunner.Shutdown()

	log.Println("Deaddrop server stopped")
}

func echoLogLevel(level string) elog.Lvl {
	switch level {
	case "debug":
		return elog.DEBUG
	case "warn":
		return elog.WARN
	case "error":
		return elog.ERROR
	default:
		return elog.INFO
	}
}
