// Package main is the entry point for the complaint analyzer console.
// It submits complaints to the remote classification gateway, keeps a
// filterable record list and an aggregate dashboard current, and serves
// both over a JSON API.
//
// Architecture:
//   - One submission lifecycle controller (idle, submitting, succeeded, failed)
//   - Record and aggregate projections, reloaded on a refresh signal
//   - Refresh signal on an in-process bus, or Redis pub/sub when REDIS_URL is set
//   - Optional PostgreSQL journal of submission attempts
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/config"
	"github.com/aawaaz/complaint-analyzer/internal/database"
	"github.com/aawaaz/complaint-analyzer/internal/events"
	"github.com/aawaaz/complaint-analyzer/internal/gateway"
	"github.com/aawaaz/complaint-analyzer/internal/handlers"
	"github.com/aawaaz/complaint-analyzer/internal/router"
	"github.com/aawaaz/complaint-analyzer/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if os.Getenv("ENVIRONMENT") == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load config: %v", err)
	}

	sugar.Infow("Starting complaint analyzer console",
		"port", cfg.Port,
		"env", cfg.Environment,
		"gateway_url", cfg.GatewayURL,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Gateway client; per-call deadlines come from the controller and projections
	gw := gateway.NewClient(cfg.GatewayURL, &http.Client{}, sugar)

	// Refresh signal bus
	var bus events.Bus
	var busPinger handlers.Pinger
	if cfg.RedisURL != "" {
		rb, err := events.NewRedisBus(ctx, cfg.RedisURL, cfg.RefreshChannel, sugar)
		if err != nil {
			sugar.Fatalf("Failed to connect to redis: %v", err)
		}
		sugar.Infow("Using redis refresh bus", "channel", cfg.RefreshChannel)
		bus = rb
		busPinger = handlers.PingFunc(rb.Ping)
	} else {
		bus = events.NewMemoryBus()
	}
	defer bus.Close()

	// Optional submission journal
	var journal *services.JournalService
	var recorder services.AttemptRecorder
	if cfg.DatabaseURL != "" {
		db, err := database.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			sugar.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		journal = services.NewJournalService(db, sugar)
		if err := journal.EnsureSchema(ctx); err != nil {
			sugar.Fatalf("Failed to prepare submission journal: %v", err)
		}
		recorder = journal
	}

	// Initialize services
	ctrl := services.NewSubmissionController(gw, bus, recorder, services.SubmissionConfig{
		Timeout:  cfg.SubmitTimeout,
		Endpoint: cfg.GatewayURL,
	}, sugar)
	records := services.NewRecordProjection(gw, cfg.FetchTimeout, cfg.GatewayURL, sugar)
	analytics := services.NewAggregateProjection(gw, cfg.FetchTimeout, cfg.GatewayURL, sugar)
	refresher := services.NewProjectionRefresher(bus, cfg.RefreshInterval, sugar, records, analytics)

	// Start background refresher (initial load, then reload on every signal)
	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		if err := refresher.Start(ctx); err != nil {
			sugar.Errorw("Projection refresher failed", "error", err)
		}
	}()

	handler := router.New(ctx, logger, cfg, router.Deps{
		Controller: ctrl,
		Records:    records,
		Analytics:  analytics,
		Gateway:    gw,
		Journal:    journal,
		Bus:        busPinger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Forced shutdown: %v", err)
	}

	// Let an in-flight submission finish so its outcome is journaled
	ctrl.Wait()
	stop()
	<-refresherDone

	sugar.Info("Server stopped")
}
