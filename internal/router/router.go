// Package router assembles the console API.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/config"
	"github.com/aawaaz/complaint-analyzer/internal/handlers"
	"github.com/aawaaz/complaint-analyzer/internal/middleware"
	"github.com/aawaaz/complaint-analyzer/internal/services"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps are the long-lived components the routes drive.
type Deps struct {
	Controller *services.SubmissionController
	Records    *services.RecordProjection
	Analytics  *services.AggregateProjection
	Gateway    handlers.Pinger
	Journal    *services.JournalService // nil when DATABASE_URL is unset
	Bus        handlers.Pinger          // nil for the in-process bus
}

// New builds the HTTP handler. ctx bounds background middleware state.
func New(ctx context.Context, logger *zap.Logger, cfg *config.Config, deps Deps) http.Handler {
	sugar := logger.Sugar()

	submissionHandler := handlers.NewSubmissionHandler(deps.Controller, sugar)
	recordsHandler := handlers.NewRecordsHandler(deps.Records, sugar)
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Analytics, sugar)

	var (
		attemptReader handlers.AttemptReader
		journalPinger handlers.Pinger
	)
	if deps.Journal != nil {
		attemptReader = deps.Journal
		journalPinger = handlers.PingFunc(deps.Journal.Ping)
	}
	attemptsHandler := handlers.NewAttemptsHandler(attemptReader, sugar)
	healthHandler := handlers.NewHealthHandler(deps.Gateway, journalPinger, deps.Bus, sugar)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	// Refresh endpoints wait on a full fetch
	r.Use(chimw.Timeout(cfg.FetchTimeout + 5*time.Second))
	r.Use(middleware.NoStore())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimit(ctx, cfg.RateLimitRPM))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		r.Route("/submission", func(r chi.Router) {
			r.Get("/", submissionHandler.Get)
			r.Post("/", submissionHandler.Submit)
			r.Put("/draft", submissionHandler.UpdateDraft)
			r.Post("/ack", submissionHandler.Acknowledge)
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/", recordsHandler.List)
			r.Post("/refresh", recordsHandler.Refresh)
		})

		r.Route("/analytics", func(r chi.Router) {
			if cfg.JWTSecret != "" {
				r.Use(middleware.RequireAuth(cfg.JWTSecret))
			}
			r.Get("/", analyticsHandler.Get)
			r.Post("/refresh", analyticsHandler.Refresh)
		})

		r.Get("/attempts", attemptsHandler.List)
	})

	return r
}
