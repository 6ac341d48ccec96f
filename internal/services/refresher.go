package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aawaaz/complaint-analyzer/internal/events"
	"go.uber.org/zap"
)

// Reloadable is a projection the refresher keeps current
type Reloadable interface {
	Name() string
	Load(ctx context.Context) error
	Stop()
}

// ProjectionRefresher reloads projections when a refresh signal arrives and,
// optionally, on a fixed interval. Each projection has a one-slot trigger so
// bursts of signals coalesce into a single pending reload, and projections
// reload independently of each other.
type ProjectionRefresher struct {
	bus         events.Bus
	projections []Reloadable
	kicks       []chan struct{}
	interval    time.Duration
	logger      *zap.SugaredLogger
}

// NewProjectionRefresher creates a refresher. interval 0 disables polling.
func NewProjectionRefresher(bus events.Bus, interval time.Duration, logger *zap.SugaredLogger, projections ...Reloadable) *ProjectionRefresher {
	kicks := make([]chan struct{}, len(projections))
	for i := range kicks {
		kicks[i] = make(chan struct{}, 1)
	}
	return &ProjectionRefresher{
		bus:         bus,
		projections: projections,
		kicks:       kicks,
		interval:    interval,
		logger:      logger,
	}
}

// Trigger schedules a reload of every projection without blocking.
func (r *ProjectionRefresher) Trigger() {
	for _, kick := range r.kicks {
		select {
		case kick <- struct{}{}:
		default:
		}
	}
}

// Start performs the initial load and then runs until ctx is cancelled.
func (r *ProjectionRefresher) Start(ctx context.Context) error {
	sigs, err := r.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe refresh signals: %w", err)
	}

	var wg sync.WaitGroup
	for i, p := range r.projections {
		wg.Add(1)
		go func(p Reloadable, kick <-chan struct{}) {
			defer wg.Done()
			r.reloadLoop(ctx, p, kick)
		}(p, r.kicks[i])
	}
	defer wg.Wait()

	// Initial load
	r.Trigger()

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			for _, p := range r.projections {
				p.Stop()
			}
			r.logger.Info("Projection refresher stopped")
			return nil
		case sig, ok := <-sigs:
			if !ok {
				r.logger.Warn("Refresh signal subscription closed")
				sigs = nil
				continue
			}
			r.logger.Debugw("Refresh signal received", "reason", sig.Reason, "attempt_id", sig.AttemptID)
			r.Trigger()
		case <-tick:
			r.Trigger()
		}
	}
}

func (r *ProjectionRefresher) reloadLoop(ctx context.Context, p Reloadable, kick <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-kick:
			if err := p.Load(ctx); err != nil && !errors.Is(err, ErrSuperseded) && ctx.Err() == nil {
				r.logger.Debugw("Projection reload failed", "projection", p.Name(), "error", err)
			}
		}
	}
}
