package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LoadStatus describes the most recent fetch of a projection.
type LoadStatus string

const (
	StatusPending LoadStatus = "pending" // never loaded
	StatusLoading LoadStatus = "loading"
	StatusReady   LoadStatus = "ready"
	StatusFailed  LoadStatus = "failed"
)

// ErrSuperseded is returned by a load whose response arrived after a newer
// load was issued; its response is discarded.
var ErrSuperseded = errors.New("fetch superseded by a newer request")

// snapshotLoader keeps the latest fetched value of a projection. Only one
// fetch is outstanding: issuing a new one cancels the previous, and a
// response is applied only if its fetch is still the newest issued.
type snapshotLoader[T any] struct {
	mu       sync.Mutex
	value    T
	status   LoadStatus
	lastErr  *ClassifiedError
	loadedAt time.Time
	issued   uint64
	cancel   context.CancelFunc

	name     string
	fetch    func(ctx context.Context) (T, error)
	timeout  time.Duration
	endpoint string
	logger   *zap.SugaredLogger
}

func newSnapshotLoader[T any](name string, fetch func(context.Context) (T, error), timeout time.Duration, endpoint string, logger *zap.SugaredLogger) *snapshotLoader[T] {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &snapshotLoader[T]{
		status:   StatusPending,
		name:     name,
		fetch:    fetch,
		timeout:  timeout,
		endpoint: endpoint,
		logger:   logger,
	}
}

func (l *snapshotLoader[T]) load(ctx context.Context) error {
	l.mu.Lock()
	l.issued++
	seq := l.issued
	if l.cancel != nil {
		l.cancel()
	}
	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	l.cancel = cancel
	l.status = StatusLoading
	l.mu.Unlock()
	defer cancel()

	start := time.Now()
	v, err := l.fetch(fetchCtx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.issued {
		l.logger.Debugw("Discarding stale projection fetch", "projection", l.name, "seq", seq, "latest", l.issued)
		return ErrSuperseded
	}
	l.cancel = nil

	if err != nil {
		ce := classifyFetchError(err, l.endpoint)
		l.status = StatusFailed
		l.lastErr = ce
		l.logger.Warnw("Projection fetch failed",
			"projection", l.name,
			"kind", ce.Kind,
			"latency", time.Since(start),
			"error", err,
		)
		return ce
	}

	l.value = v
	l.status = StatusReady
	l.lastErr = nil
	l.loadedAt = time.Now()
	l.logger.Debugw("Projection loaded", "projection", l.name, "latency", time.Since(start))
	return nil
}

// snapshot returns the current value with its metadata. A failed fetch keeps
// the previously loaded value.
func (l *snapshotLoader[T]) snapshot() (T, LoadStatus, *ClassifiedError, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.status, l.lastErr, l.loadedAt
}

// stop cancels any outstanding fetch.
func (l *snapshotLoader[T]) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.issued++
		l.cancel()
		l.cancel = nil
		switch {
		case l.lastErr != nil:
			l.status = StatusFailed
		case l.loadedAt.IsZero():
			l.status = StatusPending
		default:
			l.status = StatusReady
		}
	}
}
