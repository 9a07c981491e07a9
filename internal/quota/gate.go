// Package quota enforces the client-side daily search allowance.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/mooddine/internal/metrics"
	"github.com/raphaelgruber/mooddine/internal/models"
)

// Sentinel errors for quota operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrStoreUnavailable indicates the backing store could not be read or written.
	ErrStoreUnavailable = errors.New("quota store unavailable")

	// ErrCorruptState indicates the persisted record exists but cannot be trusted.
	// Stores return it (wrapped) when a record fails to decode.
	ErrCorruptState = errors.New("corrupt quota state")
)

// Store persists a single named QuotaState record.
type Store interface {
	// Get returns the stored state. ok is false when no record exists yet.
	Get(ctx context.Context) (state models.QuotaState, ok bool, err error)
	// Set replaces the stored state.
	Set(ctx context.Context, state models.QuotaState) error
}

// Gate enforces at most limit submissions per rolling window.
type Gate struct {
	mu      sync.Mutex
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics *metrics.Collector
}

// Option configures a Gate.
type Option func(*Gate)

// WithLimit overrides the number of searches allowed per window.
func WithLimit(limit int) Option {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = limit
		}
	}
}

// WithWindow overrides the window length.
func WithWindow(window time.Duration) Option {
	return func(g *Gate) {
		if window > 0 {
			g.window = window
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics records quota check timings into c.
func WithMetrics(c *metrics.Collector) Option {
	return func(g *Gate) { g.metrics = c }
}

// NewGate creates a gate over store with the default daily limit.
func NewGate(store Store, opts ...Option) *Gate {
	g := &Gate{
		store:  store,
		limit:  models.MaxDailySearches,
		window: models.QuotaWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Limit returns the number of searches allowed per window.
func (g *Gate) Limit() int {
	return g.limit
}

// CheckAndConsume decides whether a search may be issued at now and, if so,
// consumes one slot. Allowed performs exactly one store write; Denied performs none.
// Any store failure or corrupt record denies the search and returns the cause.
func (g *Gate) CheckAndConsume(ctx context.Context, now time.Time) (decision models.Decision, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	defer func() {
		g.metrics.RecordTiming(metrics.OpQuotaCheck, time.Since(start), err)
	}()

	state, err := g.load(ctx, now)
	if err != nil {
		g.logger.Warn("quota state unreadable, denying search", "error", err)
		return models.Denied, err
	}

	if state.Count >= g.limit {
		g.logger.Info("daily search limit reached",
			"count", state.Count,
			"limit", g.limit,
			"reset_at", state.ResetAt(g.window))
		return models.Denied, nil
	}

	state.Count++
	if err := g.store.Set(ctx, state); err != nil {
		g.logger.Warn("failed to persist quota state, denying search", "error", err)
		return models.Denied, fmt.Errorf("%w: write: %w", ErrStoreUnavailable, err)
	}

	g.logger.Debug("search allowed", "count", state.Count, "limit", g.limit)
	return models.Allowed, nil
}

// Status is a read-only view of the current window.
type Status struct {
	Used      int
	Remaining int
	Limit     int
	// ResetAt is zero when no window is active.
	ResetAt time.Time
}

// Status reports usage at now without modifying the store.
func (g *Gate) Status(ctx context.Context, now time.Time) (Status, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := Status{Limit: g.limit, Remaining: g.limit}

	state, active, err := g.current(ctx, now)
	if err != nil || !active {
		return st, err
	}

	st.Used = min(state.Count, g.limit)
	st.Remaining = g.limit - st.Used
	st.ResetAt = state.ResetAt(g.window)
	return st, nil
}

// load returns the state CheckAndConsume works on: the active window, or a
// fresh one when the record is absent or stale.
func (g *Gate) load(ctx context.Context, now time.Time) (models.QuotaState, error) {
	state, active, err := g.current(ctx, now)
	if err != nil {
		return models.QuotaState{}, err
	}
	if !active {
		return models.NewQuotaState(now), nil
	}
	return state, nil
}

// current reads the stored record and classifies it. active is false when
// no record exists or its window has expired; an expired record resets
// whatever it holds and is never validated.
func (g *Gate) current(ctx context.Context, now time.Time) (state models.QuotaState, active bool, err error) {
	state, ok, err := g.store.Get(ctx)
	if err != nil {
		return models.QuotaState{}, false, classifyStoreError(err)
	}
	if !ok {
		return models.QuotaState{}, false, nil
	}
	if state.Expired(now, g.window) {
		g.logger.Debug("quota window expired, resetting", "window_start", state.WindowStartTime())
		return models.QuotaState{}, false, nil
	}
	if err := g.validate(state, now); err != nil {
		return models.QuotaState{}, false, err
	}
	return state, true, nil
}

// validate rejects states that could not have been produced by CheckAndConsume.
func (g *Gate) validate(state models.QuotaState, now time.Time) error {
	if state.Count < 0 {
		return fmt.Errorf("%w: negative count %d", ErrCorruptState, state.Count)
	}
	if state.WindowStart-now.UnixMilli() > g.window.Milliseconds() {
		return fmt.Errorf("%w: window starts in the future (%s)", ErrCorruptState, state.WindowStartTime())
	}
	return nil
}

func classifyStoreError(err error) error {
	if errors.Is(err, ErrCorruptState) {
		return err
	}
	return fmt.Errorf("%w: read: %w", ErrStoreUnavailable, err)
}
