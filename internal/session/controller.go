// Package session implements the search-session controller: query
// submission, quota enforcement, the recommendation round-trip and the
// render-ready session state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/mooddine/internal/client"
	"github.com/raphaelgruber/mooddine/internal/metrics"
	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/notify"
)

var (
	// ErrEmptyQuery is returned when the trimmed query is empty. Nothing else happens.
	ErrEmptyQuery = errors.New("empty query")
	// ErrQuotaExceeded is returned when the gate denies the search.
	ErrQuotaExceeded = errors.New("daily search limit reached")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("session closed")
)

// DefaultTimeout bounds a single recommendation call.
const DefaultTimeout = 30 * time.Second

// Gate decides whether a search may be issued.
type Gate interface {
	CheckAndConsume(ctx context.Context, now time.Time) (models.Decision, error)
}

// Recommender fetches ranked results for a query.
type Recommender interface {
	Recommend(ctx context.Context, query, requestID string) ([]models.SearchResult, error)
}

// Listener observes state transitions. Listeners run synchronously in
// transition order while the controller holds its lock, so they must not
// block or call back into the controller.
type Listener func(models.SessionState)

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Timeout      time.Duration
	Now          func() time.Time
	NewRequestID func() string
	Logger       *slog.Logger
	Metrics      *metrics.Collector
	Notifier     notify.Notifier
}

type subscription struct {
	id int
	fn Listener
}

// Controller owns the session state. It is safe for concurrent use.
type Controller struct {
	gate     Gate
	rec      Recommender
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
	metrics  *metrics.Collector
	notifier notify.Notifier

	mu        sync.Mutex
	state     models.SessionState
	query     string
	seq       uint64
	cancel    context.CancelFunc
	listeners []subscription
	nextSubID int
	closed    bool
	wg        sync.WaitGroup
}

// New creates a controller in the Idle state.
func New(gate Gate, rec Recommender, opts Options) *Controller {
	c := &Controller{
		gate:     gate,
		rec:      rec,
		timeout:  opts.Timeout,
		now:      opts.Now,
		newID:    opts.NewRequestID,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		state:    models.Idle{},
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.notifier == nil {
		c.notifier = notify.Discard
	}
	return c
}

// State returns the current session state.
func (c *Controller) State() models.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn for every subsequent transition and returns a
// function that removes it.
func (c *Controller) Subscribe(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextSubID++
	id := c.nextSubID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.listeners {
			if s.id == id {
				c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetQuery replaces the draft query text.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	c.query = text
	c.mu.Unlock()
}

// Query returns the draft query text.
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

// ClearQuery empties the draft query. Submissions never clear it.
func (c *Controller) ClearQuery() {
	c.SetQuery("")
}

// ApplySuggestion replaces the draft query with a suggestion without submitting.
func (c *Controller) ApplySuggestion(text string) {
	c.SetQuery(text)
}

// SubmitDraft submits the current draft query.
func (c *Controller) SubmitDraft(ctx context.Context) error {
	return c.Submit(ctx, c.Query())
}

// Submit starts a search for raw. On success the state is Loading before
// Submit returns; the outcome is applied asynchronously. A newer Submit
// supersedes an in-flight one: its request is cancelled and its response
// is discarded.
func (c *Controller) Submit(ctx context.Context, raw string) error {
	query := strings.TrimSpace(raw)
	if query == "" {
		return ErrEmptyQuery
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}

	decision, err := c.gate.CheckAndConsume(ctx, c.now())
	if err != nil {
		c.logger.Error("quota check failed", "query", query, "error", err)
	}
	if decision != models.Allowed {
		c.metrics.Inc(metrics.OutcomeDenied)
		if err != nil {
			c.notifier.Notify(models.NotifyError, "Daily limit reached",
				"Your search allowance could not be checked, so searching is paused.")
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}
		c.notifier.Notify(models.NotifyError, "Daily limit reached",
			"You have used all of today's searches. Try again tomorrow.")
		return ErrQuotaExceeded
	}
	c.metrics.Inc(metrics.OutcomeAllowed)

	requestID := c.newID()

	c.mu.Lock()
	// Closed after the gate allowed: the consumed slot is not refunded.
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.seq++
	seq := c.seq
	if c.cancel != nil {
		c.cancel()
	}
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	c.cancel = cancel
	c.setStateLocked(models.Loading{Query: query})
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.Info("search submitted", "query", query, "request_id", requestID, "seq", seq)
	go c.run(reqCtx, cancel, seq, query, requestID)
	return nil
}

func (c *Controller) run(ctx context.Context, cancel context.CancelFunc, seq uint64, query, requestID string) {
	defer c.wg.Done()
	defer cancel()

	start := time.Now()
	results, err := c.rec.Recommend(ctx, query, requestID)
	c.metrics.RecordTiming(metrics.OpRecommend, time.Since(start), err)

	c.mu.Lock()
	if seq != c.seq {
		c.mu.Unlock()
		c.metrics.Inc(metrics.OutcomeDiscarded)
		c.logger.Debug("discarding superseded response", "query", query, "request_id", requestID, "seq", seq)
		return
	}
	c.cancel = nil

	if err != nil {
		reason := models.TransportFailure
		if errors.Is(err, client.ErrMalformedResponse) {
			reason = models.MalformedResponse
		}
		c.setStateLocked(models.Failed{Query: query, Reason: reason, Err: err})
		c.mu.Unlock()

		c.metrics.Inc(metrics.OutcomeFailed)
		c.logger.Warn("search failed", "query", query, "request_id", requestID, "reason", reason.String(), "error", err)
		c.notifier.Notify(models.NotifyError, "Search failed", failureMessage(reason))
		return
	}

	c.setStateLocked(models.Results{Query: query, Results: results})
	c.mu.Unlock()

	c.metrics.Inc(metrics.OutcomeSucceeded)
	c.logger.Info("search completed", "query", query, "request_id", requestID, "results", len(results))
	c.notifier.Notify(models.NotifySuccess, fmt.Sprintf("Found %d places", len(results)),
		fmt.Sprintf("Matches for %q", query))
}

func failureMessage(reason models.FailureReason) string {
	if reason == models.MalformedResponse {
		return "The recommendation service sent an unexpected response. Please try again."
	}
	return "Could not reach the recommendation service. Please try again."
}

// setStateLocked must be called with c.mu held.
func (c *Controller) setStateLocked(s models.SessionState) {
	c.state = s
	for _, l := range c.listeners {
		l.fn(s)
	}
}

// Wait blocks until every started request has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any in-flight request, discards its response and waits for
// it to finish. The current state is left as is.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
}
