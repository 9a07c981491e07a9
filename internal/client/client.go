// Package client provides an HTTP client for the recommendation endpoint.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/raphaelgruber/mooddine/internal/models"
)

// DefaultEndpoint is used when no endpoint is configured.
const DefaultEndpoint = "http://localhost:5678/webhook/mood-search"

// maxErrorBody caps how much of a failed response body is kept in errors.
const maxErrorBody = 512

var (
	// ErrTransport covers unreachable endpoints, timeouts and non-2xx statuses.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse is returned when a 2xx body is not a list of results.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: %s", e.Status)
	}
	return fmt.Sprintf("server error: %s - %s", e.Status, e.Body)
}

// Unwrap makes errors.Is(err, ErrTransport) hold for status errors.
func (e *StatusError) Unwrap() error { return ErrTransport }

// Client posts mood queries to the recommendation endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a client for endpoint. A zero timeout leaves the http.Client
// without a deadline; callers then rely on the request context.
func New(endpoint string, timeout time.Duration, logger *slog.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
		now:      time.Now,
	}
}

// Endpoint returns the configured endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Recommend sends query and returns the ranked results in backend order.
// requestID is sent as X-Request-ID when non-empty.
func (c *Client) Recommend(ctx context.Context, query, requestID string) ([]models.SearchResult, error) {
	reqBody, err := json.Marshal(models.RecommendRequest{
		Query:     query,
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrTransport, err)
	}

	c.logger.Debug("recommend response",
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), maxErrorBody),
		}
	}

	return c.decode(body)
}

func (c *Client) decode(body []byte) ([]models.SearchResult, error) {
	var results []models.SearchResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	// "null" decodes without error but is not a list.
	if results == nil {
		return nil, fmt.Errorf("%w: expected a JSON array", ErrMalformedResponse)
	}

	for i := range results {
		if err := c.validate.Struct(results[i]); err != nil {
			return nil, fmt.Errorf("%w: result %d: %w", ErrMalformedResponse, i, err)
		}
		c.dropInvalidLinks(i, &results[i])
	}
	return results, nil
}

// dropInvalidLinks clears link fields that are not absolute URLs. A bad link
// only loses that link; the result itself is kept.
func (c *Client) dropInvalidLinks(i int, r *models.SearchResult) {
	for _, link := range []struct {
		field string
		value *string
	}{
		{"mapLink", &r.MapLink},
		{"image", &r.Image},
		{"redditUrl", &r.RedditURL},
	} {
		if *link.value == "" {
			continue
		}
		if err := c.validate.Var(*link.value, "url"); err != nil {
			c.logger.Debug("dropping invalid link", "result", i, "field", link.field, "value", *link.value)
			*link.value = ""
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
