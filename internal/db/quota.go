package db

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

// quotaRow mirrors the quota table. Pointers detect fields missing from
// records written outside this client.
type quotaRow struct {
	Count       *int   `json:"searches"`
	WindowStart *int64 `json:"window_start"`
}

// QuotaStore implements quota.Store on a single quota:<key> record.
type QuotaStore struct {
	client *Client
	key    string
}

// QuotaStore returns a store bound to record key.
func (c *Client) QuotaStore(key string) *QuotaStore {
	return &QuotaStore{client: c, key: key}
}

// Get implements quota.Store.
func (s *QuotaStore) Get(ctx context.Context) (models.QuotaState, bool, error) {
	results, err := surrealdb.Query[[]quotaRow](ctx, s.client.db, `
		SELECT searches, window_start FROM type::record("quota", $key)
	`, map[string]any{"key": s.key})
	if err != nil {
		return models.QuotaState{}, false, fmt.Errorf("get quota: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return models.QuotaState{}, false, nil
	}

	row := (*results)[0].Result[0]
	if row.Count == nil || row.WindowStart == nil {
		return models.QuotaState{}, false, fmt.Errorf("%w: quota:%s is missing fields", quota.ErrCorruptState, s.key)
	}
	return models.QuotaState{Count: *row.Count, WindowStart: *row.WindowStart}, true, nil
}

// Set implements quota.Store.
func (s *QuotaStore) Set(ctx context.Context, state models.QuotaState) error {
	_, err := surrealdb.Query[any](ctx, s.client.db, `
		UPSERT type::record("quota", $key) SET
			searches = $searches,
			window_start = $window_start,
			updated = time::now()
	`, map[string]any{
		"key":          s.key,
		"searches":     state.Count,
		"window_start": state.WindowStart,
	})
	if err != nil {
		return fmt.Errorf("set quota: %w", wrapQueryError(err))
	}
	return nil
}
