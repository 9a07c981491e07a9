package quota

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/mooddine/internal/metrics"
	"github.com/raphaelgruber/mooddine/internal/models"
)

// countingStore wraps MemoryStore and counts writes.
type countingStore struct {
	*MemoryStore
	writes int
	getErr error
	setErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Get(ctx context.Context) (models.QuotaState, bool, error) {
	if s.getErr != nil {
		return models.QuotaState{}, false, s.getErr
	}
	return s.MemoryStore.Get(ctx)
}

func (s *countingStore) Set(ctx context.Context, state models.QuotaState) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.writes++
	return s.MemoryStore.Set(ctx, state)
}

func (s *countingStore) current(t *testing.T) models.QuotaState {
	t.Helper()
	st, ok, err := s.MemoryStore.Get(context.Background())
	require.NoError(t, err)
	require.True(t, ok, "expected a stored record")
	return st
}

var t0 = time.UnixMilli(1_700_000_000_000)

func TestCheckAndConsumeAllowsUpToLimit(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	gate := NewGate(store)

	for i := 1; i <= models.MaxDailySearches; i++ {
		now := t0.Add(time.Duration(i) * time.Minute)
		decision, err := gate.CheckAndConsume(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, models.Allowed, decision, "call %d", i)
		assert.Equal(t, i, store.current(t).Count, "count after call %d", i)
		assert.Equal(t, i, store.writes, "exactly one write per allowed call")
	}

	// Window anchored at the first call.
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), store.current(t).WindowStart)
}

func TestCheckAndConsumeDeniesWithoutMutation(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	gate := NewGate(store)

	for i := 0; i < models.MaxDailySearches; i++ {
		_, err := gate.CheckAndConsume(ctx, t0)
		require.NoError(t, err)
	}
	before := store.current(t)
	writes := store.writes

	for i := 0; i < 3; i++ {
		decision, err := gate.CheckAndConsume(ctx, t0.Add(23*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.Denied, decision)
	}

	assert.Equal(t, before, store.current(t), "denied calls must not change state")
	assert.Equal(t, writes, store.writes, "denied calls must not write")
}

func TestCheckAndConsumeResetsStaleWindow(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		count     int
		elapsed   time.Duration
		wantCount int
		wantStart time.Time
	}{
		{"exhausted window past one day", 3, models.QuotaWindow + time.Millisecond, 1, t0.Add(models.QuotaWindow + time.Millisecond)},
		{"huge count past one day", 999, 72 * time.Hour, 1, t0.Add(72 * time.Hour)},
		{"exactly one day is not stale", 1, models.QuotaWindow, 2, t0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			require.NoError(t, store.MemoryStore.Set(ctx, models.QuotaState{Count: tt.count, WindowStart: t0.UnixMilli()}))
			gate := NewGate(store)

			decision, err := gate.CheckAndConsume(ctx, t0.Add(tt.elapsed))
			require.NoError(t, err)
			assert.Equal(t, models.Allowed, decision)

			got := store.current(t)
			assert.Equal(t, tt.wantCount, got.Count)
			assert.Equal(t, tt.wantStart.UnixMilli(), got.WindowStart)
		})
	}
}

func TestCheckAndConsumeFailsClosed(t *testing.T) {
	ctx := context.Background()

	t.Run("read error", func(t *testing.T) {
		store := newCountingStore()
		store.getErr = errors.New("disk on fire")
		decision, err := NewGate(store).CheckAndConsume(ctx, t0)
		assert.Equal(t, models.Denied, decision)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.Zero(t, store.writes)
	})

	t.Run("write error", func(t *testing.T) {
		store := newCountingStore()
		store.setErr = errors.New("read-only filesystem")
		decision, err := NewGate(store).CheckAndConsume(ctx, t0)
		assert.Equal(t, models.Denied, decision)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("undecodable record", func(t *testing.T) {
		store := newCountingStore()
		store.getErr = fmt.Errorf("%w: count is not a number", ErrCorruptState)
		decision, err := NewGate(store).CheckAndConsume(ctx, t0)
		assert.Equal(t, models.Denied, decision)
		assert.ErrorIs(t, err, ErrCorruptState)
		assert.NotErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("negative count", func(t *testing.T) {
		store := newCountingStore()
		require.NoError(t, store.MemoryStore.Set(ctx, models.QuotaState{Count: -5, WindowStart: t0.UnixMilli()}))
		decision, err := NewGate(store).CheckAndConsume(ctx, t0)
		assert.Equal(t, models.Denied, decision)
		assert.ErrorIs(t, err, ErrCorruptState)
	})

	t.Run("window far in the future", func(t *testing.T) {
		store := newCountingStore()
		future := t0.Add(10 * models.QuotaWindow)
		require.NoError(t, store.MemoryStore.Set(ctx, models.QuotaState{Count: 0, WindowStart: future.UnixMilli()}))
		decision, err := NewGate(store).CheckAndConsume(ctx, t0)
		assert.Equal(t, models.Denied, decision)
		assert.ErrorIs(t, err, ErrCorruptState)
	})
}

func TestGateOptions(t *testing.T) {
	ctx := context.Background()
	collector := metrics.NewCollector()
	gate := NewGate(NewMemoryStore(), WithLimit(1), WithWindow(time.Hour), WithMetrics(collector))
	assert.Equal(t, 1, gate.Limit())

	d, err := gate.CheckAndConsume(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, models.Allowed, d)

	d, err = gate.CheckAndConsume(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.Denied, d)

	d, err = gate.CheckAndConsume(ctx, t0.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.Allowed, d, "custom window should expire after an hour")

	snap := collector.Snapshot()
	require.NotNil(t, snap.QuotaCheck)
	assert.Equal(t, int64(3), snap.QuotaCheck.Count)
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	gate := NewGate(store)

	st, err := gate.Status(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, Status{Used: 0, Remaining: 3, Limit: 3}, st)

	_, err = gate.CheckAndConsume(ctx, t0)
	require.NoError(t, err)
	_, err = gate.CheckAndConsume(ctx, t0)
	require.NoError(t, err)
	writes := store.writes

	st, err = gate.Status(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, st.Used)
	assert.Equal(t, 1, st.Remaining)
	assert.Equal(t, t0.Add(models.QuotaWindow+time.Millisecond), st.ResetAt)
	assert.Equal(t, writes, store.writes, "Status must not write")

	st, err = gate.Status(ctx, t0.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, st.Remaining, "stale window reports full allowance")
	assert.True(t, st.ResetAt.IsZero())
}

func TestStatusAgreesWithCheckAndConsume(t *testing.T) {
	ctx := context.Background()
	later := t0.Add(2 * models.QuotaWindow)

	tests := []struct {
		name     string
		state    models.QuotaState
		now      time.Time
		wantErr  error
		decision models.Decision
	}{
		{"stale negative count resets", models.QuotaState{Count: -1, WindowStart: t0.UnixMilli()}, later, nil, models.Allowed},
		{"stale exhausted window resets", models.QuotaState{Count: 99, WindowStart: t0.UnixMilli()}, later, nil, models.Allowed},
		{"active negative count", models.QuotaState{Count: -1, WindowStart: t0.UnixMilli()}, t0.Add(time.Hour), ErrCorruptState, models.Denied},
		{"future window", models.QuotaState{WindowStart: later.UnixMilli()}, t0, ErrCorruptState, models.Denied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			require.NoError(t, store.MemoryStore.Set(ctx, tt.state))
			gate := NewGate(store)

			st, statusErr := gate.Status(ctx, tt.now)
			decision, checkErr := gate.CheckAndConsume(ctx, tt.now)

			assert.Equal(t, tt.decision, decision)
			if tt.wantErr != nil {
				assert.ErrorIs(t, statusErr, tt.wantErr)
				assert.ErrorIs(t, checkErr, tt.wantErr)
				assert.Zero(t, store.writes)
				return
			}
			require.NoError(t, statusErr)
			require.NoError(t, checkErr)
			assert.Equal(t, 3, st.Remaining)
			assert.Equal(t, models.QuotaState{Count: 1, WindowStart: tt.now.UnixMilli()}, store.current(t))
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	want := models.QuotaState{Count: 2, WindowStart: t0.UnixMilli()}
	require.NoError(t, s.Set(ctx, want))

	got, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
