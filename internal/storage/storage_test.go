package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

const testKey = "mooddine:quota"

var windowStart = time.UnixMilli(1_700_000_000_000).UnixMilli()

// roundTrip checks the contract every quota.Store must honour.
func roundTrip(t *testing.T, s quota.Store) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get on empty store: %v", err)
	}
	if ok {
		t.Fatalf("Get on empty store reported a record")
	}

	want := models.QuotaState{Count: 2, WindowStart: windowStart}
	if err := s.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := s.Get(ctx)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("Get after Set reported no record")
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}

	// Overwrite replaces rather than accumulates.
	next := models.QuotaState{Count: 3, WindowStart: windowStart + 1}
	if err := s.Set(ctx, next); err != nil {
		t.Fatalf("second Set: %v", err)
	}
	got, _, err = s.Get(ctx)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if got != next {
		t.Errorf("after overwrite = %+v, want %+v", got, next)
	}
}

// =============================================================================
// FILE STORE
// =============================================================================

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "quota.yaml")
	roundTrip(t, NewFileStore(path, testKey))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), "window_start:") {
		t.Errorf("unexpected file contents:\n%s", data)
	}
}

func TestFileStorePreservesOtherKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "quota.yaml")

	other := NewFileStore(path, "someone-else")
	if err := other.Set(ctx, models.QuotaState{Count: 1, WindowStart: 42}); err != nil {
		t.Fatalf("Set other: %v", err)
	}

	mine := NewFileStore(path, testKey)
	if err := mine.Set(ctx, models.QuotaState{Count: 2, WindowStart: windowStart}); err != nil {
		t.Fatalf("Set mine: %v", err)
	}

	got, ok, err := other.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get other: ok=%v err=%v", ok, err)
	}
	if got.Count != 1 || got.WindowStart != 42 {
		t.Errorf("other record clobbered: %+v", got)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "count: [unterminated"},
		{"non numeric count", testKey + ":\n  count: lots\n  window_start: 1\n"},
		{"missing window", testKey + ":\n  count: 1\n"},
		{"scalar document", "just a string\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "quota.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			_, _, err := NewFileStore(path, testKey).Get(context.Background())
			if !errors.Is(err, quota.ErrCorruptState) {
				t.Errorf("Get() error = %v, want ErrCorruptState", err)
			}
		})
	}
}

func TestFileStoreCorruptDeniesThroughGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quota.yaml")
	if err := os.WriteFile(path, []byte(testKey+":\n  count: NaN-ish\n  window_start: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	gate := quota.NewGate(NewFileStore(path, testKey))
	decision, err := gate.CheckAndConsume(context.Background(), time.Now())
	if decision != models.Denied {
		t.Errorf("decision = %v, want denied", decision)
	}
	if !errors.Is(err, quota.ErrCorruptState) {
		t.Errorf("error = %v, want ErrCorruptState", err)
	}
}

// =============================================================================
// SQLITE STORE
// =============================================================================

func openTestSQLite(t *testing.T, dir string) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(dir, testKey)
	if err != nil {
		t.Fatalf("OpenSQLite(%s) failed: %v", dir, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	roundTrip(t, openTestSQLite(t, ":memory:"))
}

// TestSQLiteStorePersists reopens the database and expects the record back.
func TestSQLiteStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s1, err := OpenSQLite(dir, testKey)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	want := models.QuotaState{Count: 2, WindowStart: windowStart}
	if err := s1.Set(ctx, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s1.Close()

	s2 := openTestSQLite(t, dir)
	got, ok, err := s2.Get(ctx)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if got != want {
		t.Errorf("after reopen = %+v, want %+v", got, want)
	}
}

// =============================================================================
// REDIS STORE
// =============================================================================

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	roundTrip(t, NewRedisStore(client, testKey))

	assert.Equal(t, "3", mr.HGet(testKey, fieldCount))
	assert.Equal(t, 2*models.QuotaWindow, mr.TTL(testKey))
}

func TestRedisStoreExpiredKeyReadsAbsent(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewRedisStore(client, testKey)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, models.QuotaState{Count: 3, WindowStart: windowStart}))
	mr.FastForward(2*models.QuotaWindow + time.Second)

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreCorrupt(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"non numeric count", []string{fieldCount, "three", fieldWindowStart, "1"}},
		{"non numeric window", []string{fieldCount, "1", fieldWindowStart, "yesterday"}},
		{"missing count", []string{fieldWindowStart, "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mr := setupTestRedis(t)
			mr.HSet(testKey, tt.fields...)

			_, _, err := NewRedisStore(client, testKey).Get(context.Background())
			assert.ErrorIs(t, err, quota.ErrCorruptState)
		})
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	gate := quota.NewGate(NewRedisStore(client, testKey))
	decision, err := gate.CheckAndConsume(context.Background(), time.Now())
	assert.Equal(t, models.Denied, decision)
	assert.ErrorIs(t, err, quota.ErrStoreUnavailable)
}
