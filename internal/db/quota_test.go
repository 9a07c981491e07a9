//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/quota"
)

var testDB *Client

// TestMain starts a SurrealDB container shared by all tests in the package.
func TestMain(m *testing.M) {
	// Ryuk can fail in rootless environments.
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "mooddine",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func TestQuotaStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeQuota(ctx))
	s := testDB.QuotaStore("roundtrip")

	_, ok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "no record before first write")

	want := models.QuotaState{Count: 2, WindowStart: 1_700_000_000_000}
	require.NoError(t, s.Set(ctx, want))

	got, ok, err := s.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestQuotaStoreKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeQuota(ctx))

	a := testDB.QuotaStore("alice")
	b := testDB.QuotaStore("bob")
	require.NoError(t, a.Set(ctx, models.QuotaState{Count: 3, WindowStart: 1}))

	_, ok, err := b.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestQuotaStoreBehindGate(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeQuota(ctx))

	gate := quota.NewGate(testDB.QuotaStore("gate"))
	now := time.UnixMilli(1_700_000_000_000)

	for i := 0; i < models.MaxDailySearches; i++ {
		d, err := gate.CheckAndConsume(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, models.Allowed, d)
	}
	d, err := gate.CheckAndConsume(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, models.Denied, d)
}
