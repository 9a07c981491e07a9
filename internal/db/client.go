// Package db provides a SurrealDB-backed quota store with auto-reconnect support.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/contrib/rews"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/pkg/logger"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

func init() {
	// Force HTTP/1.1 for WSS connections; the websocket upgrade fails under HTTP/2 ALPN.
	gorillaws.DefaultDialer.TLSClientConfig = &tls.Config{
		NextProtos: []string{"http/1.1"},
	}
}

// Config holds SurrealDB connection configuration.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
	AuthLevel string // "root" or "database"
}

// Client wraps a SurrealDB connection with auto-reconnect.
type Client struct {
	conn   *rews.Connection[*gorillaws.Connection]
	db     *surrealdb.DB
	cfg    Config
	logger logger.Logger
}

// auth returns sign-in credentials. Database users are scoped to their
// namespace and database; root users are not.
func (c Config) auth() surrealdb.Auth {
	a := surrealdb.Auth{Username: c.Username, Password: c.Password}
	if c.AuthLevel == "database" {
		a.Namespace, a.Database = c.Namespace, c.Database
	}
	return a
}

// NewClient connects to SurrealDB and selects the quota namespace and database.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{cfg: cfg, logger: logger.New(log.Handler())}
	c.conn = c.dial()

	c.logger.Debug("connecting to SurrealDB", "url", cfg.URL, "auth_level", cfg.AuthLevel)
	if err := c.conn.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := c.open(ctx); err != nil {
		_ = c.conn.Close(ctx)
		return nil, err
	}
	return c, nil
}

// dial builds a reconnecting websocket connection. A quota check retries a
// few times at a fixed pace and then gives up so the gate can deny.
func (c *Client) dial() *rews.Connection[*gorillaws.Connection] {
	codec := surrealcbor.New()
	// gorillaws appends /rpc itself.
	baseURL := strings.TrimSuffix(c.cfg.URL, "/rpc")

	conn := rews.New(
		func(ctx context.Context) (*gorillaws.Connection, error) {
			return gorillaws.New(&connection.Config{
				BaseURL:     baseURL,
				Marshaler:   codec,
				Unmarshaler: codec,
				Logger:      c.logger,
			}), nil
		},
		5*time.Second,
		codec,
		c.logger,
	)
	conn.Retryer = rews.NewFixedDelayRetryer(time.Second, 3)
	return conn
}

// open signs in on an established connection and selects namespace and database.
func (c *Client) open(ctx context.Context) error {
	db, err := surrealdb.FromConnection(ctx, c.conn)
	if err != nil {
		return fmt.Errorf("from connection: %w", err)
	}
	if _, err := db.SignIn(ctx, c.cfg.auth()); err != nil {
		return fmt.Errorf("signin as %s user %q: %w", c.cfg.AuthLevel, c.cfg.Username, err)
	}
	if err := db.Use(ctx, c.cfg.Namespace, c.cfg.Database); err != nil {
		return fmt.Errorf("use %s/%s: %w", c.cfg.Namespace, c.cfg.Database, err)
	}
	c.db = db
	return nil
}

// Close closes the SurrealDB connection.
func (c *Client) Close(ctx context.Context) error {
	return c.conn.Close(ctx)
}

// DB returns the underlying SurrealDB client.
func (c *Client) DB() *surrealdb.DB {
	return c.db
}

// InitSchema defines the quota table.
func (c *Client) InitSchema(ctx context.Context) error {
	if _, err := surrealdb.Query[any](ctx, c.db, SchemaSQL, nil); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// WipeQuota deletes every quota record. Use for testing only.
func (c *Client) WipeQuota(ctx context.Context) error {
	c.logger.Warn("wiping quota table")
	if _, err := surrealdb.Query[any](ctx, c.db, "DELETE quota", nil); err != nil {
		return fmt.Errorf("delete quota: %w", err)
	}
	return nil
}
