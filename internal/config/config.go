package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Quota store backends accepted by MOODDINE_QUOTA_STORE.
const (
	StoreMemory    = "memory"
	StoreFile      = "file"
	StoreSQLite    = "sqlite"
	StoreRedis     = "redis"
	StoreSurrealDB = "surrealdb"
)

// Config holds all configuration values.
type Config struct {
	// Recommendation endpoint
	RecommendURL  string        `validate:"required,url"`
	SearchTimeout time.Duration `validate:"gt=0"`

	// Quota
	DailyLimit int    `validate:"gt=0"`
	QuotaStore string `validate:"oneof=memory file sqlite redis surrealdb"`
	QuotaKey   string `validate:"required"`
	QuotaFile  string `validate:"required_if=QuotaStore file"`
	DataDir    string `validate:"required_if=QuotaStore sqlite"`

	// Redis
	RedisAddr     string `validate:"required_if=QuotaStore redis"`
	RedisPassword string
	RedisDB       int `validate:"gte=0"`

	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string `validate:"oneof=root database"`

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
func FromEnv() (Config, error) {
	home := homeDir()
	dataDir := getEnv("MOODDINE_DATA_DIR", filepath.Join(home, ".mooddine"))

	var errs []error
	cfg := Config{
		RecommendURL:  getEnv("MOODDINE_RECOMMEND_URL", "http://localhost:5678/webhook/mood-search"),
		SearchTimeout: getDuration("MOODDINE_SEARCH_TIMEOUT", 30*time.Second, &errs),

		DailyLimit: getInt("MOODDINE_DAILY_LIMIT", 3, &errs),
		QuotaStore: strings.ToLower(getEnv("MOODDINE_QUOTA_STORE", StoreFile)),
		QuotaKey:   getEnv("MOODDINE_QUOTA_KEY", "mooddine:quota"),
		QuotaFile:  getEnv("MOODDINE_QUOTA_FILE", filepath.Join(dataDir, "quota.yaml")),
		DataDir:    dataDir,

		RedisAddr:     getEnv("MOODDINE_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("MOODDINE_REDIS_PASSWORD", ""),
		RedisDB:       getInt("MOODDINE_REDIS_DB", 0, &errs),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "mooddine"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "mooddine"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LogFile:  getEnv("MOODDINE_LOG_FILE", "/tmp/mooddine.log"),
		LogLevel: parseLogLevel(getEnv("MOODDINE_LOG_LEVEL", "INFO")),
	}
	if len(errs) > 0 {
		return cfg, errors.Join(errs...)
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getInt(key string, defaultVal int, errs *[]error) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return n
}

func getDuration(key string, defaultVal time.Duration, errs *[]error) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultVal
	}
	return d
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
