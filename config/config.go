// Package config handles loading and validating worker configuration from
// environment variables. All values have sensible defaults so the worker
// can start with zero environment setup during local development.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Config holds every configuration value for the worker. Values are read
// once at startup and passed through the app via dependency injection; no
// package-level config variable exists, so every dependency on it is
// visible in a constructor signature.
type Config struct {
	// DatabaseURL is the SQLite DSN (file path) backing the Service and
	// Deployment tables.
	DatabaseURL string

	// KVURL is the Redis connection string backing the Queue Runtime, the
	// Log Bus, and the Distributed Status Lock.
	KVURL string

	// DockerHost overrides the default daemon connection. When it contains
	// the literal substring "docker-socket-proxy" builders are started
	// with no bind mounts at all (socket-proxy mode); otherwise the daemon
	// socket is bind-mounted (read-write) into the builder.
	DockerHost string

	PlatformDomain string

	ContainerMemoryLimitBytes int64
	ContainerCPUNanoCPUs      int64

	MaxLogSizeChars int

	StatusLockTTL time.Duration

	ImageRetentionDays  int
	CleanupDanglingImgs bool
	CleanupOldImages    bool
	CleanupCronSpec     string

	WorkerHealthPort int

	// NodeEnv is one of development, production, test.
	NodeEnv string

	// LogFormat controls the slog handler: "text" (default, human readable)
	// or "json" (structured, for log shipping in production).
	LogFormat string
}

// NewLogger constructs a *slog.Logger based on the LogFormat field.
// "json" produces structured JSON, matching the shape Docker log drivers
// expect; any other value produces human-readable text output.
func (c *Config) NewLogger() *slog.Logger {
	var handler slog.Handler

	options := &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelInfo,
		ReplaceAttr: func(groups []string, attribute slog.Attr) slog.Attr {
			if attribute.Key == slog.SourceKey {
				source := attribute.Value.Any().(*slog.Source)
				source.File = filepath.Base(source.File)
			}
			return attribute
		},
	}

	if c.NodeEnv == "development" {
		options.Level = slog.LevelDebug
	}

	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, options)
	} else {
		handler = slog.NewTextHandler(os.Stdout, options)
	}

	return slog.New(handler)
}

// UsesSocketProxy reports whether DockerHost points at a socket-proxy
// endpoint rather than the raw daemon socket. Builders started under a
// socket-proxy receive no bind mounts at all.
func (c *Config) UsesSocketProxy() bool {
	return strings.Contains(c.DockerHost, "docker-socket-proxy")
}

// Load reads configuration from environment variables. Every validation
// failure is accumulated rather than returned on first error, so a
// misconfigured deployment gets one complete error report instead of a
// fix-one-run-again loop.
func Load() (*Config, error) {
	var errs *multierror.Error

	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", "./worker.db"),
		KVURL:               getEnv("KV_URL", "redis://localhost:6379/0"),
		DockerHost:          getEnv("DOCKER_HOST", ""),
		PlatformDomain:      getEnv("PLATFORM_DOMAIN", "helvetia.cloud"),
		CleanupCronSpec:     getEnv("CLEANUP_CRON_SPEC", "0 2 * * *"),
		NodeEnv:             getEnv("NODE_ENV", "development"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		CleanupDanglingImgs: getEnvBool("CLEANUP_DANGLING_IMAGES", true),
		CleanupOldImages:    getEnvBool("CLEANUP_OLD_IMAGES", true),
	}

	if cfg.DatabaseURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("DATABASE_URL must not be empty"))
	}
	if cfg.KVURL == "" {
		errs = multierror.Append(errs, fmt.Errorf("KV_URL must not be empty"))
	}

	switch cfg.NodeEnv {
	case "development", "production", "test":
	default:
		errs = multierror.Append(errs, fmt.Errorf("NODE_ENV must be one of development|production|test, got %q", cfg.NodeEnv))
	}

	memLimit, err := getEnvInt64("CONTAINER_MEMORY_LIMIT_BYTES", 536870912)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.ContainerMemoryLimitBytes = memLimit

	cpuNano, err := getEnvInt64("CONTAINER_CPU_NANOCPUS", 1000000000)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.ContainerCPUNanoCPUs = cpuNano

	maxLog, err := getEnvIntBounded("MAX_LOG_SIZE_CHARS", 50000, 1000, 1000000)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.MaxLogSizeChars = maxLog

	lockTTLSeconds, err := getEnvIntBounded("STATUS_LOCK_TTL_SECONDS", 10, 1, 60)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.StatusLockTTL = time.Duration(lockTTLSeconds) * time.Second

	retentionDays, err := getEnvIntBounded("IMAGE_RETENTION_DAYS", 7, 1, 90)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.ImageRetentionDays = retentionDays

	healthPort, err := getEnvIntBounded("WORKER_HEALTH_PORT", 3003, 1024, 65535)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	cfg.WorkerHealthPort = healthPort

	if errs.ErrorOrNil() != nil {
		return nil, errs.ErrorOrNil()
	}
	return cfg, nil
}

func getEnv(key, fallbackValue string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallbackValue
}

func getEnvBool(key string, fallbackValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallbackValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallbackValue
	}
	return parsed
}

func getEnvInt64(key string, fallbackValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallbackValue, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q: %w", key, value, err)
	}
	return parsed, nil
}

func getEnvIntBounded(key string, fallbackValue, min, max int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallbackValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q: %w", key, value, err)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be in [%d, %d], got %d", key, min, max, parsed)
	}
	return parsed, nil
}
