package config

import "testing"

func clearWorkerEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "KV_URL", "DOCKER_HOST", "PLATFORM_DOMAIN",
		"CLEANUP_CRON_SPEC", "NODE_ENV", "LOG_FORMAT",
		"CLEANUP_DANGLING_IMAGES", "CLEANUP_OLD_IMAGES",
		"CONTAINER_MEMORY_LIMIT_BYTES", "CONTAINER_CPU_NANOCPUS",
		"MAX_LOG_SIZE_CHARS", "STATUS_LOCK_TTL_SECONDS",
		"IMAGE_RETENTION_DAYS", "WORKER_HEALTH_PORT",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearWorkerEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DatabaseURL != "./worker.db" {
		t.Errorf("DatabaseURL = %q, want default", cfg.DatabaseURL)
	}
	if cfg.NodeEnv != "development" {
		t.Errorf("NodeEnv = %q, want development", cfg.NodeEnv)
	}
	if cfg.WorkerHealthPort != 3003 {
		t.Errorf("WorkerHealthPort = %d, want 3003", cfg.WorkerHealthPort)
	}
	if cfg.StatusLockTTL.Seconds() != 10 {
		t.Errorf("StatusLockTTL = %v, want 10s", cfg.StatusLockTTL)
	}
}

func TestLoadRejectsInvalidNodeEnv(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("NODE_ENV", "staging")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for invalid NODE_ENV, got nil")
	}
}

func TestLoadRejectsOutOfBoundsInt(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("WORKER_HEALTH_PORT", "80")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for out-of-bounds WORKER_HEALTH_PORT, got nil")
	}
}

func TestLoadAccumulatesMultipleErrors(t *testing.T) {
	clearWorkerEnv(t)
	t.Setenv("NODE_ENV", "bogus")
	t.Setenv("WORKER_HEALTH_PORT", "80")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error, got nil")
	}
	if len(err.Error()) == 0 {
		t.Fatal("Load() error message is empty")
	}
}

func TestUsesSocketProxy(t *testing.T) {
	cfg := &Config{DockerHost: "tcp://docker-socket-proxy:2375"}
	if !cfg.UsesSocketProxy() {
		t.Fatal("UsesSocketProxy() = false, want true")
	}

	cfg = &Config{DockerHost: "unix:///var/run/docker.sock"}
	if cfg.UsesSocketProxy() {
		t.Fatal("UsesSocketProxy() = true, want false")
	}
}

func TestNewLoggerDoesNotPanic(t *testing.T) {
	cfg := &Config{NodeEnv: "production", LogFormat: "json"}
	logger := cfg.NewLogger()
	if logger == nil {
		t.Fatal("NewLogger() returned nil")
	}
	logger.Info("test message", "key", "value")
}
