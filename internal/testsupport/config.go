package testsupport

import (
	"path/filepath"
	"testing"

	"corral/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WatchDir = filepath.Join(base, "watch")
	cfg.Paths.LibraryDir = filepath.Join(base, "library")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Ingest.LockLeaseSeconds = 60
	cfg.Workers.Count = 2

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithWatchDir overrides the watch directory on the test config.
func WithWatchDir(path string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.WatchDir = path
	}
}

// WithAPIToken requires bearer authentication on the test daemon's API.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.APIToken = token
	}
}

// WithLockLease overrides the ingest lock lease in seconds.
func WithLockLease(seconds int) ConfigOption {
	return func(c *config.Config) {
		c.Ingest.LockLeaseSeconds = seconds
	}
}
