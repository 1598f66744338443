package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.WatchDir == "" {
		return errors.New("paths.watch_dir is required")
	}
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir is required")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir is required")
	}
	if c.Paths.WatchDir == c.Paths.DataDir {
		return errors.New("paths.watch_dir and paths.data_dir must differ")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.LockLeaseSeconds < 10 {
		return fmt.Errorf("ingest.lock_lease_seconds must be at least 10, got %d", c.Ingest.LockLeaseSeconds)
	}
	if c.Ingest.PageSize > 10000 {
		return fmt.Errorf("ingest.page_size must not exceed 10000, got %d", c.Ingest.PageSize)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
