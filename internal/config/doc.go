// Package config loads, normalizes, and validates Corral's TOML configuration.
package config
