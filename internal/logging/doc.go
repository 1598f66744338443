// Package logging provides slog construction, shared attribute helpers, and
// context-derived log enrichment for Corral components.
package logging
