// Package notifications delivers ingestion events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Publishing is best effort everywhere: callers log failures and
// move on.
package notifications
