// Package workqueue implements the SQLite-backed work queue per-item
// processing jobs run on, plus the worker pool that drains it. Delivery is
// at-least-once; handlers persist idempotently.
package workqueue
