// Package daemon runs Corral's long-lived process: it holds the per-instance
// file lock, drives the worker pool, and serves the HTTP API that clients use
// to trigger and observe ingestion runs.
package daemon
