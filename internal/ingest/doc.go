// Package ingest coordinates ingestion runs: it guards each run with a
// catalog-wide lock, streams the content store through the classifier,
// dispatches work items, and tracks their completion against a durable,
// externally pollable run row.
package ingest
