// Package catalog persists catalog records and ingestion run state in SQLite.
//
// Records are created sparse at discovery time via idempotent inserts and
// enriched later by processing workers. Run rows are the durable progress
// state external pollers read while an ingestion pass executes.
package catalog
