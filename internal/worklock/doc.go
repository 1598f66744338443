// Package worklock provides a cross-process mutex with a bounded lease,
// backed by rows in the shared SQLite database. A crashed holder cannot
// deadlock future acquirers: its lease expires and the next TryAcquire takes
// the lock over atomically.
package worklock
