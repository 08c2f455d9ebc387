// Package store provides optional SQLite-backed provenance for retrievals.
//
// Nothing in a retrieval depends on it: the chunk store on disk is the only
// state a retrieval needs. When enabled, the store records:
//   - Runs: one row per retrieval, with its outcome and chain tip
//   - Chunks: which source identifier delivered which content hash
//   - Failures: per-chunk fetch errors, for later retry
//
// # Ordering
//
// Listings are ordered by insertion (rowid), never by wall-clock time, so
// results are stable even when clocks step backwards.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
