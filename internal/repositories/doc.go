// Package repositories implements SQLite persistence for sync run history.
//
// Key Implementations:
//   - [RunRepository] : runs and the items that exhausted their retries during them
//   - [HistoryRecorder] : adapts RunRepository to the task engine's recorder interface
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
