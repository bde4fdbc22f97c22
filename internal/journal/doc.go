// Package journal provides SQLite-backed durable storage for synthesizer runs.
//
// A journal is an append-only log of steps:
//   - Runs: one row per engine lifetime, keyed by a UUIDv7 run id
//   - Steps: one row per engine step, keyed by (run_id, seq)
//
// # Ordering
//
// Steps are ordered by seq, the engine's logical clock, NEVER by the
// virtual or wall timestamp. Several steps may share one timestamp.
//
// # Snapshots
//
// Each step stores the full context snapshot as canonical JSON together
// with a SHA-256 hash of it. Two runs driven by the same commands at the
// same virtual times produce identical hashes.
//
// # Replay
//
// Replay re-dispatches a run's journaled commands on a fresh engine and
// compares every step against the journal. It verifies determinism only;
// a journal is never used to restore engine state.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package journal
