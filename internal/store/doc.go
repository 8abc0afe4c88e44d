// Package store provides SQLite-backed storage for sweep results.
//
// The store is append-only:
//   - Sweeps: one row per sweep, with the plan as JSON
//   - Points: one row per finished point, with the exact run parameters,
//     the terminal state, the failure diagnostic and the trace digest
//
// # Ordering
//
// Rows carry a logical seq assigned inside the writing transaction. Listings
// order by seq (sweeps) or point index (points), never by wall time, so two
// reads of the same database always agree.
//
// # Idempotency
//
// Points are keyed by (sweep_id, idx). Writing a point twice keeps the first
// record, so a resumed sweep can rewrite everything it ran.
//
// # Replay
//
// A stored point keeps the resolved seed and every run parameter.
// PointRecord.Point rebuilds the sweep point, and rerunning it must
// reproduce the stored digest.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
