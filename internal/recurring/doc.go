// Package recurring implements client-owned recurring orders: templates of
// catalog lines plus a cadence, materialized into the client's cart whenever
// they fall due and then re-armed for the next cycle.
//
// The package holds the pieces below the scheduler:
//   - cadence arithmetic (ComputeNextExecution)
//   - the per-client durable collection (Store)
//   - cart materialization (Materializer)
//   - due detection and advance (Scanner)
//
// Timer ownership lives in internal/recurring/scheduler.
package recurring
