// Package storage is the durable key-value medium behind the recurring order
// store. Each value is an opaque byte blob replaced as a whole on Put.
//
// Drivers:
//   - "memory": process-local map (tests, throwaway runs)
//   - "file": one JSON file per key in a directory, written via tmp+rename
//   - "sqlite": single-table SQLite database (modernc.org/sqlite)
//   - "postgres": single-table PostgreSQL database (pgx)
package storage
