// Package logx configures reorder's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - Console output stays readable (short timestamp + short caller)
//   - File output is JSON, one event per line
//   - Sinks and level can be swapped at runtime through Service.Apply
package logx
