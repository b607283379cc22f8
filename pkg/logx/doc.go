// Package logx configures polytask's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured, one event per line
//
// The zero Logger is a safe no-op, so components can take a Logger by value
// without nil checks.
package logx
