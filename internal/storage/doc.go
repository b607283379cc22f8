// Package storage persists tasks and task groups in SQLite.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is
// needed. The schema is embedded (migrations.sql) and applied on Open.
//
// The reminder core only reads through PendingTasks; everything else is used
// by the CLI.
package storage
