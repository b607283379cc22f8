package storage

import (
	"context"
	"errors"
	"time"

	"polytask/internal/task"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
	// Location interprets stored due dates that carry no zone offset.
	// nil means time.Local.
	Location *time.Location
}

// Store is the persistence API used by the app and the CLI.
type Store interface {
	AddTask(ctx context.Context, t task.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (task.Task, error)
	MarkDone(ctx context.Context, id int64, at time.Time) error
	DeleteTask(ctx context.Context, id int64) error
	ListTasks(ctx context.Context, status task.Status) ([]task.Task, error)
	PendingTasks(ctx context.Context) ([]task.Task, error)

	Groups(ctx context.Context) ([]string, error)
	AddGroup(ctx context.Context, name string) (bool, error)
	DeleteGroup(ctx context.Context, name string) error

	Close() error
}
