package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polytask/internal/task"
	logx "polytask/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const sqliteTimeLayout = time.RFC3339Nano

// Layouts accepted when reading due dates written by other tools. Zone-less
// layouts are interpreted in the store's location.
var dueLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

type SQLiteStore struct {
	db  *sql.DB
	log logx.Logger
	loc *time.Location
}

func openSQLite(cfg Config, log logx.Logger) (*SQLiteStore, error) {
	path := cfg.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	st := &SQLiteStore{db: db, log: log, loc: loc}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	if path != ":memory:" {
		_, _ = db.Exec("PRAGMA journal_mode = WAL")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	}

	if err := st.Init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

// Init applies the embedded schema. It is idempotent.
func (s *SQLiteStore) Init(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) AddTask(ctx context.Context, t task.Task) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrClosed
	}
	if t.Status == "" {
		t.Status = task.StatusPending
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, group_name, priority, tags, due_date, status, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.TrimSpace(t.Title), t.Description, t.Group, int(t.Priority), strings.Join(t.Tags, ","),
		nullTime(t.Due), string(t.Status), mustTime(created), nullTime(t.CompletedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (task.Task, error) {
	if s == nil || s.db == nil {
		return task.Task{}, ErrClosed
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := s.scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, ErrNotFound
		}
		return task.Task{}, err
	}
	return t, nil
}

// MarkDone flips a task to done and stamps completed_at.
func (s *SQLiteStore) MarkDone(ctx context.Context, id int64, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?`,
		string(task.StatusDone), mustTime(at), id,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// ListTasks returns tasks with the given status, or all tasks when status is empty.
func (s *SQLiteStore) ListTasks(ctx context.Context, status task.Status) ([]task.Task, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	args := make([]any, 0, 1)
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]task.Task, 0)
	for rows.Next() {
		t, scanErr := s.scanTask(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PendingTasks is the read path polled by the reminder loop.
func (s *SQLiteStore) PendingTasks(ctx context.Context) ([]task.Task, error) {
	return s.ListTasks(ctx, task.StatusPending)
}

func (s *SQLiteStore) Groups(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM task_groups ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// AddGroup creates a group. It reports false when the group already exists.
func (s *SQLiteStore) AddGroup(ctx context.Context, name string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrClosed
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return false, errors.New("storage: group name is required")
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO task_groups (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteGroup(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM task_groups WHERE name = ?`, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

const taskColumns = `id, title, description, group_name, priority, tags, due_date, status, created_at, completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanTask(sc scanner) (task.Task, error) {
	var (
		out       task.Task
		priority  int
		tags      string
		due       sql.NullString
		status    string
		created   string
		completed sql.NullString
	)
	if err := sc.Scan(&out.ID, &out.Title, &out.Description, &out.Group, &priority, &tags, &due, &status, &created, &completed); err != nil {
		return task.Task{}, err
	}
	out.Priority = task.Priority(priority)
	out.Tags = task.SplitTags(tags)
	out.Status = task.Status(status)

	createdAt, err := s.parseDue(sql.NullString{String: created, Valid: true})
	if err != nil {
		s.log.Warn("unparseable created_at; leaving it zero",
			logx.Int64("task_id", out.ID), logx.String("raw", created), logx.Err(err))
	} else if createdAt != nil {
		out.CreatedAt = *createdAt
	}

	// An unreadable due date degrades to "no deadline" rather than failing the whole read.
	dueAt, err := s.parseDue(due)
	if err != nil {
		s.log.Warn("unparseable due date; treating as undated",
			logx.Int64("task_id", out.ID), logx.String("raw", due.String), logx.Err(err))
	}
	out.Due = dueAt

	completedAt, err := s.parseDue(completed)
	if err == nil {
		out.CompletedAt = completedAt
	}
	return out, nil
}

func (s *SQLiteStore) parseDue(v sql.NullString) (*time.Time, error) {
	raw := strings.TrimSpace(v.String)
	if !v.Valid || raw == "" {
		return nil, nil
	}
	if tm, err := time.Parse(sqliteTimeLayout, raw); err == nil {
		return &tm, nil
	}
	for _, layout := range dueLayouts {
		if tm, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return &tm, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", raw)
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
