package reminder

import (
	"context"
	"strings"
	"sync"
	"time"

	"polytask/internal/notifier"
	"polytask/internal/task"
)

var base = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // a Wednesday

type fakeTasks struct {
	mu    sync.Mutex
	tasks []task.Task
	err   error
}

func (f *fakeTasks) PendingTasks(context.Context) ([]task.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]task.Task(nil), f.tasks...), nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	texts   []string
	outcome notifier.Outcome
	// panicOn makes Send panic for texts containing this marker.
	panicOn string
}

func (f *fakeNotifier) Send(_ context.Context, text string) notifier.Result {
	if f.panicOn != "" && strings.Contains(text, f.panicOn) {
		panic("notifier exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	out := f.outcome
	if out == "" {
		out = notifier.OutcomeSent
	}
	res := notifier.Result{Outcome: out, At: time.Now()}
	if out == notifier.OutcomeFailed {
		res.Err = context.DeadlineExceeded
	}
	return res
}

func (f *fakeNotifier) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeNotifier) count(prefix string) int {
	n := 0
	for _, s := range f.sent() {
		if strings.HasPrefix(s, prefix) {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	ch  chan time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, ch: make(chan time.Time)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker { return fakeTicker{c.ch} }

// Tick moves the clock forward and wakes the loop.
func (c *fakeClock) Tick(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.ch <- now
}

type fakeTicker struct{ ch chan time.Time }

func (t fakeTicker) C() <-chan time.Time { return t.ch }
func (t fakeTicker) Stop()               {}

func dated(id int64, title string, p task.Priority, due time.Time) task.Task {
	return task.Task{ID: id, Title: title, Group: "work", Priority: p, Due: &due, Status: task.StatusPending}
}

func undated(id int64, title string, p task.Priority) task.Task {
	return task.Task{ID: id, Title: title, Priority: p, Status: task.StatusPending}
}

const (
	prePrefix    = "⏰ *REMINDER"
	dueNowPrefix = "🚨 *IT'S TIME!*"
	weeklyPrefix = "📅 *Weekly report*"
)
