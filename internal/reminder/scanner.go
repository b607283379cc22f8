package reminder

import (
	"context"
	"fmt"
	"time"

	"polytask/internal/eventbus"
	"polytask/internal/notifier"
	"polytask/internal/task"
	logx "polytask/pkg/logx"
)

// TaskSource yields the pending tasks a scan looks at.
type TaskSource interface {
	PendingTasks(ctx context.Context) ([]task.Task, error)
}

// Notifier delivers one message. Failures are reported in the result, never
// returned as panics.
type Notifier interface {
	Send(ctx context.Context, text string) notifier.Result
}

// ScanReport summarizes one scan.
type ScanReport struct {
	Checked      int
	PreReminders int
	DueNow       int
	Skipped      int // already notified within the current window
	Failed       int // send failures and per-task panics
}

func (r ScanReport) Fired() int { return r.PreReminders + r.DueNow }

// FiredEvent is the bus payload for TypeReminderFired.
type FiredEvent struct {
	TaskID  int64            `json:"task_id"`
	Kind    EventKind        `json:"kind"`
	Due     time.Time        `json:"due"`
	Outcome notifier.Outcome `json:"outcome"`
}

// Scanner evaluates pending tasks against the reminder windows.
type Scanner struct {
	settings Settings
	tasks    TaskSource
	notify   Notifier
	cache    *Cache
	log      logx.Logger
	bus      eventbus.Bus
}

func NewScanner(s Settings, tasks TaskSource, notify Notifier, cache *Cache, log logx.Logger, bus eventbus.Bus) *Scanner {
	if cache == nil {
		cache = NewCache()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{
		settings: s.WithDefaults(),
		tasks:    tasks,
		notify:   notify,
		cache:    cache,
		log:      log,
		bus:      bus,
	}
}

// classify picks the event whose window contains diff (time left until the
// deadline). The pre-reminder is checked first; a pre-reminder that was
// already sent does not hide a due-now match on the same tick.
func (s *Scanner) classify(id int64, diff time.Duration) (EventKind, bool) {
	lead := s.settings.ReminderLead()
	tol := s.settings.Tolerance

	inPre := diff >= lead-tol && diff <= lead+tol
	inDue := diff >= -tol && diff <= tol

	if inPre && !s.cache.Has(Key{TaskID: id, Kind: KindPreReminder}) {
		return KindPreReminder, true
	}
	if inDue {
		return KindDueNow, true
	}
	if inPre {
		return KindPreReminder, true
	}
	return "", false
}

// Scan loads pending tasks and sends every reminder whose window contains now.
// Storage errors abort the scan and are returned; per-task problems are logged
// and counted.
func (s *Scanner) Scan(ctx context.Context, now time.Time) (ScanReport, error) {
	var rep ScanReport
	tasks, err := s.tasks.PendingTasks(ctx)
	if err != nil {
		return rep, fmt.Errorf("load pending tasks: %w", err)
	}
	for _, t := range tasks {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if !t.HasDue() {
			continue
		}
		rep.Checked++
		s.scanOne(ctx, t, now, &rep)
	}
	if rep.Fired() > 0 || rep.Failed > 0 {
		s.log.Info("scan fired reminders",
			logx.Int("checked", rep.Checked),
			logx.Int("pre_reminders", rep.PreReminders),
			logx.Int("due_now", rep.DueNow),
			logx.Int("failed", rep.Failed))
	} else {
		s.log.Debug("scan done", logx.Int("checked", rep.Checked), logx.Int("skipped", rep.Skipped))
	}
	return rep, nil
}

func (s *Scanner) scanOne(ctx context.Context, t task.Task, now time.Time, rep *ScanReport) {
	defer func() {
		if r := recover(); r != nil {
			rep.Failed++
			s.log.Error("panic while processing task", logx.Int64("task_id", t.ID), logx.Any("panic", r))
		}
	}()

	diff := t.Due.Sub(now)
	kind, ok := s.classify(t.ID, diff)
	if !ok {
		return
	}
	key := Key{TaskID: t.ID, Kind: kind}
	if s.cache.Has(key) {
		rep.Skipped++
		return
	}

	var text string
	switch kind {
	case KindPreReminder:
		text = preReminderText(t, s.settings.ReminderMinutes, s.settings.Location)
	default:
		text = dueNowText(t)
	}

	res := s.notify.Send(ctx, text)
	// Marked whatever the outcome: an unreachable chat must not be retried every tick.
	s.cache.Mark(key, now)

	switch {
	case res.Outcome == notifier.OutcomeFailed:
		rep.Failed++
		s.log.Warn("reminder not delivered",
			logx.Int64("task_id", t.ID), logx.String("kind", string(kind)), logx.Err(res.Err))
	case kind == KindPreReminder:
		rep.PreReminders++
	default:
		rep.DueNow++
	}
	s.log.Info("reminder fired",
		logx.Int64("task_id", t.ID),
		logx.String("kind", string(kind)),
		logx.Duration("until_due", diff),
		logx.String("outcome", string(res.Outcome)))

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeReminderFired,
			Time: now,
			Data: FiredEvent{TaskID: t.ID, Kind: kind, Due: *t.Due, Outcome: res.Outcome},
		})
	}
}
