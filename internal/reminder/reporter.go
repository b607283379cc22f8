package reminder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"polytask/internal/eventbus"
	"polytask/internal/notifier"
	"polytask/internal/task"
	logx "polytask/pkg/logx"
)

const (
	digestSectionLimit = 5
	digestHorizon      = 7 * 24 * time.Hour
)

const emptyDigest = "📅 *Weekly report*\n\nWell done! No pending tasks. 🎉"

// WeeklyEvent is the bus payload for TypeWeeklyReport.
type WeeklyEvent struct {
	Pending int              `json:"pending"`
	Outcome notifier.Outcome `json:"outcome"`
}

// Reporter builds and sends the weekly digest.
type Reporter struct {
	tasks  TaskSource
	notify Notifier
	loc    *time.Location
	log    logx.Logger
	bus    eventbus.Bus
}

func NewReporter(tasks TaskSource, notify Notifier, loc *time.Location, log logx.Logger, bus eventbus.Bus) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Reporter{tasks: tasks, notify: notify, loc: loc, log: log, bus: bus}
}

// Report composes the digest for now and sends it. The error covers storage
// failures only; delivery problems are in the result.
func (r *Reporter) Report(ctx context.Context, now time.Time) (notifier.Result, error) {
	tasks, err := r.tasks.PendingTasks(ctx)
	if err != nil {
		return notifier.Result{Outcome: notifier.OutcomeFailed, Err: err, At: now}, fmt.Errorf("load pending tasks: %w", err)
	}
	text := Compose(tasks, now, r.loc)
	res := r.notify.Send(ctx, text)
	r.log.Info("weekly report sent",
		logx.Int("pending", len(tasks)),
		logx.String("outcome", string(res.Outcome)),
		logx.Err(res.Err))
	if r.bus != nil {
		r.bus.Publish(eventbus.Event{
			Type: eventbus.TypeWeeklyReport,
			Time: now,
			Data: WeeklyEvent{Pending: len(tasks), Outcome: res.Outcome},
		})
	}
	return res, nil
}

// Compose renders the weekly digest for the given pending tasks.
//
// Sections, each omitted when empty:
//   - overdue: due before now, by priority (high first) then due date, at most 5
//   - this week: due within [now, now+7d], by due date, at most 5
//   - urgent without a date: every undated high-priority task
func Compose(tasks []task.Task, now time.Time, loc *time.Location) string {
	if len(tasks) == 0 {
		return emptyDigest
	}
	if loc == nil {
		loc = time.Local
	}

	var overdue, week, urgent []task.Task
	urgentTotal := 0
	horizon := now.Add(digestHorizon)
	for _, t := range tasks {
		if t.Priority.Urgent() {
			urgentTotal++
		}
		switch {
		case !t.HasDue():
			if t.Priority.Urgent() {
				urgent = append(urgent, t)
			}
		case t.Due.Before(now):
			overdue = append(overdue, t)
		case !t.Due.After(horizon):
			week = append(week, t)
		}
	}

	sort.SliceStable(overdue, func(i, j int) bool {
		a, b := overdue[i], overdue[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Due.Equal(*b.Due) {
			return a.Due.Before(*b.Due)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(week, func(i, j int) bool {
		a, b := week[i], week[j]
		if !a.Due.Equal(*b.Due) {
			return a.Due.Before(*b.Due)
		}
		return a.ID < b.ID
	})
	sort.SliceStable(urgent, func(i, j int) bool { return urgent[i].ID < urgent[j].ID })

	var sb strings.Builder
	sb.WriteString("📅 *Weekly report*\n\n")
	fmt.Fprintf(&sb, "📋 Pending: *%d* (🔴 urgent: *%d*)\n", len(tasks), urgentTotal)

	writeSection(&sb, "⚠️ *Overdue*", overdue, digestSectionLimit, loc)
	writeSection(&sb, "🗓 *This week*", week, digestSectionLimit, loc)
	writeSection(&sb, "🔥 *Urgent, no date*", urgent, 0, loc)

	return strings.TrimRight(sb.String(), "\n")
}

// writeSection appends a titled list. limit <= 0 means no limit.
func writeSection(sb *strings.Builder, title string, items []task.Task, limit int, loc *time.Location) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	shown := items
	if limit > 0 && len(items) > limit {
		shown = items[:limit]
	}
	for _, t := range shown {
		sb.WriteString(digestLine(t, loc))
		sb.WriteString("\n")
	}
	if rest := len(items) - len(shown); rest > 0 {
		fmt.Fprintf(sb, "+%d more\n", rest)
	}
}
