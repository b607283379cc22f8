package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"polytask/internal/app"
	"polytask/internal/reminder"
	"polytask/internal/task"
)

type handler func(ctx context.Context, a *app.App, args []string, out io.Writer) error

var commands = map[string]handler{
	"add":    cmdAdd,
	"done":   cmdDone,
	"delete": cmdDelete,
	"list":   cmdList,
	"groups": cmdGroups,
	"report": cmdReport,
}

type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

var dueLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

// parseDue accepts RFC 3339 or a local date/time in loc.
func parseDue(raw string, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return &t, nil
		}
	}
	return nil, usageError{fmt.Sprintf("invalid -due %q (use YYYY-MM-DD HH:MM)", raw)}
}

func parseID(args []string, cmd string) (int64, error) {
	if len(args) != 1 {
		return 0, usageError{fmt.Sprintf("usage: polytask %s ID", cmd)}
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError{fmt.Sprintf("invalid task id %q", args[0])}
	}
	return id, nil
}

func cmdAdd(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("add", out)
	title := fs.String("title", "", "task title (required)")
	desc := fs.String("desc", "", "description")
	group := fs.String("group", "", "group name (created if missing)")
	prio := fs.String("priority", "medium", "low|medium|high or 1..3")
	tags := fs.String("tags", "", "comma-separated tags")
	due := fs.String("due", "", "due date, YYYY-MM-DD HH:MM")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	if strings.TrimSpace(*title) == "" {
		return usageError{"add: -title is required"}
	}
	p, err := task.ParsePriority(*prio, a.Config().Priorities)
	if err != nil {
		return usageError{err.Error()}
	}
	dueAt, err := parseDue(*due, a.Location())
	if err != nil {
		return err
	}

	st := a.Store()
	if g := strings.TrimSpace(*group); g != "" {
		if _, err := st.AddGroup(ctx, g); err != nil {
			return err
		}
	}
	id, err := st.AddTask(ctx, task.Task{
		Title:       *title,
		Description: *desc,
		Group:       strings.TrimSpace(*group),
		Priority:    p,
		Tags:        task.SplitTags(*tags),
		Due:         dueAt,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added task %d\n", id)
	return nil
}

func cmdDone(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	id, err := parseID(args, "done")
	if err != nil {
		return err
	}
	if err := a.Store().MarkDone(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("task %d: %w", id, err)
	}
	fmt.Fprintf(out, "task %d done\n", id)
	return nil
}

func cmdDelete(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	id, err := parseID(args, "delete")
	if err != nil {
		return err
	}
	if err := a.Store().DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("task %d: %w", id, err)
	}
	fmt.Fprintf(out, "task %d deleted\n", id)
	return nil
}

func cmdList(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("list", out)
	status := fs.String("status", "pending", "pending|done|all")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	var s task.Status
	switch *status {
	case "all":
	case string(task.StatusPending), string(task.StatusDone):
		s = task.Status(*status)
	default:
		return usageError{fmt.Sprintf("invalid -status %q", *status)}
	}
	tasks, err := a.Store().ListTasks(ctx, s)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return nil
	}
	loc := a.Location()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tGROUP\tPRIORITY\tDUE\tSTATUS\tTAGS")
	for _, t := range tasks {
		due := "-"
		if t.HasDue() {
			due = t.Due.In(loc).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Title, orDash(t.Group), t.Priority, due, t.Status, orDash(strings.Join(t.Tags, ",")))
	}
	return tw.Flush()
}

func cmdGroups(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	st := a.Store()
	if len(args) == 0 {
		groups, err := st.Groups(ctx)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Fprintln(out, "no groups")
		}
		for _, g := range groups {
			fmt.Fprintln(out, g)
		}
		return nil
	}
	if len(args) != 2 {
		return usageError{"usage: polytask groups [add|delete NAME]"}
	}
	name := args[1]
	switch args[0] {
	case "add":
		created, err := st.AddGroup(ctx, name)
		if err != nil {
			return err
		}
		if !created {
			fmt.Fprintf(out, "group %q already exists\n", name)
			return nil
		}
		fmt.Fprintf(out, "group %q added\n", name)
	case "delete":
		if err := st.DeleteGroup(ctx, name); err != nil {
			return fmt.Errorf("group %q: %w", name, err)
		}
		fmt.Fprintf(out, "group %q deleted\n", name)
	default:
		return usageError{fmt.Sprintf("unknown groups action %q", args[0])}
	}
	return nil
}

func cmdReport(ctx context.Context, a *app.App, args []string, out io.Writer) error {
	fs := newFlagSet("report", out)
	send := fs.Bool("send", false, "send the digest to telegram")
	if err := fs.Parse(args); err != nil {
		return usageError{err.Error()}
	}
	now := time.Now()
	if !*send {
		tasks, err := a.Store().PendingTasks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reminder.Compose(tasks, now, a.Location()))
		return nil
	}
	r := reminder.NewReporter(a.Store(), a.Notifier(), a.Location(), a.Logger(), nil)
	res, err := r.Report(ctx, now)
	if err != nil {
		return err
	}
	if !res.Sent() {
		return errors.Join(fmt.Errorf("report %s", res.Outcome), res.Err)
	}
	fmt.Fprintln(out, "weekly report sent")
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
