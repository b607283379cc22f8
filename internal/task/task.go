// Package task holds the task domain model shared by storage, the reminder
// core and the CLI.
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidStatus   = errors.New("task: invalid status")
	ErrInvalidPriority = errors.New("task: invalid priority")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDone:
		return true
	default:
		return false
	}
}

// Priority is 1 (low), 2 (medium) or 3 (high). Values outside the range can
// still come back from storage; readers must tolerate them.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

func (p Priority) IsValid() bool { return p >= PriorityLow && p <= PriorityHigh }

// Urgent reports whether p is the highest priority.
func (p Priority) Urgent() bool { return p == PriorityHigh }

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts a number ("1".."3") or a name resolved through names
// (e.g. the configured priorities map).
func ParsePriority(raw string, names map[string]int) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return PriorityMedium, nil
	}
	if v, ok := names[s]; ok {
		p := Priority(v)
		if !p.IsValid() {
			return 0, fmt.Errorf("%w: %q maps to %d", ErrInvalidPriority, raw, v)
		}
		return p, nil
	}
	switch s {
	case "1", "low":
		return PriorityLow, nil
	case "2", "medium":
		return PriorityMedium, nil
	case "3", "high":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
}

type Task struct {
	ID          int64
	Title       string
	Description string
	Group       string
	Priority    Priority
	Tags        []string
	Due         *time.Time
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// HasDue reports whether the task carries a usable deadline.
func (t Task) HasDue() bool { return t.Due != nil && !t.Due.IsZero() }

// Validate checks a task before it is written.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return errors.New("task: title is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(t.Priority))
	}
	if t.Status != "" && !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.Status == StatusDone && t.CompletedAt == nil {
		return errors.New("task: completed_at is required when status is done")
	}
	return nil
}

// SplitTags turns "a, b,,c" into ["a" "b" "c"].
func SplitTags(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
