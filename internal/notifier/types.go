package notifier

import (
	"errors"
	"time"

	kit "polytask/internal/transport"
)

var (
	ErrNotConfigured = errors.New("notifier: telegram token or chat id not configured")
	ErrEmptyText     = errors.New("notifier: empty text")
)

type Outcome string

const (
	OutcomeSent    Outcome = "sent"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Config controls delivery.
type Config struct {
	Target      kit.ChatTarget
	ParseMode   string
	SendTimeout time.Duration // default 5s
	RatePerSec  int           // default 1
	Burst       int           // default 3
	HistorySize int           // default 100
}

// Result is the typed outcome of one Send.
type Result struct {
	Outcome   Outcome
	Err       error
	At        time.Time
	Took      time.Duration
	MessageID int
}

func (r Result) Sent() bool { return r.Outcome == OutcomeSent }

type HistoryItem struct {
	At      time.Time
	Outcome Outcome
	Text    string
	Error   string
}

// NotificationEvent is the bus payload for notifier events.
type NotificationEvent struct {
	ChatID  int64     `json:"chat_id"`
	Outcome Outcome   `json:"outcome"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}

// Counters are best-effort totals since process start.
type Counters struct {
	Sent    uint64
	Skipped uint64
	Failed  uint64
}
