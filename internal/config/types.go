package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Config mirrors polytask.yaml. Durations are Go duration strings ("10s", "1h").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`

	// Reminder core (read once at startup).
	ReminderMinutes  int    `json:"reminder_minutes,omitempty"`
	WeeklyReportDay  string `json:"weekly_report_day,omitempty"`
	WeeklyReportTime string `json:"weekly_report_time,omitempty"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
	Storage   StorageConfig   `json:"storage"`
	Logging   LoggingConfig   `json:"logging"`

	// Priorities maps names accepted by the CLI to numeric priorities.
	Priorities map[string]int `json:"priorities,omitempty"`
}

type TelegramConfig struct {
	// Token and ChatID can also come from TELEGRAM_TOKEN and CHAT_ID.
	Token       string `json:"token,omitempty"`
	ChatID      ChatID `json:"chat_id,omitempty"`
	ThreadID    int    `json:"thread_id,omitempty"`
	ParseMode   string `json:"parse_mode,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
	// APIURL overrides the Bot API endpoint (self-hosted bot API servers).
	APIURL string `json:"api_url,omitempty"`
}

// SchedulerConfig tunes the reminder loop.
//
// Defaults:
//   - tick_interval: "10s" (clamped to tolerance/2)
//   - tolerance: "60s"
//   - evict_interval: "1h"
//   - timezone: "" (local time)
type SchedulerConfig struct {
	TickInterval  string `json:"tick_interval,omitempty"`
	Tolerance     string `json:"tolerance,omitempty"`
	EvictInterval string `json:"evict_interval,omitempty"`
	Timezone      string `json:"timezone,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  int `json:"rate_per_sec,omitempty"`
	Burst       int `json:"burst,omitempty"`
	HistorySize int `json:"history_size,omitempty"`
}

type StorageConfig struct {
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
	// Console is a pointer so an omitted key keeps the default (on).
	Console *bool         `json:"console,omitempty"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool { return l.Console == nil || *l.Console }

// ChatID accepts both `chat_id: 12345` and `chat_id: "12345"`.
type ChatID string

func (c *ChatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = ChatID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("chat_id: %w", err)
	}
	*c = ChatID(n.String())
	return nil
}
