package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  chat_id: 987654
  parse_mode: Markdown
  send_timeout: 3s
reminder_minutes: 10
weekly_report_day: friday
weekly_report_time: "17:30"
scheduler:
  tick_interval: 5s
  tolerance: 30s
  timezone: Europe/Rome
storage:
  path: ./data/tasks.db
logging:
  level: debug
  console: false
priorities:
  low: 1
  urgent: 3
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func noEnv(string) string { return "" }

func newManager(path string) *Manager {
	m := NewManager(path)
	m.SetEnv(noEnv)
	return m
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	cfg, err := newManager(writeFile(t, "polytask.yaml", sampleYAML)).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.ChatID != "987654" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.ReminderMinutes != 10 || cfg.WeeklyReportDay != "friday" || cfg.WeeklyReportTime != "17:30" {
		t.Fatalf("reminder settings = %d %s %s", cfg.ReminderMinutes, cfg.WeeklyReportDay, cfg.WeeklyReportTime)
	}
	if cfg.Logging.ConsoleEnabled() || cfg.Logging.Level != "debug" {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	// Omitted keys get defaults.
	if cfg.Scheduler.EvictInterval != "1h" || cfg.Notifier.RatePerSec != 1 || cfg.Notifier.Burst != 3 || cfg.Storage.BusyTimeout != "5s" {
		t.Fatalf("defaults not applied: %+v %+v %+v", cfg.Scheduler, cfg.Notifier, cfg.Storage)
	}
	if cfg.Priorities["urgent"] != 3 {
		t.Fatalf("priorities = %v", cfg.Priorities)
	}

	r, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.ChatID != 987654 || r.SendTimeout != 3*time.Second || r.TickInterval != 5*time.Second || r.Tolerance != 30*time.Second {
		t.Fatalf("resolved = %+v", r)
	}
	if r.Location.String() != "Europe/Rome" {
		t.Fatalf("location = %v", r.Location)
	}
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	cfg, err := newManager(writeFile(t, "polytask.json", `{"telegram":{"chat_id":"-100123"},"reminder_minutes":3}`)).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	r, err := cfg.Resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if r.ChatID != -100123 || cfg.ReminderMinutes != 3 {
		t.Fatalf("cfg = %+v resolved = %+v", cfg, r)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "telegram:\n  tokn: x\n", "tokn"},
		{"bad duration", "scheduler:\n  tolerance: soon\n", "scheduler.tolerance"},
		{"negative minutes", "reminder_minutes: -1\n", "reminder_minutes: must be >= 0 (0 means default)"},
		{"negative burst", "notifier:\n  burst: -2\n", "notifier.burst"},
		{"bad chat id", "telegram:\n  chat_id: \"@mychannel\"\n", "telegram.chat_id"},
		{"bad timezone", "scheduler:\n  timezone: Mars/Olympus\n", "scheduler.timezone"},
		{"bad priority", "priorities:\n  high: 9\n", "priorities.high"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := newManager(writeFile(t, "polytask.yaml", tc.body)).Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestInvalidWeekdayIsNotALoadError(t *testing.T) {
	t.Parallel()
	if _, err := newManager(writeFile(t, "polytask.yaml", "weekly_report_day: funday\n")).Load(); err != nil {
		t.Fatalf("weekday problems must not fail loading: %v", err)
	}
}

func TestEnvOverridesCredentials(t *testing.T) {
	t.Parallel()
	m := NewManager(writeFile(t, "polytask.yaml", sampleYAML))
	m.SetEnv(func(k string) string {
		switch k {
		case EnvTelegramToken:
			return "999:env"
		case EnvChatID:
			return "42"
		}
		return ""
	})
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "999:env" || cfg.Telegram.ChatID != "42" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := newManager(path).Load(); err == nil {
		t.Fatal("expected error for missing file")
	}
	m := newManager(path)
	m.AllowMissing(true)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("load with AllowMissing: %v", err)
	}
	if cfg.ReminderMinutes != 5 || cfg.Storage.Path != DefaultStoragePath {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	a := Defaults()
	b := Defaults()
	if ch := SummarizeChange(a, b); !ch.Empty() {
		t.Fatalf("identical configs differ: %v", ch.Sections)
	}

	b.Logging.Level = "debug"
	ch := SummarizeChange(a, b)
	if len(ch.Sections) != 1 || ch.Sections[0] != "logging" || ch.RestartRequired {
		t.Fatalf("logging change = %+v", ch)
	}

	b.ReminderMinutes = 15
	b.Telegram.Token = "secret"
	ch = SummarizeChange(a, b)
	if !ch.RestartRequired || strings.Join(ch.Sections, ",") != "logging,reminder,telegram" {
		t.Fatalf("change = %+v", ch)
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "polytask.yaml", "reminder_minutes: 5\n")
	m := newManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	if published, err := m.Reload(); err != nil || published {
		t.Fatalf("unchanged reload: published=%v err=%v", published, err)
	}

	if err := os.WriteFile(path, []byte("reminder_minutes: 7\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if published, err := m.Reload(); err != nil || !published {
		t.Fatalf("changed reload: published=%v err=%v", published, err)
	}
	select {
	case cfg := <-sub:
		if cfg.ReminderMinutes != 7 {
			t.Fatalf("published minutes = %d", cfg.ReminderMinutes)
		}
	default:
		t.Fatal("subscriber got nothing")
	}

	// An invalid edit keeps the committed config.
	if err := os.WriteFile(path, []byte("reminder_minutes: nope\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if m.Get().ReminderMinutes != 7 {
		t.Fatalf("committed config changed after a bad edit: %d", m.Get().ReminderMinutes)
	}
}

func TestWatchPicksUpEdits(t *testing.T) {
	path := writeFile(t, "polytask.yaml", "reminder_minutes: 5\n")
	m := newManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.After(5 * time.Second)
	poke := time.NewTicker(300 * time.Millisecond)
	defer poke.Stop()
	for {
		select {
		case cfg := <-sub:
			if cfg.ReminderMinutes != 9 {
				t.Fatalf("minutes = %d", cfg.ReminderMinutes)
			}
			return
		case <-poke.C:
			// Rewrite until the watcher is up and sees it.
			_ = os.WriteFile(path, []byte("reminder_minutes: 9\n"), 0o600)
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
