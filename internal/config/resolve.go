package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Resolved holds the typed form of the duration, zone and id fields.
type Resolved struct {
	ChatID        int64
	SendTimeout   time.Duration
	TickInterval  time.Duration
	Tolerance     time.Duration
	EvictInterval time.Duration
	BusyTimeout   time.Duration
	Location      *time.Location
}

// Resolve parses every string-typed field. Errors name the offending key.
func (c *Config) Resolve() (Resolved, error) {
	var (
		r    Resolved
		errs []error
	)
	parse := func(path, raw string, dst *time.Duration) {
		d, err := ParseDurationField(path, raw)
		if err != nil {
			errs = append(errs, err)
			return
		}
		*dst = d
	}
	parse("telegram.send_timeout", c.Telegram.SendTimeout, &r.SendTimeout)
	parse("scheduler.tick_interval", c.Scheduler.TickInterval, &r.TickInterval)
	parse("scheduler.tolerance", c.Scheduler.Tolerance, &r.Tolerance)
	parse("scheduler.evict_interval", c.Scheduler.EvictInterval, &r.EvictInterval)
	parse("storage.busy_timeout", c.Storage.BusyTimeout, &r.BusyTimeout)

	if raw := strings.TrimSpace(string(c.Telegram.ChatID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("telegram.chat_id: invalid id %q", raw))
		} else {
			r.ChatID = id
		}
	}

	r.Location = time.Local
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		} else {
			r.Location = loc
		}
	}
	return r, errors.Join(errs...)
}

// Validate checks ranges and parses all typed fields. The weekly day and time
// are not checked here: a bad value only disables the weekly report.
func (c *Config) Validate() error {
	var errs []error
	if c.ReminderMinutes < 0 {
		errs = append(errs, fmt.Errorf("reminder_minutes: must be >= 0 (0 means default), got %d", c.ReminderMinutes))
	}
	if c.Notifier.RatePerSec < 0 {
		errs = append(errs, fmt.Errorf("notifier.rate_per_sec: must be >= 0"))
	}
	if c.Notifier.Burst < 0 {
		errs = append(errs, fmt.Errorf("notifier.burst: must be >= 0"))
	}
	if c.Notifier.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("notifier.history_size: must be >= 0"))
	}
	if c.Telegram.ThreadID < 0 {
		errs = append(errs, fmt.Errorf("telegram.thread_id: must be >= 0"))
	}
	for name, v := range c.Priorities {
		if v < 1 || v > 3 {
			errs = append(errs, fmt.Errorf("priorities.%s: must be 1..3, got %d", name, v))
		}
	}
	if _, err := c.Resolve(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
