package reminder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultReminderMinutes  = 5
	DefaultWeeklyReportDay  = "monday"
	DefaultWeeklyReportTime = "09:00"
	DefaultTolerance        = 60 * time.Second
	DefaultTickInterval     = 10 * time.Second
	DefaultEvictInterval    = time.Hour
	DefaultCacheTTL         = time.Hour
)

// Settings is the read-only configuration of the reminder core.
type Settings struct {
	ReminderMinutes  int
	WeeklyReportDay  string
	WeeklyReportTime string

	// Tolerance is the half-width W of both firing windows.
	Tolerance time.Duration
	// TickInterval is the scan cadence. It is clamped to Tolerance/2 so no
	// window can fall between two scans.
	TickInterval  time.Duration
	EvictInterval time.Duration
	CacheTTL      time.Duration

	// Location is used for the weekly slot and for rendering times. nil means time.Local.
	Location *time.Location
}

// WithDefaults fills zero fields.
func (s Settings) WithDefaults() Settings {
	if s.ReminderMinutes <= 0 {
		s.ReminderMinutes = DefaultReminderMinutes
	}
	if strings.TrimSpace(s.WeeklyReportDay) == "" {
		s.WeeklyReportDay = DefaultWeeklyReportDay
	}
	if strings.TrimSpace(s.WeeklyReportTime) == "" {
		s.WeeklyReportTime = DefaultWeeklyReportTime
	}
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	if s.TickInterval <= 0 {
		s.TickInterval = DefaultTickInterval
	}
	if s.EvictInterval <= 0 {
		s.EvictInterval = DefaultEvictInterval
	}
	if s.CacheTTL <= 0 {
		s.CacheTTL = DefaultCacheTTL
	}
	if s.Location == nil {
		s.Location = time.Local
	}
	return s
}

// ReminderLead is R, the lead time of the pre-reminder.
func (s Settings) ReminderLead() time.Duration {
	return time.Duration(s.ReminderMinutes) * time.Minute
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sun":       time.Sunday,
	"mon":       time.Monday,
	"tue":       time.Tuesday,
	"wed":       time.Wednesday,
	"thu":       time.Thursday,
	"fri":       time.Friday,
	"sat":       time.Saturday,
}

// ParseWeekday maps a weekday name (full or three-letter, any case) to time.Weekday.
func ParseWeekday(raw string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return 0, fmt.Errorf("invalid weekday %q (use monday..sunday)", raw)
	}
	return wd, nil
}

var reClock = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)

// ParseClock parses a 24-hour "HH:MM" string.
func ParseClock(raw string) (hour, minute int, err error) {
	m := reClock.FindStringSubmatch(raw)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("invalid time %q (use HH:MM)", raw)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q (out of range)", raw)
	}
	return hour, minute, nil
}

// weeklySchedule turns the configured day/time into a cron schedule evaluated
// in loc.
func weeklySchedule(day, clock string, loc *time.Location) (cron.Schedule, error) {
	wd, err := ParseWeekday(day)
	if err != nil {
		return nil, err
	}
	h, m, err := ParseClock(clock)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * %d", loc.String(), m, h, int(wd))
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("weekly schedule %q: %w", spec, err)
	}
	return sched, nil
}
