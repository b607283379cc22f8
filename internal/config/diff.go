package config

import (
	"reflect"
	"sort"
	"strings"

	logx "polytask/pkg/logx"
)

// liveSections are applied without a restart; everything else is read once.
var liveSections = map[string]bool{"logging": true}

// Change describes what differs between two configs.
type Change struct {
	Sections []string
	// Attrs are safe to log: secrets are reported as set/unset only.
	Attrs           []logx.Field
	RestartRequired bool
}

func (c Change) Empty() bool { return len(c.Sections) == 0 }

// SummarizeChange compares old and new section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		ch.Attrs = append(ch.Attrs, attrs...)
		if !liveSections[section] {
			ch.RestartRequired = true
		}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.ChatID != nt.ChatID || ot.ThreadID != nt.ThreadID ||
		ot.ParseMode != nt.ParseMode || ot.SendTimeout != nt.SendTimeout || ot.APIURL != nt.APIURL {
		mark("telegram",
			logx.Bool("telegram.token_set", strings.TrimSpace(nt.Token) != ""),
			logx.Bool("telegram.chat_set", strings.TrimSpace(string(nt.ChatID)) != ""),
			logx.String("telegram.parse_mode", nt.ParseMode),
			logx.String("telegram.send_timeout", nt.SendTimeout),
		)
	}

	if oldCfg.ReminderMinutes != newCfg.ReminderMinutes ||
		oldCfg.WeeklyReportDay != newCfg.WeeklyReportDay ||
		oldCfg.WeeklyReportTime != newCfg.WeeklyReportTime {
		mark("reminder",
			logx.Int("reminder_minutes", newCfg.ReminderMinutes),
			logx.String("weekly_report_day", newCfg.WeeklyReportDay),
			logx.String("weekly_report_time", newCfg.WeeklyReportTime),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		s := newCfg.Scheduler
		mark("scheduler",
			logx.String("scheduler.tick_interval", s.TickInterval),
			logx.String("scheduler.tolerance", s.Tolerance),
			logx.String("scheduler.evict_interval", s.EvictInterval),
			logx.String("scheduler.timezone", s.Timezone),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		mark("notifier",
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.burst", newCfg.Notifier.Burst),
			logx.Int("notifier.history_size", newCfg.Notifier.HistorySize),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		mark("storage",
			logx.String("storage.path", newCfg.Storage.Path),
			logx.String("storage.busy_timeout", newCfg.Storage.BusyTimeout),
		)
	}

	ol, nl := oldCfg.Logging, newCfg.Logging
	if ol.Level != nl.Level || ol.ConsoleEnabled() != nl.ConsoleEnabled() || ol.File != nl.File {
		mark("logging",
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.ConsoleEnabled()),
			logx.Bool("logging.file_enabled", nl.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Priorities, newCfg.Priorities) {
		// The CLI re-reads the file on every invocation.
		ch.Sections = append(ch.Sections, "priorities")
		ch.Attrs = append(ch.Attrs, logx.Int("priorities.count", len(newCfg.Priorities)))
	}

	sort.Strings(ch.Sections)
	return ch
}

// LogConfig converts the logging section for logx.
func (l LoggingConfig) LogConfig() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.ConsoleEnabled(),
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}
