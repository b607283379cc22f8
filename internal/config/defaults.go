package config

import "strings"

const (
	DefaultPath        = "polytask.yaml"
	DefaultStoragePath = "./polytask.db"
	DefaultParseMode   = "Markdown"
	DefaultLogLevel    = "info"

	EnvTelegramToken = "TELEGRAM_TOKEN"
	EnvChatID        = "CHAT_ID"
)

// Defaults returns a fully populated config.
func Defaults() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every omitted field in place.
func (c *Config) ApplyDefaults() {
	if c.ReminderMinutes == 0 {
		c.ReminderMinutes = 5
	}
	if strings.TrimSpace(c.WeeklyReportDay) == "" {
		c.WeeklyReportDay = "monday"
	}
	if strings.TrimSpace(c.WeeklyReportTime) == "" {
		c.WeeklyReportTime = "09:00"
	}

	setDefault(&c.Telegram.ParseMode, DefaultParseMode)
	setDefault(&c.Telegram.SendTimeout, "5s")

	setDefault(&c.Scheduler.TickInterval, "10s")
	setDefault(&c.Scheduler.Tolerance, "60s")
	setDefault(&c.Scheduler.EvictInterval, "1h")

	if c.Notifier.RatePerSec == 0 {
		c.Notifier.RatePerSec = 1
	}
	if c.Notifier.Burst == 0 {
		c.Notifier.Burst = 3
	}
	if c.Notifier.HistorySize == 0 {
		c.Notifier.HistorySize = 100
	}

	setDefault(&c.Storage.Path, DefaultStoragePath)
	setDefault(&c.Storage.BusyTimeout, "5s")

	setDefault(&c.Logging.Level, DefaultLogLevel)
	if c.Logging.File.Enabled {
		setDefault(&c.Logging.File.Path, "./polytask.log")
	}

	if len(c.Priorities) == 0 {
		c.Priorities = map[string]int{"low": 1, "medium": 2, "high": 3}
	}
}

// ApplyEnv overrides Telegram credentials from the environment when set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		return
	}
	if v := strings.TrimSpace(getenv(EnvTelegramToken)); v != "" {
		c.Telegram.Token = v
	}
	if v := strings.TrimSpace(getenv(EnvChatID)); v != "" {
		c.Telegram.ChatID = ChatID(v)
	}
}

func setDefault(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}
