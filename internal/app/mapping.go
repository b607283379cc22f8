package app

import (
	"polytask/internal/config"
	"polytask/internal/notifier"
	"polytask/internal/reminder"
	"polytask/internal/storage"
	kit "polytask/internal/transport"
	"polytask/internal/transport/telegram"
)

func mapStorageConfig(cfg *config.Config, r config.Resolved) storage.Config {
	return storage.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: r.BusyTimeout,
		Location:    r.Location,
	}
}

func mapTelegramConfig(cfg *config.Config, r config.Resolved) telegram.Config {
	return telegram.Config{
		Token:   cfg.Telegram.Token,
		APIURL:  cfg.Telegram.APIURL,
		Timeout: r.SendTimeout,
	}
}

func mapNotifierConfig(cfg *config.Config, r config.Resolved) notifier.Config {
	return notifier.Config{
		Target:      kit.ChatTarget{ChatID: r.ChatID, ThreadID: cfg.Telegram.ThreadID},
		ParseMode:   cfg.Telegram.ParseMode,
		SendTimeout: r.SendTimeout,
		RatePerSec:  cfg.Notifier.RatePerSec,
		Burst:       cfg.Notifier.Burst,
		HistorySize: cfg.Notifier.HistorySize,
	}
}

func mapReminderSettings(cfg *config.Config, r config.Resolved) reminder.Settings {
	return reminder.Settings{
		ReminderMinutes:  cfg.ReminderMinutes,
		WeeklyReportDay:  cfg.WeeklyReportDay,
		WeeklyReportTime: cfg.WeeklyReportTime,
		Tolerance:        r.Tolerance,
		TickInterval:     r.TickInterval,
		EvictInterval:    r.EvictInterval,
		Location:         r.Location,
	}
}
