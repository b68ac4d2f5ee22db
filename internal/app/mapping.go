package app

import (
	"time"

	"rosterbot/internal/announce"
	"rosterbot/internal/command"
	"rosterbot/internal/config"
	"rosterbot/internal/notify"
	"rosterbot/internal/sendlog"
	"rosterbot/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapSendLogConfig(cfg *config.Config) (sendlog.Config, error) {
	busy, err := config.ParseDurationOrDefault("send_log.busy_timeout", cfg.SendLog.BusyTimeout, 5*time.Second)
	if err != nil {
		return sendlog.Config{}, err
	}
	return sendlog.Config{
		Driver:      cfg.SendLog.Driver,
		Path:        cfg.SendLog.Path,
		BusyTimeout: busy,
	}, nil
}

func mapNotifyConfig(cfg *config.Config, loc *time.Location) (notify.Config, error) {
	n := cfg.Notifications

	interval, err := config.ParseDurationOrDefault("notifications.check_interval", n.CheckInterval, time.Hour)
	if err != nil {
		return notify.Config{}, err
	}
	dailyHour, dailyMin, err := config.ParseClock("notifications.daily_report_time", n.DailyReportTimeOrDefault())
	if err != nil {
		return notify.Config{}, err
	}
	weeklyDay, err := config.ParseWeekday("notifications.weekly_report_day", n.WeeklyReportDayOrDefault())
	if err != nil {
		return notify.Config{}, err
	}
	weeklyHour, weeklyMin, err := config.ParseClock("notifications.weekly_report_time", n.WeeklyReportTimeOrDefault())
	if err != nil {
		return notify.Config{}, err
	}

	return notify.Config{
		Enabled:          n.Enabled,
		ReminderHours:    n.ReminderHours(),
		CheckInterval:    interval,
		LowParticipation: n.LowParticipation(),
		HighConflict:     n.HighConflict(),
		DailyHour:        dailyHour,
		DailyMinute:      dailyMin,
		WeeklyDay:        weeklyDay,
		WeeklyHour:       weeklyHour,
		WeeklyMinute:     weeklyMin,
		AdminIDs:         cfg.Telegram.AdminUserIDs,
		Location:         loc,
	}, nil
}

func mapAnnounceConfig(cfg *config.Config, loc *time.Location, channels []announce.Channel) announce.Config {
	return announce.Config{
		Enabled:        cfg.Announcer.Enabled,
		Location:       loc,
		Channels:       channels,
		DefaultMessage: cfg.DefaultMessage,
	}
}

// mapSettings builds the command router's per-dispatch snapshot. The
// announce channel falls back to the first scheduled channel.
func mapSettings(cfg *config.Config, loc *time.Location) command.Settings {
	announceChannel := cfg.Announcer.AnnounceChannel
	if announceChannel == 0 && len(cfg.ScheduledChannels) > 0 {
		announceChannel = cfg.ScheduledChannels[0].ChannelID
	}
	return command.Settings{
		AdminIDs:         cfg.Telegram.AdminUserIDs,
		Location:         loc,
		LowParticipation: cfg.Notifications.LowParticipation(),
		HighConflict:     cfg.Notifications.HighConflict(),
		AnnounceChannel:  announceChannel,
		ScheduleChannel:  cfg.Announcer.ScheduleChannel,
		Timezone:         loc.String(),
	}
}
