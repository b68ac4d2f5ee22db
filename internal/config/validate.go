package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks cross-field consistency. Called at startup and by the
// watch loop before a reloaded config is committed.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add("telegram.token is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		add("%v", err)
	}
	if cfg.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Timezone); err != nil {
			add("timezone: %v", err)
		}
	}
	seen := map[int64]bool{}
	for i, ch := range cfg.ScheduledChannels {
		if ch.ChannelID == 0 {
			add("scheduled_channels[%d].channel_id is required", i)
			continue
		}
		if seen[ch.ChannelID] {
			add("scheduled_channels[%d]: duplicate channel %d", i, ch.ChannelID)
		}
		seen[ch.ChannelID] = true
	}
	if strings.TrimSpace(cfg.Applications.Path) == "" {
		add("applications.path is required")
	}
	if cfg.Applications.DeadlineDays < 0 {
		add("applications.deadline_days must be >= 0")
	}
	if cfg.Applications.RetentionDays < 0 {
		add("applications.retention_days must be >= 0")
	}
	if strings.TrimSpace(cfg.Analytics.Path) == "" {
		add("analytics.path is required")
	}

	switch d := strings.ToLower(strings.TrimSpace(cfg.SendLog.Driver)); d {
	case "", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.SendLog.Path) == "" {
			add("send_log.path is required for driver %q", d)
		}
	default:
		add("send_log.driver %q is not supported", d)
	}
	if _, err := ParseDurationField("send_log.busy_timeout", cfg.SendLog.BusyTimeout); err != nil {
		add("%v", err)
	}

	n := cfg.Notifications
	for _, h := range n.DeadlineReminderHours {
		if h <= 0 {
			add("notifications.deadline_reminder_hours must be positive, got %d", h)
			break
		}
	}
	if _, err := ParseDurationField("notifications.check_interval", n.CheckInterval); err != nil {
		add("%v", err)
	}
	if _, _, err := ParseClock("notifications.daily_report_time", n.DailyReportTimeOrDefault()); err != nil {
		add("%v", err)
	}
	if _, _, err := ParseClock("notifications.weekly_report_time", n.WeeklyReportTimeOrDefault()); err != nil {
		add("%v", err)
	}
	if _, err := ParseWeekday("notifications.weekly_report_day", n.WeeklyReportDayOrDefault()); err != nil {
		add("%v", err)
	}

	if cfg.Announcer.Enabled && len(cfg.ScheduledChannels) == 0 && cfg.Announcer.AnnounceChannel == 0 {
		add("announcer.enabled requires scheduled_channels or announcer.announce_channel")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}
