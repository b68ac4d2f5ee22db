package config

import "time"

// Config is the whole bot configuration, decoded strictly (unknown keys are
// rejected) from JSON or YAML.
//
// All duration fields are Go duration strings (e.g. "500ms", "10s", "1m").
// Clock fields are "HH:MM" in the configured timezone.
type Config struct {
	Telegram TelegramConfig `json:"telegram"`

	// Timezone is an IANA name (e.g. "Europe/Berlin"). Empty means UTC.
	Timezone string `json:"timezone,omitempty"`

	// DefaultMessage is the announcement template used for channels without
	// their own message. Placeholders: {date} {month} {year} {day}.
	DefaultMessage string `json:"default_message"`

	// ScheduledChannels receive the monthly announcement.
	ScheduledChannels []ChannelConfig `json:"scheduled_channels"`

	Logging       LoggingConfig       `json:"logging"`
	Applications  ApplicationsConfig  `json:"applications"`
	Analytics     AnalyticsConfig     `json:"analytics"`
	SendLog       SendLogConfig       `json:"send_log,omitempty"`
	Notifications NotificationsConfig `json:"notifications"`
	Announcer     AnnouncerConfig     `json:"announcer"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// AdminUserIDs may use admin-only commands and receive admin DMs.
	AdminUserIDs []int64 `json:"admin_user_ids"`
}

type ChannelConfig struct {
	ChannelID int64 `json:"channel_id"`
	// Message overrides default_message for this channel.
	Message string `json:"message,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ApplicationsConfig controls the session registry store.
type ApplicationsConfig struct {
	Path          string `json:"path"`
	DeadlineDays  int    `json:"deadline_days,omitempty"`  // default 5
	RetentionDays int    `json:"retention_days,omitempty"` // default 30
}

// AnalyticsConfig controls the aggregator store.
type AnalyticsConfig struct {
	Path         string `json:"path"`
	MonthsToKeep int    `json:"months_to_keep,omitempty"` // default 12
}

// SendLogConfig controls the announcement send history.
//
// Example:
//
//	"send_log": { "driver": "file", "path": "./data/send_log.json" }
type SendLogConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type NotificationsConfig struct {
	Enabled bool `json:"enabled"`
	// DeadlineReminderHours are the lead times (in hours) before a session
	// deadline at which reminders fire. Default: 24, 12, 6, 1.
	DeadlineReminderHours []int `json:"deadline_reminder_hours,omitempty"`
	// CheckInterval is how often reminder watches wake. Default "1h".
	CheckInterval             string `json:"check_interval,omitempty"`
	LowParticipationThreshold int    `json:"low_participation_threshold,omitempty"` // default 3
	HighConflictThreshold     int    `json:"high_conflict_threshold,omitempty"`     // default 3
	DailyReportTime           string `json:"daily_report_time,omitempty"`           // default "18:00"
	WeeklyReportDay           string `json:"weekly_report_day,omitempty"`           // default "monday"
	WeeklyReportTime          string `json:"weekly_report_time,omitempty"`          // default "09:00"
}

type AnnouncerConfig struct {
	Enabled bool `json:"enabled"`
	// AnnounceChannel receives /announce compose posts (0 = first scheduled channel).
	AnnounceChannel int64 `json:"announce_channel,omitempty"`
	// ScheduleChannel receives /upload schedule posts (0 = announce channel).
	ScheduleChannel int64 `json:"schedule_channel,omitempty"`
}

// ---- Defaults ----

const (
	DefaultDeadlineDays  = 5
	DefaultRetentionDays = 30
	DefaultMonthsToKeep  = 12
)

func (a ApplicationsConfig) DeadlineDaysOrDefault() int {
	if a.DeadlineDays > 0 {
		return a.DeadlineDays
	}
	return DefaultDeadlineDays
}

func (a ApplicationsConfig) RetentionDaysOrDefault() int {
	if a.RetentionDays > 0 {
		return a.RetentionDays
	}
	return DefaultRetentionDays
}

func (a AnalyticsConfig) MonthsToKeepOrDefault() int {
	if a.MonthsToKeep > 0 {
		return a.MonthsToKeep
	}
	return DefaultMonthsToKeep
}

func (n NotificationsConfig) ReminderHours() []int {
	if len(n.DeadlineReminderHours) > 0 {
		return n.DeadlineReminderHours
	}
	return []int{24, 12, 6, 1}
}

func (n NotificationsConfig) LowParticipation() int {
	if n.LowParticipationThreshold > 0 {
		return n.LowParticipationThreshold
	}
	return 3
}

func (n NotificationsConfig) HighConflict() int {
	if n.HighConflictThreshold > 0 {
		return n.HighConflictThreshold
	}
	return 3
}

func (n NotificationsConfig) DailyReportTimeOrDefault() string {
	if n.DailyReportTime != "" {
		return n.DailyReportTime
	}
	return "18:00"
}

func (n NotificationsConfig) WeeklyReportDayOrDefault() string {
	if n.WeeklyReportDay != "" {
		return n.WeeklyReportDay
	}
	return "monday"
}

func (n NotificationsConfig) WeeklyReportTimeOrDefault() string {
	if n.WeeklyReportTime != "" {
		return n.WeeklyReportTime
	}
	return "09:00"
}

// Location resolves the configured timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c == nil || c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsAdmin reports whether the user id is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	if c == nil {
		return false
	}
	for _, id := range c.Telegram.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ChannelMessage returns the announcement template for a channel.
func (c *Config) ChannelMessage(channelID int64) string {
	for _, ch := range c.ScheduledChannels {
		if ch.ChannelID == channelID && ch.Message != "" {
			return ch.Message
		}
	}
	return c.DefaultMessage
}
