package notify

import (
	"context"
	"time"

	"rosterbot/internal/analytics"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
)

// Sender is the outbound surface the notifier needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// SessionSource yields the sessions reminders are computed over.
type SessionSource interface {
	ActiveSessions() []session.Summary
}

// StatsSource yields report data for the daily and weekly digests.
type StatsSource interface {
	MonthlyStatistics(month string) (analytics.MonthlyStats, bool)
	ComprehensiveReport() analytics.Report
}

// Config is the notifier's runtime configuration snapshot.
type Config struct {
	Enabled bool

	// ReminderHours are deadline lead times; one watch per entry.
	ReminderHours []int
	// CheckInterval is the watch wake period (default 1h).
	CheckInterval time.Duration

	LowParticipation int
	HighConflict     int

	DailyHour    int
	DailyMinute  int
	WeeklyDay    time.Weekday
	WeeklyHour   int
	WeeklyMinute int

	AdminIDs []int64
	Location *time.Location
}

// AlertKind classifies threshold alerts.
type AlertKind string

const (
	AlertLowParticipation AlertKind = "low_participation"
	AlertHighConflict     AlertKind = "high_conflict"
)

// Alert is one threshold finding about a session.
type Alert struct {
	Kind      AlertKind
	MessageID string
	Detail    string
}
