package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"rosterbot/internal/analytics"
	"rosterbot/internal/session"
	"rosterbot/internal/transport"
	"rosterbot/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []sentMsg
	errOn int64 // chat id that fails
}

type sentMsg struct {
	ChatID int64
	Text   string
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errOn != 0 && to.ChatID == f.errOn {
		return transport.MessageRef{}, errors.New("forbidden: bot was blocked")
	}
	f.sent = append(f.sent, sentMsg{ChatID: to.ChatID, Text: text})
	return transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeSender) messages() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

type fakeSessions struct{ sums []session.Summary }

func (f *fakeSessions) ActiveSessions() []session.Summary { return f.sums }

type fakeStats struct{}

func (fakeStats) MonthlyStatistics(month string) (analytics.MonthlyStats, bool) {
	return analytics.MonthlyStats{Month: month, Total: 4, UniqueUsers: 3}, true
}
func (fakeStats) ComprehensiveReport() analytics.Report {
	return analytics.Report{TotalUsers: 3}
}

func sumWithDeadline(id string, deadline time.Time) session.Summary {
	return session.Summary{MessageID: id, ChannelID: -10, Month: "2024-07", Deadline: deadline}
}

func TestDueSessionsWindow(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 7, 24, 9, 0, 0, 0, time.UTC)
	lead := 24 * time.Hour

	tests := []struct {
		name     string
		deadline time.Time
		want     bool
	}{
		{"just inside lead", now.Add(23*time.Hour + 30*time.Minute), true},
		{"exactly at lead", now.Add(24 * time.Hour), true},
		{"beyond lead", now.Add(25 * time.Hour), false},
		{"deep inside window", now.Add(10 * time.Hour), true},
		{"past deadline", now.Add(-time.Hour), false},
		{"exactly at deadline", now, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := dueSessions([]session.Summary{sumWithDeadline("m", tt.deadline)}, now, lead)
			if (len(got) == 1) != tt.want {
				t.Fatalf("due = %v, want %v", len(got) == 1, tt.want)
			}
		})
	}
}

func TestDueSessionsRepeatsAcrossTicks(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 7, 24, 9, 0, 0, 0, time.UTC)
	sums := []session.Summary{sumWithDeadline("m", now.Add(10*time.Hour))}

	// A session inside the window stays due on every hourly wake until the
	// deadline passes.
	for tick := 0; tick < 3; tick++ {
		at := now.Add(time.Duration(tick) * time.Hour)
		if got := dueSessions(sums, at, 24*time.Hour); len(got) != 1 {
			t.Fatalf("tick %d: due = %d, want 1", tick, len(got))
		}
	}
	if got := dueSessions(sums, now.Add(11*time.Hour), 24*time.Hour); len(got) != 0 {
		t.Fatalf("past deadline: due = %d, want 0", len(got))
	}
}

func TestNextDailyRun(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 7, 1, 17, 0, 0, 0, time.UTC)
	next := nextDailyRun(now, 18, 0)
	if next.Day() != 1 || next.Hour() != 18 {
		t.Fatalf("next = %v", next)
	}

	after := time.Date(2024, 7, 1, 19, 0, 0, 0, time.UTC)
	next = nextDailyRun(after, 18, 0)
	if next.Day() != 2 {
		t.Fatalf("expected tomorrow, got %v", next)
	}
}

func TestNextWeeklyRun(t *testing.T) {
	t.Parallel()
	// 2024-07-01 is a Monday.
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)

	next := nextWeeklyRun(now, time.Monday, 9, 0)
	if next.Weekday() != time.Monday || next.Day() != 8 {
		t.Fatalf("expected next Monday 09:00, got %v", next)
	}

	next = nextWeeklyRun(now, time.Wednesday, 9, 0)
	if next.Weekday() != time.Wednesday || next.Day() != 3 {
		t.Fatalf("expected this Wednesday, got %v", next)
	}
}

func TestEvaluateSession(t *testing.T) {
	t.Parallel()
	sum := session.Summary{
		MessageID:    "m1",
		Total:        2,
		DateCounts:   map[string]int{"2024-07-10": 2, "2024-07-12": 2, "2024-07-15": 2},
		PopularDates: []string{"2024-07-10", "2024-07-12", "2024-07-15"},
	}

	alerts := EvaluateSession(sum, 3, 3)
	var kinds []AlertKind
	for _, a := range alerts {
		kinds = append(kinds, a.Kind)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %v", kinds)
	}
	if alerts[0].Kind != AlertLowParticipation || alerts[1].Kind != AlertHighConflict {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if !strings.Contains(alerts[1].Detail, "2024-07-10") || !strings.Contains(alerts[1].Detail, "3 contested") {
		t.Fatalf("conflict detail = %q", alerts[1].Detail)
	}

	if got := EvaluateSession(session.Summary{Total: 5}, 3, 3); len(got) != 0 {
		t.Fatalf("expected no alerts, got %v", got)
	}
}

func TestEvaluateSessionConflictCountsDatesNotApplicants(t *testing.T) {
	t.Parallel()

	// One hugely contested date is still just one colliding date.
	single := session.Summary{
		MessageID:    "m2",
		Total:        5,
		DateCounts:   map[string]int{"2024-07-10": 5},
		PopularDates: []string{"2024-07-10"},
	}
	if got := EvaluateSession(single, 0, 3); len(got) != 0 {
		t.Fatalf("single contested date alerted: %v", got)
	}

	// Three mildly contested dates meet the ceiling.
	spread := session.Summary{
		MessageID:    "m3",
		Total:        6,
		DateCounts:   map[string]int{"2024-07-10": 2, "2024-07-12": 2, "2024-07-15": 2},
		PopularDates: []string{"2024-07-10", "2024-07-12", "2024-07-15"},
	}
	got := EvaluateSession(spread, 0, 3)
	if len(got) != 1 || got[0].Kind != AlertHighConflict {
		t.Fatalf("spread conflict alerts = %v", got)
	}
}

func TestBroadcastSkipsFailedRecipient(t *testing.T) {
	t.Parallel()
	sender := &fakeSender{errOn: 2}
	s := New(sender, &fakeSessions{}, fakeStats{}, nil, logx.Nop())
	s.cfg = Config{AdminIDs: []int64{1, 2, 3}}

	s.Broadcast(context.Background(), "hello")

	msgs := sender.messages()
	if len(msgs) != 2 {
		t.Fatalf("delivered = %d, want 2", len(msgs))
	}
	if msgs[0].ChatID != 1 || msgs[1].ChatID != 3 {
		t.Fatalf("unexpected recipients: %v", msgs)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	s := New(&fakeSender{}, &fakeSessions{}, fakeStats{}, nil, logx.Nop())
	s.Start(context.Background(), Config{Enabled: false})
	// Stop on a never-started service must not hang.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

func TestFormatReminderMentionsDeadline(t *testing.T) {
	t.Parallel()
	sum := sumWithDeadline("m1", time.Date(2024, 7, 25, 9, 0, 0, 0, time.UTC))
	got := formatReminder(sum, 24)
	if !strings.Contains(got, "24 hours") || !strings.Contains(got, "2024-07") {
		t.Fatalf("reminder = %q", got)
	}
	if got := formatReminder(sum, 1); !strings.Contains(got, "1 hour") {
		t.Fatalf("reminder = %q", got)
	}
}

func TestFormatWeeklyReport(t *testing.T) {
	t.Parallel()
	r := analytics.Report{
		CurrentMonth: analytics.MonthlyStats{Month: "2024-07", Total: 5, UniqueUsers: 4},
		Trend:        analytics.TrendReport{Weekly: []analytics.WeekCount{{Week: "2024-W29", Count: 5}}, GrowthPct: 25},
		Times:        analytics.TimesReport{PeakHour: 15},
		TotalUsers:   4,
		Insights:     []string{"insight one"},
	}
	got := formatWeeklyReport(r)
	for _, want := range []string{"2024-07", "+25.0%", "15:00", "insight one"} {
		if !strings.Contains(got, want) {
			t.Fatalf("weekly report missing %q:\n%s", want, got)
		}
	}
}
