package notify

import (
	"fmt"
	"strings"

	"rosterbot/internal/analytics"
	"rosterbot/internal/session"
)

func leadLabel(hours int) string {
	if hours == 1 {
		return "1 hour"
	}
	if hours%24 == 0 {
		d := hours / 24
		if d == 1 {
			return "24 hours"
		}
		return fmt.Sprintf("%d days", d)
	}
	return fmt.Sprintf("%d hours", hours)
}

func formatReminder(sum session.Summary, leadHours int) string {
	return fmt.Sprintf(
		"⏰ Reminder: sign-up for %s closes in %s!\nReply to the announcement with your dates before %s.",
		sum.Month, leadLabel(leadHours), sum.Deadline.Format("Mon 2 Jan 15:04"))
}

func formatAdminReminder(sum session.Summary, leadHours int) string {
	return fmt.Sprintf(
		"Deadline in %s for session %s (%s): %d application(s) from %d user(s).",
		leadLabel(leadHours), sum.MessageID, sum.Month, sum.Total, sum.UniqueUsers)
}

func formatAlertLine(a Alert) string {
	switch a.Kind {
	case AlertLowParticipation:
		return fmt.Sprintf("⚠️ Low participation in session %s: %s", a.MessageID, a.Detail)
	case AlertHighConflict:
		return fmt.Sprintf("⚠️ Date conflict in session %s: %s", a.MessageID, a.Detail)
	}
	return fmt.Sprintf("⚠️ %s: %s", a.MessageID, a.Detail)
}

func formatDailyReport(m analytics.MonthlyStats, active []session.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 Daily report — %s\n", m.Month)
	fmt.Fprintf(&b, "Applications this month: %d (from %d users)\n", m.Total, m.UniqueUsers)
	if len(m.TopDates) > 0 {
		b.WriteString("Most requested dates:\n")
		for i, dc := range m.TopDates {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "  %s — %d\n", dc.Key, dc.Count)
		}
	}
	fmt.Fprintf(&b, "Active sessions: %d", len(active))
	for _, sum := range active {
		fmt.Fprintf(&b, "\n  %s (%s): %d application(s), closes %s",
			sum.MessageID, sum.Month, sum.Total, sum.Deadline.Format("2 Jan 15:04"))
	}
	return b.String()
}

func formatWeeklyReport(r analytics.Report) string {
	var b strings.Builder
	b.WriteString("📈 Weekly report\n")
	fmt.Fprintf(&b, "Current month (%s): %d application(s) from %d user(s)\n",
		r.CurrentMonth.Month, r.CurrentMonth.Total, r.CurrentMonth.UniqueUsers)
	fmt.Fprintf(&b, "Known users: %d\n", r.TotalUsers)
	if len(r.Trend.Weekly) > 0 {
		fmt.Fprintf(&b, "Weekly trend: %+.1f%%\n", r.Trend.GrowthPct)
	}
	if r.Times.PeakHour >= 0 {
		fmt.Fprintf(&b, "Peak submission hour: %02d:00\n", r.Times.PeakHour)
	}
	if len(r.Insights) > 0 {
		b.WriteString("Insights:\n")
		for _, in := range r.Insights {
			fmt.Fprintf(&b, "  • %s\n", in)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
