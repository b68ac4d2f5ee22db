package command

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"rosterbot/internal/analytics"
	"rosterbot/internal/announce"
	"rosterbot/internal/sendlog"
	"rosterbot/internal/session"
)

var (
	errInvalidChannel = errors.New("that doesn't look like a channel id")
	errNoChannels     = errors.New("no channels configured")
)

func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("Reply to a sign-up announcement with the days you want to work, e.g.: 10, 12, 15\n")
	b.WriteString("Anything else in your reply is kept as a note for the scheduler.\n")
	if !admin {
		return strings.TrimRight(b.String(), "\n")
	}
	b.WriteString("\nAdmin commands:\n")
	b.WriteString("/status — scheduler state and active sign-ups\n")
	b.WriteString("/channels — configured announcement channels\n")
	b.WriteString("/addchannel <id> — add a channel to the schedule\n")
	b.WriteString("/removechannel <id> — remove a channel\n")
	b.WriteString("/setmessage <id> <template> — per-channel message template\n")
	b.WriteString("/test [id] — send a test announcement\n")
	b.WriteString("/announce [text] — post an announcement now\n")
	b.WriteString("/close <message_id> — close a sign-up\n")
	b.WriteString("/applications — active sign-up digest (DM)\n")
	b.WriteString("/stats — participation report (DM)\n")
	b.WriteString("/sendlog [n] — recent send attempts\n")
	b.WriteString("/upload — post a schedule image")
	return b.String()
}

func formatStatus(runs []announce.NextRun, active []session.Summary, channels int, timezone string) string {
	var b strings.Builder
	b.WriteString("🤖 Bot status\n")
	if timezone == "" {
		timezone = "UTC"
	}
	fmt.Fprintf(&b, "Timezone: %s\n", timezone)
	fmt.Fprintf(&b, "Channels: %d\n", channels)
	fmt.Fprintf(&b, "Active sign-ups: %d\n", len(active))

	if len(runs) == 0 {
		b.WriteString("Scheduler: stopped")
		return b.String()
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ChannelID < runs[j].ChannelID })
	b.WriteString("Next announcements:\n")
	for _, run := range runs {
		fmt.Fprintf(&b, "• %d at %s\n", run.ChannelID, run.At.Format("02.01.2006 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func confirmApplication(app session.Application) string {
	return fmt.Sprintf("✅ Application recorded, %s! Requested dates: %s",
		displayName(app), strings.Join(app.RequestedDates, ", "))
}

func displayName(app session.Application) string {
	if app.UserName != "" {
		return app.UserName
	}
	return fmt.Sprintf("user %d", app.UserID)
}

func formatApplications(sums []session.Summary) string {
	if len(sums) == 0 {
		return "No active sign-ups."
	}
	var b strings.Builder
	b.WriteString("📋 Active sign-ups\n")
	for _, sum := range sums {
		fmt.Fprintf(&b, "\n%s (message %s)\n", sum.Month, sum.MessageID)
		fmt.Fprintf(&b, "  %d application(s) from %d user(s), deadline %s\n",
			sum.Total, sum.UniqueUsers, sum.Deadline.Format("02.01.2006 15:04"))
		if len(sum.PopularDates) > 0 {
			fmt.Fprintf(&b, "  Contested dates: %s\n", strings.Join(sum.PopularDates, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCloseSummary(sum session.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔒 Sign-up for %s closed.\n", sum.Month)
	fmt.Fprintf(&b, "%d application(s) from %d user(s).", sum.Total, sum.UniqueUsers)
	if len(sum.PopularDates) > 0 {
		fmt.Fprintf(&b, "\nContested dates: %s", strings.Join(sum.PopularDates, ", "))
	}
	return b.String()
}

func formatReport(rep analytics.Report) string {
	var b strings.Builder
	b.WriteString("📊 Participation report\n")
	fmt.Fprintf(&b, "Generated: %s\n", rep.GeneratedAt.Format("02.01.2006 15:04"))
	fmt.Fprintf(&b, "Total users: %d\n", rep.TotalUsers)

	cm := rep.CurrentMonth
	fmt.Fprintf(&b, "\nThis month (%s): %d application(s), %d user(s)\n",
		cm.Month, cm.Total, cm.UniqueUsers)
	if len(cm.TopDates) > 0 {
		b.WriteString("Top dates:\n")
		for _, dc := range cm.TopDates {
			fmt.Fprintf(&b, "  %s — %d\n", dc.Key, dc.Count)
		}
	}

	if rep.Times.PeakHour >= 0 {
		fmt.Fprintf(&b, "\nPeak hour: %02d:00, peak day: %s\n", rep.Times.PeakHour, rep.Times.PeakWeekday)
	}
	fmt.Fprintf(&b, "Weekly growth: %+.1f%%\n", rep.Trend.GrowthPct)

	if len(rep.Insights) > 0 {
		b.WriteString("\nInsights:\n")
		for _, ins := range rep.Insights {
			b.WriteString("• " + ins + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSendLog(entries []sendlog.Entry) string {
	if len(entries) == 0 {
		return "Send log is empty."
	}
	var b strings.Builder
	b.WriteString("📨 Recent sends\n")
	for _, e := range entries {
		icon := "✅"
		switch e.Status {
		case sendlog.StatusFail:
			icon = "❌"
		case sendlog.StatusTest:
			icon = "🧪"
		}
		fmt.Fprintf(&b, "%s %s → %d (attempt %d)", icon, e.At.Format("02.01 15:04"), e.ChannelID, e.Attempt)
		if e.Error != "" {
			fmt.Fprintf(&b, ": %s", e.Error)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
