package analytics

import (
	"fmt"
	"time"
)

// ComprehensiveReport assembles the full digest: current month, trend,
// submission-time distributions, channel counters and derived insights.
func (s *Service) ComprehensiveReport() Report {
	now := s.now()
	currentMonth, _ := s.MonthlyStatistics(monthKey(now))
	r := Report{
		GeneratedAt:  now,
		CurrentMonth: currentMonth,
		Trend:        s.TrendAnalysis(DefaultTrendWeeks),
		Times:        s.PopularTimes(),
		Channels:     s.ChannelPerformance(),
	}

	s.mu.Lock()
	r.TotalUsers = len(s.data.UserStats)
	totalApps := 0
	for _, ub := range s.data.UserStats {
		totalApps += ub.TotalApplications
	}
	s.mu.Unlock()

	r.Insights = buildInsights(r, totalApps)
	return r
}

func buildInsights(r Report, totalApps int) []string {
	var out []string
	if r.Times.PeakHour >= 0 {
		out = append(out, fmt.Sprintf("Most submissions arrive around %02d:00", r.Times.PeakHour))
	}
	if r.TotalUsers > 0 {
		mean := float64(totalApps) / float64(r.TotalUsers)
		out = append(out, fmt.Sprintf("Average of %.1f applications per user", mean))
	}
	if len(r.Trend.Weekly) >= 2 {
		out = append(out, fmt.Sprintf("Weekly submissions changed by %+.1f%%", r.Trend.GrowthPct))
	}
	return out
}

// CurrentMonthKey returns the aggregation key for the given time, exposed
// for callers that label reports.
func CurrentMonthKey(t time.Time) string { return monthKey(t) }
