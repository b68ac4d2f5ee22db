package analytics

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"rosterbot/internal/docstore"
	"rosterbot/pkg/logx"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := docstore.New(filepath.Join(t.TempDir(), "analytics.json"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	s, err := New(store, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func at(day, hour int) time.Time {
	return time.Date(2024, 7, day, hour, 30, 0, 0, time.UTC)
}

func TestRecordAndMonthlyStatistics(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	events := []Event{
		{UserID: 1, UserName: "A", ChannelID: 10, RequestedDates: []string{"2024-07-10", "2024-07-12"}, Timestamp: at(1, 15)},
		{UserID: 2, UserName: "B", ChannelID: 10, RequestedDates: []string{"2024-07-10"}, Timestamp: at(2, 15)},
		{UserID: 1, UserName: "A", ChannelID: 11, RequestedDates: []string{"2024-07-12"}, Timestamp: at(3, 9)},
	}
	for _, ev := range events {
		if err := s.Record(ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	m, ok := s.MonthlyStatistics("2024-07")
	if !ok {
		t.Fatal("expected data for 2024-07")
	}
	if m.Total != 3 {
		t.Fatalf("Total = %d, want 3", m.Total)
	}
	if m.UniqueUsers != 2 {
		t.Fatalf("UniqueUsers = %d, want 2", m.UniqueUsers)
	}
	want := []DateCount{{Key: "2024-07-10", Count: 2}, {Key: "2024-07-12", Count: 2}}
	if !reflect.DeepEqual(m.TopDates, want) {
		t.Fatalf("TopDates = %v, want %v", m.TopDates, want)
	}
	if m.Channels["10"] != 2 || m.Channels["11"] != 1 {
		t.Fatalf("Channels = %v", m.Channels)
	}

	got, ok := s.MonthlyStatistics("2024-06")
	if ok {
		t.Fatal("empty month should report ok=false")
	}
	if got.Month != "2024-06" || got.Total != 0 || got.UniqueUsers != 0 {
		t.Fatalf("empty month should report zeros with the label, got %+v", got)
	}
}

func TestUserParticipation(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	if err := s.Record(Event{UserID: 5, UserName: "E", ChannelID: 1, RequestedDates: []string{"2024-07-10"}, Timestamp: at(1, 10)}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	later := time.Date(2024, 8, 2, 11, 0, 0, 0, time.UTC)
	if err := s.Record(Event{UserID: 5, UserName: "E", ChannelID: 1, RequestedDates: []string{"2024-08-05", "2024-07-10"}, Timestamp: later}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	u, ok := s.UserParticipation(5)
	if !ok {
		t.Fatal("expected user stats")
	}
	if u.Total != 2 {
		t.Fatalf("Total = %d, want 2", u.Total)
	}
	if !u.First.Equal(at(1, 10)) || !u.Last.Equal(later) {
		t.Fatalf("First/Last = %v/%v", u.First, u.Last)
	}
	if !reflect.DeepEqual(u.MonthsActive, []string{"2024-07", "2024-08"}) {
		t.Fatalf("MonthsActive = %v", u.MonthsActive)
	}
	if len(u.TopDates) == 0 || u.TopDates[0].Key != "2024-07-10" || u.TopDates[0].Count != 2 {
		t.Fatalf("TopDates = %v", u.TopDates)
	}

	if _, ok := s.UserParticipation(999); ok {
		t.Fatal("unknown user should report ok=false")
	}
}

func TestPopularTimes(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	// 2024-07-01 is a Monday.
	stamps := []time.Time{at(1, 15), at(1, 15), at(2, 9)}
	for i, ts := range stamps {
		if err := s.Record(Event{UserID: int64(i), ChannelID: 1, Timestamp: ts}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	p := s.PopularTimes()
	if p.PeakHour != 15 {
		t.Fatalf("PeakHour = %d, want 15", p.PeakHour)
	}
	if p.PeakWeekday != "monday" {
		t.Fatalf("PeakWeekday = %s, want monday", p.PeakWeekday)
	}
	if p.Hours["15"] != 2 || p.Hours["9"] != 1 {
		t.Fatalf("Hours = %v", p.Hours)
	}
	if p.Weekdays["monday"] != 2 || p.Weekdays["tuesday"] != 1 {
		t.Fatalf("Weekdays = %v", p.Weekdays)
	}
}

func weeks(counts map[string]int) map[string]*weekBucket {
	out := make(map[string]*weekBucket, len(counts))
	for k, n := range counts {
		out[k] = &weekBucket{Applications: n, UniqueUsers: newStringSet()}
	}
	return out
}

func TestTrendGrowth(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		weekly map[string]int
		want   float64
	}{
		{name: "empty", weekly: map[string]int{}, want: 0},
		{name: "single week", weekly: map[string]int{"2024-W27": 4}, want: 0},
		{name: "growth", weekly: map[string]int{"2024-W27": 4, "2024-W28": 5}, want: 25},
		{name: "decline", weekly: map[string]int{"2024-W27": 4, "2024-W28": 2}, want: -50},
		{name: "zero weeks skipped", weekly: map[string]int{"2024-W26": 4, "2024-W27": 0, "2024-W28": 6}, want: 50},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := trendFromWeekly(weeks(tt.weekly), "").GrowthPct
			if got != tt.want {
				t.Fatalf("GrowthPct = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrendFromWeeklyCutoff(t *testing.T) {
	t.Parallel()
	weekly := weeks(map[string]int{"2024-W20": 9, "2024-W27": 4, "2024-W28": 6})

	got := trendFromWeekly(weekly, "2024-W27")
	if len(got.Weekly) != 2 || got.Weekly[0].Week != "2024-W27" {
		t.Fatalf("Weekly = %v", got.Weekly)
	}
	// Growth is computed inside the window only.
	if got.GrowthPct != 50 {
		t.Fatalf("GrowthPct = %v, want 50", got.GrowthPct)
	}
}

func TestTrendAnalysisWindow(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	s.now = func() time.Time { return time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC) } // W29

	stamps := []time.Time{
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),  // W10, far outside any window
		time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),  // W27
		time.Date(2024, 7, 8, 10, 0, 0, 0, time.UTC),  // W28
		time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC), // W29
	}
	for i, ts := range stamps {
		if err := s.Record(Event{UserID: int64(i), ChannelID: 1, Timestamp: ts}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	// Default window is eight weeks: W22..W29 keeps July, drops March.
	tr := s.TrendAnalysis(0)
	if len(tr.Weekly) != 3 || tr.Weekly[0].Week != "2024-W27" {
		t.Fatalf("default window Weekly = %v", tr.Weekly)
	}

	if tr := s.TrendAnalysis(2); len(tr.Weekly) != 2 || tr.Weekly[0].Week != "2024-W28" {
		t.Fatalf("2-week window Weekly = %v", tr.Weekly)
	}
}

func TestComprehensiveReport(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	s.now = func() time.Time { return at(15, 12) }

	for i := int64(1); i <= 2; i++ {
		if err := s.Record(Event{UserID: i, UserName: "u", ChannelID: 1, RequestedDates: []string{"2024-07-20"}, Timestamp: at(int(i), 14)}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	r := s.ComprehensiveReport()
	if r.CurrentMonth.Month != "2024-07" || r.CurrentMonth.Total != 2 {
		t.Fatalf("CurrentMonth = %+v", r.CurrentMonth)
	}
	if r.TotalUsers != 2 {
		t.Fatalf("TotalUsers = %d, want 2", r.TotalUsers)
	}
	if len(r.Insights) == 0 {
		t.Fatal("expected at least one insight")
	}
	foundHour := false
	for _, in := range r.Insights {
		if strings.Contains(in, "14:00") {
			foundHour = true
		}
	}
	if !foundHour {
		t.Fatalf("insights missing peak hour, got %v", r.Insights)
	}
}

func TestPersistReload(t *testing.T) {
	t.Parallel()
	store, err := docstore.New(filepath.Join(t.TempDir(), "analytics.json"))
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	s1, err := New(store, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s1.Record(Event{UserID: 1, UserName: "A", ChannelID: 9, RequestedDates: []string{"2024-07-10"}, Timestamp: at(1, 8)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	s2, err := New(store, logx.Nop())
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	m, ok := s2.MonthlyStatistics("2024-07")
	if !ok || m.Total != 1 || m.UniqueUsers != 1 {
		t.Fatalf("reloaded month = %+v, %v", m, ok)
	}
	u, ok := s2.UserParticipation(1)
	if !ok || u.Total != 1 {
		t.Fatalf("reloaded user = %+v, %v", u, ok)
	}
	ch := s2.ChannelPerformance()
	if len(ch) != 1 || ch[0].ChannelID != "9" || ch[0].UniqueUsers != 1 {
		t.Fatalf("reloaded channels = %v", ch)
	}
}

func TestPersistedDocumentKeys(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "analytics.json")
	store, err := docstore.New(path)
	if err != nil {
		t.Fatalf("docstore.New: %v", err)
	}
	s, err := New(store, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Record(Event{UserID: 1, UserName: "A", ChannelID: 9, RequestedDates: []string{"2024-07-10"}, Timestamp: at(1, 8)}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	doc := string(raw)
	for _, key := range []string{
		`"monthly_stats"`,
		`"user_participation"`,
		`"popular_times"`,
		`"hourly"`,
		`"daily"`,
		`"channel_performance"`,
		`"trends"`,
		`"2024-W27"`, // week buckets sit directly under trends
	} {
		if !strings.Contains(doc, key) {
			t.Fatalf("document missing %s:\n%s", key, doc)
		}
	}
	if strings.Contains(doc, `"weekly"`) {
		t.Fatalf("trends must not nest a weekly level:\n%s", doc)
	}
}

func TestCleanupKeepsRecentMonths(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	s.now = func() time.Time { return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC) }

	old := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Record(Event{UserID: 1, ChannelID: 1, Timestamp: old}); err != nil {
		t.Fatalf("Record old: %v", err)
	}
	if err := s.Record(Event{UserID: 1, ChannelID: 1, Timestamp: recent}); err != nil {
		t.Fatalf("Record recent: %v", err)
	}

	removed, err := s.Cleanup(12)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if got, ok := s.MonthlyStatistics("2024-05"); ok {
		t.Fatalf("old month should be gone, got %+v", got)
	}
	if got, ok := s.MonthlyStatistics("2025-06"); !ok || got.Total != 1 {
		t.Fatalf("recent month should survive, got %+v, %v", got, ok)
	}
	// Lifetime stats are intentionally untouched.
	if _, ok := s.UserParticipation(1); !ok {
		t.Fatal("user lifetime stats should survive cleanup")
	}
}
