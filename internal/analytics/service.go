// Package analytics aggregates application submissions into monthly, weekly,
// per-user and per-channel counters and answers reporting queries over them.
package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"rosterbot/internal/docstore"
	"rosterbot/pkg/logx"
)

var weekdayNames = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

type Service struct {
	mu    sync.Mutex
	log   logx.Logger
	store *docstore.Store
	now   func() time.Time

	data document
}

func New(store *docstore.Store, log logx.Logger) (*Service, error) {
	s := &Service{
		log:   log.With(logx.String("component", "analytics")),
		store: store,
		now:   time.Now,
		data:  newDocument(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the aggregate document from disk.
func (s *Service) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := newDocument()
	ok, err := s.store.Load(&doc)
	if err != nil {
		return fmt.Errorf("analytics: load: %w", err)
	}
	fillDocument(&doc)
	s.data = doc
	if ok {
		s.log.Debug("aggregates loaded",
			logx.Int("months", len(doc.MonthlyStats)),
			logx.Int("users", len(doc.UserStats)))
	}
	return nil
}

// Record folds one submission event into every aggregate, then persists.
func (s *Service) Record(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	userKey := strconv.FormatInt(ev.UserID, 10)
	chanKey := strconv.FormatInt(ev.ChannelID, 10)
	month := monthKey(ts)

	mb := s.data.MonthlyStats[month]
	if mb == nil {
		mb = &monthBucket{
			UniqueUsers:         newStringSet(),
			ApplicationsPerDate: make(map[string]int),
			Channels:            make(map[string]int),
		}
		s.data.MonthlyStats[month] = mb
	}
	mb.TotalApplications++
	mb.UniqueUsers.Add(userKey)
	for _, d := range ev.RequestedDates {
		mb.ApplicationsPerDate[d]++
	}
	mb.Channels[chanKey]++

	ub := s.data.UserStats[userKey]
	if ub == nil {
		ub = &userBucket{
			FirstApplication: ts,
			PreferredDates:   make(map[string]int),
			MonthsActive:     newStringSet(),
		}
		s.data.UserStats[userKey] = ub
	}
	ub.UserName = ev.UserName
	ub.TotalApplications++
	if ts.Before(ub.FirstApplication) || ub.FirstApplication.IsZero() {
		ub.FirstApplication = ts
	}
	if ts.After(ub.LastApplication) {
		ub.LastApplication = ts
	}
	for _, d := range ev.RequestedDates {
		ub.PreferredDates[d]++
	}
	ub.MonthsActive.Add(month)

	s.data.PopularTimes.Hours[strconv.Itoa(ts.Hour())]++
	s.data.PopularTimes.Weekdays[weekdayName(ts.Weekday())]++

	cb := s.data.ChannelStats[chanKey]
	if cb == nil {
		cb = &channelBucket{UniqueUsers: newStringSet()}
		s.data.ChannelStats[chanKey] = cb
	}
	cb.Total++
	cb.UniqueUsers.Add(userKey)

	wb := s.data.Trends[weekKey(ts)]
	if wb == nil {
		wb = &weekBucket{UniqueUsers: newStringSet()}
		s.data.Trends[weekKey(ts)] = wb
	}
	wb.Applications++
	wb.UniqueUsers.Add(userKey)

	if err := s.persistLocked(); err != nil {
		return err
	}
	s.log.Debug("event recorded",
		logx.Int64("user_id", ev.UserID),
		logx.String("month", month),
		logx.Int("dates", len(ev.RequestedDates)))
	return nil
}

// MonthlyStatistics reports one month's aggregates. The second return is
// false for a month with no recorded data; the stats are then zeroed but
// still carry the month label.
func (s *Service) MonthlyStatistics(month string) (MonthlyStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := MonthlyStats{Month: month, Channels: map[string]int{}}
	mb := s.data.MonthlyStats[month]
	if mb == nil {
		return out, false
	}
	out.Total = mb.TotalApplications
	out.UniqueUsers = mb.UniqueUsers.Len()
	out.TopDates = sortedCounts(mb.ApplicationsPerDate, 0)
	for k, v := range mb.Channels {
		out.Channels[k] = v
	}
	return out, true
}

// UserParticipation reports one user's lifetime stats.
func (s *Service) UserParticipation(userID int64) (UserStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ub := s.data.UserStats[strconv.FormatInt(userID, 10)]
	if ub == nil {
		return UserStats{}, false
	}
	return UserStats{
		UserID:       userID,
		UserName:     ub.UserName,
		Total:        ub.TotalApplications,
		First:        ub.FirstApplication,
		Last:         ub.LastApplication,
		TopDates:     sortedCounts(ub.PreferredDates, 5),
		MonthsActive: ub.MonthsActive.Items(),
	}, true
}

// PopularTimes reports the hour-of-day and day-of-week distributions.
func (s *Service) PopularTimes() TimesReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := TimesReport{
		PeakHour: -1,
		Hours:    make(map[string]int, len(s.data.PopularTimes.Hours)),
		Weekdays: make(map[string]int, len(s.data.PopularTimes.Weekdays)),
	}
	best := 0
	for k, v := range s.data.PopularTimes.Hours {
		out.Hours[k] = v
		h, err := strconv.Atoi(k)
		if err != nil {
			continue
		}
		if v > best || (v == best && out.PeakHour >= 0 && h < out.PeakHour) {
			best = v
			out.PeakHour = h
		}
	}
	best = 0
	for k, v := range s.data.PopularTimes.Weekdays {
		out.Weekdays[k] = v
		if v > best {
			best = v
			out.PeakWeekday = k
		}
	}
	return out
}

// ChannelPerformance reports lifetime per-channel counters, busiest first.
func (s *Service) ChannelPerformance() []ChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ChannelStats, 0, len(s.data.ChannelStats))
	for id, cb := range s.data.ChannelStats {
		out = append(out, ChannelStats{ChannelID: id, Total: cb.Total, UniqueUsers: cb.UniqueUsers.Len()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].ChannelID < out[j].ChannelID
	})
	return out
}

// DefaultTrendWeeks bounds trend reports when the caller passes no window.
const DefaultTrendWeeks = 8

// TrendAnalysis reports per-week submission counts for the last windowWeeks
// calendar weeks in chronological order, plus the growth percentage between
// the two most recent populated weeks. windowWeeks <= 0 means the default.
func (s *Service) TrendAnalysis(windowWeeks int) TrendReport {
	if windowWeeks <= 0 {
		windowWeeks = DefaultTrendWeeks
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := weekKey(s.now().AddDate(0, 0, -7*(windowWeeks-1)))
	return trendFromWeekly(s.data.Trends, cutoff)
}

// Cleanup drops month buckets (and week buckets) older than monthsToKeep.
// Lifetime user and channel stats are kept.
func (s *Service) Cleanup(monthsToKeep int) (int, error) {
	if monthsToKeep <= 0 {
		monthsToKeep = 12
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().AddDate(0, -monthsToKeep, 0)
	monthCutoff := monthKey(cutoff)
	weekCutoff := weekKey(cutoff)

	removed := 0
	// Zero-padded "YYYY-MM" / "YYYY-Www" keys compare chronologically.
	for m := range s.data.MonthlyStats {
		if m < monthCutoff {
			delete(s.data.MonthlyStats, m)
			removed++
		}
	}
	for w := range s.data.Trends {
		if w < weekCutoff {
			delete(s.data.Trends, w)
		}
	}

	if removed == 0 {
		return 0, nil
	}
	if err := s.persistLocked(); err != nil {
		return removed, err
	}
	s.log.Info("old aggregates removed", logx.Int("months", removed))
	return removed, nil
}

func (s *Service) persistLocked() error {
	if err := s.store.Save(s.data); err != nil {
		s.log.Error("persist failed", logx.Err(err))
		return fmt.Errorf("analytics: persist: %w", err)
	}
	return nil
}

// ---- helpers ----

func monthKey(t time.Time) string { return t.Format("2006-01") }

func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

func weekdayName(d time.Weekday) string {
	// Monday-first indexing.
	return weekdayNames[(int(d)+6)%7]
}

// trendFromWeekly flattens week buckets at or after cutoff ("" keeps all).
// Zero-padded "YYYY-Www" keys compare chronologically.
func trendFromWeekly(weekly map[string]*weekBucket, cutoff string) TrendReport {
	out := TrendReport{}
	keys := make([]string, 0, len(weekly))
	for k := range weekly {
		if cutoff != "" && k < cutoff {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var populated []WeekCount
	for _, k := range keys {
		wb := weekly[k]
		wc := WeekCount{Week: k, Count: wb.Applications, Users: wb.UniqueUsers.Len()}
		out.Weekly = append(out.Weekly, wc)
		if wc.Count > 0 {
			populated = append(populated, wc)
		}
	}
	if len(populated) < 2 {
		return out
	}
	prev := populated[len(populated)-2].Count
	last := populated[len(populated)-1].Count
	out.GrowthPct = float64(last-prev) / float64(prev) * 100
	return out
}

func sortedCounts(m map[string]int, limit int) []DateCount {
	out := make([]DateCount, 0, len(m))
	for k, v := range m {
		out = append(out, DateCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func fillDocument(doc *document) {
	if doc.MonthlyStats == nil {
		doc.MonthlyStats = make(map[string]*monthBucket)
	}
	for _, mb := range doc.MonthlyStats {
		if mb.UniqueUsers == nil {
			mb.UniqueUsers = newStringSet()
		}
		if mb.ApplicationsPerDate == nil {
			mb.ApplicationsPerDate = make(map[string]int)
		}
		if mb.Channels == nil {
			mb.Channels = make(map[string]int)
		}
	}
	if doc.UserStats == nil {
		doc.UserStats = make(map[string]*userBucket)
	}
	for _, ub := range doc.UserStats {
		if ub.PreferredDates == nil {
			ub.PreferredDates = make(map[string]int)
		}
		if ub.MonthsActive == nil {
			ub.MonthsActive = newStringSet()
		}
	}
	if doc.PopularTimes.Hours == nil {
		doc.PopularTimes.Hours = make(map[string]int)
	}
	if doc.PopularTimes.Weekdays == nil {
		doc.PopularTimes.Weekdays = make(map[string]int)
	}
	if doc.ChannelStats == nil {
		doc.ChannelStats = make(map[string]*channelBucket)
	}
	for _, cb := range doc.ChannelStats {
		if cb.UniqueUsers == nil {
			cb.UniqueUsers = newStringSet()
		}
	}
	if doc.Trends == nil {
		doc.Trends = make(map[string]*weekBucket)
	}
	for _, wb := range doc.Trends {
		if wb.UniqueUsers == nil {
			wb.UniqueUsers = newStringSet()
		}
	}
}
