package analytics

import "time"

// Event is one recorded application submission.
type Event struct {
	UserID         int64
	UserName       string
	ChannelID      int64
	RequestedDates []string
	Timestamp      time.Time
}

// Persisted document. Set-valued counters live as stringSet so they
// serialize as arrays and come back as sets.

type monthBucket struct {
	TotalApplications   int            `json:"total_applications"`
	UniqueUsers         *stringSet     `json:"unique_users"`
	ApplicationsPerDate map[string]int `json:"applications_per_date"`
	Channels            map[string]int `json:"channels"`
}

type userBucket struct {
	UserName          string         `json:"user_name"`
	TotalApplications int            `json:"total_applications"`
	FirstApplication  time.Time      `json:"first_application"`
	LastApplication   time.Time      `json:"last_application"`
	PreferredDates    map[string]int `json:"preferred_dates"`
	MonthsActive      *stringSet     `json:"months_active"`
}

type channelBucket struct {
	Total       int        `json:"total"`
	UniqueUsers *stringSet `json:"unique_users"`
}

type timesBucket struct {
	Hours    map[string]int `json:"hourly"`
	Weekdays map[string]int `json:"daily"`
}

type weekBucket struct {
	Applications int        `json:"applications"`
	UniqueUsers  *stringSet `json:"unique_users"`
}

type document struct {
	MonthlyStats map[string]*monthBucket   `json:"monthly_stats"`
	UserStats    map[string]*userBucket    `json:"user_participation"`
	PopularTimes timesBucket               `json:"popular_times"`
	ChannelStats map[string]*channelBucket `json:"channel_performance"`
	Trends       map[string]*weekBucket    `json:"trends"`
}

func newDocument() document {
	return document{
		MonthlyStats: make(map[string]*monthBucket),
		UserStats:    make(map[string]*userBucket),
		PopularTimes: timesBucket{Hours: make(map[string]int), Weekdays: make(map[string]int)},
		ChannelStats: make(map[string]*channelBucket),
		Trends:       make(map[string]*weekBucket),
	}
}

// ---- Query results ----

// DateCount pairs a date (or other key) with its count.
type DateCount struct {
	Key   string
	Count int
}

type MonthlyStats struct {
	Month       string
	Total       int
	UniqueUsers int
	TopDates    []DateCount
	Channels    map[string]int
}

type UserStats struct {
	UserID       int64
	UserName     string
	Total        int
	First        time.Time
	Last         time.Time
	TopDates     []DateCount
	MonthsActive []string
}

type TimesReport struct {
	PeakHour    int
	PeakWeekday string
	Hours       map[string]int
	Weekdays    map[string]int
}

type ChannelStats struct {
	ChannelID   string
	Total       int
	UniqueUsers int
}

type WeekCount struct {
	Week  string
	Count int
	Users int
}

type TrendReport struct {
	Weekly    []WeekCount
	GrowthPct float64
}

// Report is the comprehensive digest used by /stats and the scheduled
// admin reports.
type Report struct {
	GeneratedAt  time.Time
	CurrentMonth MonthlyStats
	Trend        TrendReport
	Times        TimesReport
	Channels     []ChannelStats
	TotalUsers   int
	Insights     []string
}
