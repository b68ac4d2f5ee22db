package announce

import (
	"strconv"
	"strings"
	"time"
)

// targetMonth is the month a day-20 announcement collects applications for:
// the month after the announcement date.
func targetMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
}

// renderTemplate fills the announcement placeholders: {date} and {day} are
// the announcement date, {month} and {year} are the target sign-up month.
func renderTemplate(tmpl string, now time.Time) string {
	target := targetMonth(now)
	r := strings.NewReplacer(
		"{date}", now.Format("02.01.2006"),
		"{month}", target.Month().String(),
		"{year}", strconv.Itoa(target.Year()),
		"{day}", strconv.Itoa(now.Day()),
	)
	return r.Replace(tmpl)
}

func monthKey(t time.Time) string { return t.Format("2006-01") }
