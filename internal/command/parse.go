package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNoDates: a reply carried no recognizable dates.
var ErrNoDates = errors.New("no dates found")

// parseApplication extracts requested dates and free-form info from a reply.
// Accepted date forms: "2006-01-02", "02.01.2006", "02.01" and bare day
// numbers, the latter two resolved against the session month ("YYYY-MM").
// Everything that is not a date becomes additional info.
func parseApplication(text, month string) (dates []string, info string, err error) {
	monthStart, merr := time.Parse("2006-01", month)
	if merr != nil {
		monthStart = time.Time{}
	}

	var infoWords []string
	seen := map[string]bool{}
	for _, tok := range splitTokens(text) {
		d, ok := parseDateToken(tok, monthStart)
		if !ok {
			infoWords = append(infoWords, tok)
			continue
		}
		if !seen[d] {
			seen[d] = true
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, "", ErrNoDates
	}
	return dates, strings.Join(infoWords, " "), nil
}

func splitTokens(text string) []string {
	f := func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}
	return strings.FieldsFunc(text, f)
}

func parseDateToken(tok string, monthStart time.Time) (string, bool) {
	tok = strings.TrimSpace(tok)

	// ISO date.
	if t, err := time.Parse("2006-01-02", tok); err == nil {
		return t.Format("2006-01-02"), true
	}
	// European date with year.
	if t, err := time.Parse("02.01.2006", tok); err == nil {
		return t.Format("2006-01-02"), true
	}
	if monthStart.IsZero() {
		return "", false
	}
	// Day.month without year: take the session month's year.
	if strings.Count(tok, ".") == 1 {
		if t, err := time.Parse("02.01.2006", fmt.Sprintf("%s.%d", tok, monthStart.Year())); err == nil {
			return t.Format("2006-01-02"), true
		}
		return "", false
	}
	// Bare day number within the session month.
	if day, err := strconv.Atoi(tok); err == nil {
		if day >= 1 && day <= daysIn(monthStart) {
			return time.Date(monthStart.Year(), monthStart.Month(), day, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), true
		}
	}
	return "", false
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}
