package notify

import (
	"fmt"
	"strings"

	"rosterbot/internal/session"
)

// EvaluateSession computes threshold alerts for one session digest:
// low participation (fewer applications than the threshold) and high
// conflict (at least the threshold many contested dates).
func EvaluateSession(sum session.Summary, lowParticipation, highConflict int) []Alert {
	var out []Alert
	if lowParticipation > 0 && sum.Total < lowParticipation {
		out = append(out, Alert{
			Kind:      AlertLowParticipation,
			MessageID: sum.MessageID,
			Detail:    fmt.Sprintf("%d application(s) so far", sum.Total),
		})
	}
	if highConflict > 0 && len(sum.PopularDates) >= highConflict {
		dates := sum.PopularDates
		if len(dates) > 5 {
			dates = dates[:5]
		}
		out = append(out, Alert{
			Kind:      AlertHighConflict,
			MessageID: sum.MessageID,
			Detail: fmt.Sprintf("%d contested dates: %s",
				len(sum.PopularDates), strings.Join(dates, ", ")),
		})
	}
	return out
}
