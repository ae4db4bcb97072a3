// Package dates projects recurring important dates (birthdays,
// anniversaries) onto the calendar and reports which ones fall within
// the next N days.
package dates

import (
	"sort"
	"time"

	"closer/internal/model"
)

// Upcoming is one important date occurring within the lookahead window.
type Upcoming struct {
	Date       model.ImportantDate `json:"date"`
	FriendName string              `json:"friendName"`
	On         time.Time           `json:"on"`
	DaysUntil  int                 `json:"daysUntil"`
}

// Within projects each month/day pair onto its next occurrence at or
// after now and keeps those at most lookaheadDays away. A date earlier
// in the calendar year than today rolls over to next year. Results are
// sorted soonest first, ties broken by friend name.
func Within(friends []model.Friend, dates []model.ImportantDate, now time.Time, lookaheadDays int) []Upcoming {
	names := make(map[string]string, len(friends))
	for _, f := range friends {
		names[f.ID] = f.Name
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var out []Upcoming
	for _, d := range dates {
		occ := nextOccurrence(d, today)
		days := int(occ.Sub(today).Hours() / 24)
		if days > lookaheadDays {
			continue
		}
		out = append(out, Upcoming{
			Date:       d,
			FriendName: names[d.FriendID],
			On:         occ,
			DaysUntil:  days,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DaysUntil != out[j].DaysUntil {
			return out[i].DaysUntil < out[j].DaysUntil
		}
		return out[i].FriendName < out[j].FriendName
	})
	return out
}

// nextOccurrence returns the date's occurrence on or after today.
// Feb 29 in a non-leap year lands on Mar 1 via time.Date normalization,
// so the reminder still fires rather than vanishing for three years.
func nextOccurrence(d model.ImportantDate, today time.Time) time.Time {
	occ := time.Date(today.Year(), time.Month(d.Month), d.Day, 0, 0, 0, 0, today.Location())
	if occ.Before(today) {
		occ = time.Date(today.Year()+1, time.Month(d.Month), d.Day, 0, 0, 0, 0, today.Location())
	}
	return occ
}
