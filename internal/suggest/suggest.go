// Package suggest fans the best-call-time selector out over every friend
// and assembles the ranked suggestion list the CLI and API present.
package suggest

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"closer/internal/bestcall"
	"closer/internal/logging"
	"closer/internal/metrics"
	"closer/internal/model"
	"closer/internal/util"
)

// Suggestion pairs one friend with their recommended call moment plus the
// display strings the presentation layers need.
type Suggestion struct {
	Friend        model.Friend       `json:"friend"`
	Best          model.BestCallTime `json:"best"`
	FriendNow     string             `json:"friendNow,omitempty"`
	LastContacted string             `json:"lastContacted"`
	WhatsAppURL   string             `json:"whatsappUrl,omitempty"`
}

// Build runs the selector for every friend concurrently, drops friends
// with no viable moment, and returns suggestions ordered by call time
// (priority, then name, breaking ties). max caps the result; max <= 0
// means unlimited.
func Build(friends []model.Friend, slots []model.FreeSlot, now time.Time, max int) []Suggestion {
	results := make([]*Suggestion, len(friends))
	var wg sync.WaitGroup
	for i, f := range friends {
		wg.Add(1)
		go func(i int, f model.Friend) {
			defer wg.Done()
			best, err := bestcall.Select(f, slots, now)
			if err != nil {
				logging.Error("best_call_failed", map[string]any{"friend": f.ID, "error": err.Error()})
				return
			}
			if best == nil {
				return
			}
			if best.Degraded {
				metrics.DegradedTimezones.Inc()
				logging.Info("timezone_unresolved", map[string]any{"friend": f.ID, "timezone": f.Timezone})
			}
			results[i] = &Suggestion{
				Friend:        f,
				Best:          *best,
				FriendNow:     FriendLocalTime(f, now),
				LastContacted: FormatLastContacted(f, now),
				WhatsAppURL:   WhatsAppLink(f.Phone),
			}
		}(i, f)
	}
	wg.Wait()

	out := make([]Suggestion, 0, len(friends))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Best.CallerTime.Equal(out[j].Best.CallerTime) {
			return out[i].Best.CallerTime.Before(out[j].Best.CallerTime)
		}
		pi, pj := priorityRank(out[i].Friend.Priority), priorityRank(out[j].Friend.Priority)
		if pi != pj {
			return pi < pj
		}
		return out[i].Friend.Name < out[j].Friend.Name
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func priorityRank(p string) int {
	switch p {
	case "high":
		return 0
	case "low":
		return 2
	default:
		return 1
	}
}

// FriendLocalTime renders the friend's current wall clock, or "" when
// their timezone is unset or unresolvable.
func FriendLocalTime(f model.Friend, now time.Time) string {
	if f.Timezone == "" {
		return ""
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return ""
	}
	return now.In(loc).Format("Mon 15:04")
}

// FormatLastContacted renders relative elapsed time since the last
// recorded contact.
func FormatLastContacted(f model.Friend, now time.Time) string {
	d := f.DaysSinceContact(now)
	switch {
	case d < 0:
		return "Never"
	case d == 0:
		return "Today"
	case d == 1:
		return "Yesterday"
	case d < 7:
		return fmt.Sprintf("%d days ago", d)
	case d < 30:
		return plural(d/7, "week")
	case d < 365:
		return plural(d/30, "month")
	default:
		return plural(d/365, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// WhatsAppLink builds a wa.me URL from a free-form phone number, or ""
// when there are no digits to dial.
func WhatsAppLink(phone string) string {
	digits := util.DigitsOnly(phone)
	if digits == "" {
		return ""
	}
	return "https://wa.me/" + digits
}
