// Package bestcall picks the single best call-time recommendation for a
// friend from a precomputed free-slot list. Pure and stateless; safe to
// run once per friend in parallel.
package bestcall

import (
	"fmt"
	"time"

	"closer/internal/model"
)

// Select scans slots chronologically and returns the earliest one within
// the today/tomorrow horizon whose (clamped) start falls inside the
// friend's preferred hours, or nil when no such slot exists. nil means "no
// recommendation", not an error.
//
// Staler suggestions are deliberately excluded: a good time in five days
// is not a useful nudge, so the horizon ends at the start of the day after
// tomorrow even when the slot list reaches further.
//
// A malformed preferred-hours string is a validation error. An
// unresolvable timezone is not: the check falls open and the result is
// marked Degraded so callers can tell it apart from a confident match.
func Select(f model.Friend, slots []model.FreeSlot, now time.Time) (*model.BestCallTime, error) {
	policy, err := f.DayPolicy()
	if err != nil {
		return nil, err
	}

	loc := now.Location()
	y, mo, d := now.Date()
	horizonEnd := time.Date(y, mo, d+2, 0, 0, 0, 0, loc)

	for _, slot := range slots {
		if slot.End.Before(now) {
			continue
		}
		if !slot.Start.Before(horizonEnd) {
			continue
		}
		start := slot.Start
		if start.Before(now) {
			start = now
		}

		ok, degraded := withinPreferredHours(start, f.Timezone, policy)
		if !ok {
			continue
		}

		var reason string
		switch {
		case start.Sub(now) < time.Hour:
			reason = model.ReasonBothFreeNow
		case sameDay(start, now, loc):
			reason = model.ReasonGoodOverlapToday
		case sameDay(start, now.AddDate(0, 0, 1), loc):
			reason = model.ReasonFreeTomorrow
		default:
			// The horizon filter above should make this unreachable.
			return nil, fmt.Errorf("slot starting %s escaped the today/tomorrow horizon", start)
		}
		if f.Overdue(now) {
			reason = model.OverduePrefix + reason
		}

		friendTime := start
		if tz, err := time.LoadLocation(f.Timezone); err == nil && f.Timezone != "" {
			friendTime = start.In(tz)
		}
		return &model.BestCallTime{
			CallerTime: start,
			FriendTime: friendTime,
			Reason:     reason,
			Degraded:   degraded,
		}, nil
	}
	return nil, nil
}

// withinPreferredHours projects t into the friend's timezone, classifies
// the projected date as weekday or weekend, and tests the matching policy
// pair with inclusive bounds. An absent pair allows everything. If the
// zone cannot be resolved the check allows the slot but flags it degraded;
// under-restricting hides fewer opportunities than over-restricting.
func withinPreferredHours(t time.Time, timezone string, policy model.DayPolicy) (ok, degraded bool) {
	if timezone == "" {
		return true, true
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return true, true
	}
	local := t.In(loc)
	r := policy.For(local)
	if r == nil {
		return true, false
	}
	return r.Contains(local.Hour()*60 + local.Minute()), false
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
