package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockRange is an inclusive window of local wall-clock time expressed as
// minutes of day, e.g. 18:00-22:00 -> {1080, 1320}.
type ClockRange struct {
	Start int
	End   int
}

// Contains reports whether the given minutes-of-day value falls inside the
// range, bounds inclusive.
func (r ClockRange) Contains(minuteOfDay int) bool {
	return minuteOfDay >= r.Start && minuteOfDay <= r.End
}

// DayPolicy is a friend's preferred calling hours per weekday class.
// A nil pair means "always reachable" for that class.
type DayPolicy struct {
	Weekday *ClockRange
	Weekend *ClockRange
}

// For selects the pair matching the weekday class of t, where t must
// already be projected into the friend's timezone.
func (p DayPolicy) For(t time.Time) *ClockRange {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return p.Weekend
	default:
		return p.Weekday
	}
}

// ParseClock parses a "HH:MM" or "HH:MM:SS" local time string into minutes
// of day. Malformed input is a validation error; absent (empty) strings are
// handled by the caller, not here.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	if len(parts) == 3 {
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return h*60 + m, nil
}

// parsePair turns one start/end string pair into a ClockRange. If either
// bound is empty the pair imposes no restriction and nil is returned; that
// is deliberate, not a default substituted for bad input.
func parsePair(start, end string) (*ClockRange, error) {
	if start == "" || end == "" {
		return nil, nil
	}
	s, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return nil, err
	}
	return &ClockRange{Start: s, End: e}, nil
}

// DayPolicy derives the friend's preferred-hours policy from its four
// clock strings. Malformed explicit strings fail fast rather than silently
// widening availability.
func (f Friend) DayPolicy() (DayPolicy, error) {
	wd, err := parsePair(f.WeekdayStart, f.WeekdayEnd)
	if err != nil {
		return DayPolicy{}, fmt.Errorf("friend %s weekday hours: %w", f.ID, err)
	}
	we, err := parsePair(f.WeekendStart, f.WeekendEnd)
	if err != nil {
		return DayPolicy{}, fmt.Errorf("friend %s weekend hours: %w", f.ID, err)
	}
	return DayPolicy{Weekday: wd, Weekend: we}, nil
}
