// Package freeslot turns externally reported busy intervals into the list
// of free slots over a rolling multi-day window. It is a pure computation:
// the clock is always passed in, never read.
package freeslot

import (
	"fmt"
	"time"

	"closer/internal/model"
)

// GridStep is the scan resolution. Slots start and end on this grid and
// are merged greedily into maximal runs.
const GridStep = 30 * time.Minute

// WorkWindow bounds each scanned day to the caller's daily calling hours,
// e.g. {9, 21} for 9am-9pm.
type WorkWindow struct {
	StartHour int `yaml:"start_hour" json:"start_hour"`
	EndHour   int `yaml:"end_hour" json:"end_hour"`
}

// Validate rejects windows that cannot produce sensible slots.
func (w WorkWindow) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 {
		return fmt.Errorf("work window start hour %d out of range", w.StartHour)
	}
	if w.EndHour < 1 || w.EndHour > 24 {
		return fmt.Errorf("work window end hour %d out of range", w.EndHour)
	}
	if w.EndHour <= w.StartHour {
		return fmt.Errorf("work window end hour %d must be after start hour %d", w.EndHour, w.StartHour)
	}
	return nil
}

// Compute returns the free slots over the next horizonDays days, walking a
// 30-minute grid inside each day's work window and testing every cell
// against the busy list with the strict open-interval overlap predicate.
// Busy intervals may overlap each other or arrive out of order.
//
// Day 0 starts at now rounded up to the next half hour; fully elapsed days
// are skipped. Slots shorter than minSlotMinutes are dropped. The result
// is ordered by start time; any display cap is the caller's business.
func Compute(busy []model.BusyInterval, now time.Time, win WorkWindow, horizonDays, minSlotMinutes int) ([]model.FreeSlot, error) {
	if err := win.Validate(); err != nil {
		return nil, err
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("horizon days must be positive, got %d", horizonDays)
	}
	if minSlotMinutes <= 0 {
		return nil, fmt.Errorf("minimum slot minutes must be positive, got %d", minSlotMinutes)
	}

	loc := now.Location()
	year, month, day := now.Date()

	var slots []model.FreeSlot
	for d := 0; d < horizonDays; d++ {
		dayStart := time.Date(year, month, day+d, win.StartHour, 0, 0, 0, loc)
		dayEnd := time.Date(year, month, day+d, win.EndHour, 0, 0, 0, loc)
		if dayEnd.Before(now) {
			continue // day fully elapsed
		}

		cursor := dayStart
		if d == 0 && cursor.Before(now) {
			cursor = ceilToGrid(now)
		}

		for cursor.Before(dayEnd) {
			cellEnd := cursor.Add(GridStep)
			if cellEnd.After(dayEnd) {
				break
			}
			if anyOverlap(busy, cursor, cellEnd) {
				cursor = cursor.Add(GridStep)
				continue
			}
			// Greedily extend across consecutive free cells.
			end := cellEnd
			for end.Before(dayEnd) {
				next := end.Add(GridStep)
				if next.After(dayEnd) || anyOverlap(busy, end, next) {
					break
				}
				end = next
			}
			if dur := int(end.Sub(cursor).Minutes()); dur >= minSlotMinutes {
				slots = append(slots, model.FreeSlot{Start: cursor, End: end, DurationMinutes: dur})
			}
			cursor = end
		}
	}
	return slots, nil
}

func anyOverlap(busy []model.BusyInterval, start, end time.Time) bool {
	cell := model.BusyInterval{Start: start, End: end}
	for _, b := range busy {
		if cell.Overlaps(b) {
			return true
		}
	}
	return false
}

// ceilToGrid rounds t up to the next half hour on the local clock, leaving
// instants already on the grid untouched.
func ceilToGrid(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi := t.Hour(), t.Minute()
	if t.Second() > 0 || t.Nanosecond() > 0 {
		mi++
	}
	mi = ((mi + 29) / 30) * 30
	return time.Date(y, mo, d, h, mi, 0, 0, t.Location())
}
