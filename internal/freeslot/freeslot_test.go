package freeslot

import (
	"reflect"
	"testing"
	"time"

	"closer/internal/model"
)

// Monday 2025-03-10, 09:00 UTC.
var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func at(t *testing.T, day, hour, min int) time.Time {
	t.Helper()
	return time.Date(2025, 3, 10+day, hour, min, 0, 0, time.UTC)
}

var win = WorkWindow{StartHour: 9, EndHour: 21}

func TestEmptyBusyYieldsFullWindow(t *testing.T) {
	slots, err := Compute(nil, base, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(slots))
	}
	s := slots[0]
	if !s.Start.Equal(at(t, 0, 9, 0)) || !s.End.Equal(at(t, 0, 21, 0)) || s.DurationMinutes != 720 {
		t.Fatalf("unexpected slot %+v", s)
	}
}

func TestFullyBusyDayYieldsNoSlots(t *testing.T) {
	busy := []model.BusyInterval{{Start: at(t, 0, 9, 0), End: at(t, 0, 21, 0)}}
	slots, err := Compute(busy, base, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestSingleBusyBlockSplitsDay(t *testing.T) {
	busy := []model.BusyInterval{{Start: at(t, 0, 12, 0), End: at(t, 0, 12, 30)}}
	slots, err := Compute(busy, base, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d: %v", len(slots), slots)
	}
	if slots[0].DurationMinutes != 180 || !slots[0].Start.Equal(at(t, 0, 9, 0)) || !slots[0].End.Equal(at(t, 0, 12, 0)) {
		t.Fatalf("unexpected first slot %+v", slots[0])
	}
	if slots[1].DurationMinutes != 510 || !slots[1].Start.Equal(at(t, 0, 12, 30)) || !slots[1].End.Equal(at(t, 0, 21, 0)) {
		t.Fatalf("unexpected second slot %+v", slots[1])
	}
}

// A busy interval ending exactly when a cell starts does not make that
// cell busy; the overlap predicate is strictly open at the boundaries.
func TestBoundaryTouchIsNotBusy(t *testing.T) {
	busy := []model.BusyInterval{{Start: at(t, 0, 11, 0), End: at(t, 0, 12, 0)}}
	slots, err := Compute(busy, base, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slots)
	}
	if !slots[0].End.Equal(at(t, 0, 11, 0)) {
		t.Fatalf("first slot should end at busy start, got %v", slots[0].End)
	}
	if !slots[1].Start.Equal(at(t, 0, 12, 0)) {
		t.Fatalf("second slot should start at busy end, got %v", slots[1].Start)
	}
}

func TestNowRoundsUpToNextHalfHour(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 12, 45, 0, time.UTC)
	slots, err := Compute(nil, now, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || !slots[0].Start.Equal(at(t, 0, 10, 30)) {
		t.Fatalf("expected slot starting 10:30, got %v", slots)
	}
}

func TestElapsedDaySkipped(t *testing.T) {
	now := time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC) // past day 0 window
	slots, err := Compute(nil, now, win, 2, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 1 || !slots[0].Start.Equal(at(t, 1, 9, 0)) {
		t.Fatalf("expected only day 1 slot, got %v", slots)
	}
}

func TestUnsortedOverlappingBusyIntervals(t *testing.T) {
	busy := []model.BusyInterval{
		{Start: at(t, 0, 13, 0), End: at(t, 0, 14, 0)},
		{Start: at(t, 0, 12, 30), End: at(t, 0, 13, 30)},
	}
	slots, err := Compute(busy, base, win, 1, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %v", slots)
	}
	if !slots[0].End.Equal(at(t, 0, 12, 30)) || !slots[1].Start.Equal(at(t, 0, 14, 0)) {
		t.Fatalf("merged busy block handled wrong: %v", slots)
	}
}

func TestMinimumDurationDropsFragments(t *testing.T) {
	// 30-minute hole between meetings; require 60-minute slots.
	busy := []model.BusyInterval{
		{Start: at(t, 0, 9, 0), End: at(t, 0, 12, 0)},
		{Start: at(t, 0, 12, 30), End: at(t, 0, 21, 0)},
	}
	slots, err := Compute(busy, base, win, 1, 60)
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected fragment dropped, got %v", slots)
	}
}

func TestInvalidInputsFailFast(t *testing.T) {
	if _, err := Compute(nil, base, WorkWindow{StartHour: 21, EndHour: 9}, 1, 30); err == nil {
		t.Fatal("expected error for inverted window")
	}
	if _, err := Compute(nil, base, win, 0, 30); err == nil {
		t.Fatal("expected error for zero horizon")
	}
	if _, err := Compute(nil, base, win, 7, 0); err == nil {
		t.Fatal("expected error for zero min slot")
	}
}

func TestSlotInvariants(t *testing.T) {
	busy := []model.BusyInterval{
		{Start: at(t, 0, 10, 0), End: at(t, 0, 11, 30)},
		{Start: at(t, 1, 9, 0), End: at(t, 1, 17, 0)},
		{Start: at(t, 2, 14, 15), End: at(t, 2, 15, 45)},
		{Start: at(t, 3, 20, 0), End: at(t, 4, 10, 0)},
	}
	slots, err := Compute(busy, base, win, 7, 30)
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range slots {
		if s.DurationMinutes < 30 {
			t.Fatalf("slot %d shorter than minimum: %+v", i, s)
		}
		if int(s.End.Sub(s.Start).Minutes()) != s.DurationMinutes {
			t.Fatalf("slot %d duration mismatch: %+v", i, s)
		}
		for _, b := range busy {
			if (model.BusyInterval{Start: s.Start, End: s.End}).Overlaps(b) {
				t.Fatalf("slot %d overlaps busy interval %+v", i, b)
			}
		}
		if i > 0 && slots[i-1].End.After(s.Start) {
			t.Fatalf("slots %d and %d overlap or are out of order", i-1, i)
		}
	}
	again, err := Compute(busy, base, win, 7, 30)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(slots, again) {
		t.Fatal("compute is not deterministic for identical inputs")
	}
}

// Every free 30-minute cell inside the horizon must land in exactly one slot.
func TestCoverageCompleteness(t *testing.T) {
	busy := []model.BusyInterval{
		{Start: at(t, 0, 10, 0), End: at(t, 0, 11, 0)},
		{Start: at(t, 1, 13, 0), End: at(t, 1, 14, 30)},
	}
	slots, err := Compute(busy, base, win, 2, 30)
	if err != nil {
		t.Fatal(err)
	}
	for d := 0; d < 2; d++ {
		for cur := at(t, d, 9, 0); cur.Before(at(t, d, 21, 0)); cur = cur.Add(GridStep) {
			cell := model.BusyInterval{Start: cur, End: cur.Add(GridStep)}
			free := true
			for _, b := range busy {
				if cell.Overlaps(b) {
					free = false
					break
				}
			}
			covered := 0
			for _, s := range slots {
				if !cur.Before(s.Start) && !cell.End.After(s.End) {
					covered++
				}
			}
			if free && covered != 1 {
				t.Fatalf("free cell %v covered by %d slots", cur, covered)
			}
			if !free && covered != 0 {
				t.Fatalf("busy cell %v covered by a slot", cur)
			}
		}
	}
}
