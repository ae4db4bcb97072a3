package bestcall

import (
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"closer/internal/model"
)

// Tuesday 2025-03-11, 09:00 UTC.
var now = time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

func slot(start, end time.Time) model.FreeSlot {
	return model.FreeSlot{Start: start, End: end, DurationMinutes: int(end.Sub(start).Minutes())}
}

func utcFriend() model.Friend {
	return model.Friend{ID: "f1", Name: "Ada", Timezone: "UTC", Cadence: model.CadenceMonthly}
}

func TestOutsidePreferredHoursReturnsNil(t *testing.T) {
	f := utcFriend()
	f.WeekdayStart, f.WeekdayEnd = "18:00", "22:00"
	// Tuesday afternoon slot, free but before the friend's evening hours.
	slots := []model.FreeSlot{slot(now.Add(5*time.Hour), now.Add(7*time.Hour))} // 14:00-16:00
	got, err := Select(f, slots, now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected no recommendation, got %+v", got)
	}
}

func TestOverduePrefix(t *testing.T) {
	f := utcFriend()
	last := now.AddDate(0, 0, -40)
	f.LastCalledAt = &last
	slots := []model.FreeSlot{slot(now.Add(2*time.Hour), now.Add(3*time.Hour))}
	got, err := Select(f, slots, now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected a recommendation")
	}
	if !strings.HasPrefix(got.Reason, model.OverduePrefix) {
		t.Fatalf("expected overdue prefix, got %q", got.Reason)
	}
}

func TestRecentContactHasNoOverduePrefix(t *testing.T) {
	f := utcFriend()
	last := now.AddDate(0, 0, -3)
	f.LastCalledAt = &last
	slots := []model.FreeSlot{slot(now.Add(2*time.Hour), now.Add(3*time.Hour))}
	got, err := Select(f, slots, now)
	if err != nil || got == nil {
		t.Fatalf("expected recommendation, got %v %v", got, err)
	}
	if strings.HasPrefix(got.Reason, model.OverduePrefix) {
		t.Fatalf("unexpected overdue prefix: %q", got.Reason)
	}
}

func TestReasonTags(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		want  string
	}{
		{"within the hour", now.Add(30 * time.Minute), model.ReasonBothFreeNow},
		{"later today", now.Add(5 * time.Hour), model.ReasonGoodOverlapToday},
		{"tomorrow", now.AddDate(0, 0, 1), model.ReasonFreeTomorrow},
	}
	for _, tc := range cases {
		got, err := Select(utcFriend(), []model.FreeSlot{slot(tc.start, tc.start.Add(time.Hour))}, now)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got == nil || got.Reason != tc.want {
			t.Fatalf("%s: expected %q, got %+v", tc.name, tc.want, got)
		}
	}
}

func TestHorizonExcludesDayAfterTomorrow(t *testing.T) {
	dayAfter := time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC)
	got, err := Select(utcFriend(), []model.FreeSlot{slot(dayAfter, dayAfter.Add(time.Hour))}, now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil beyond tomorrow, got %+v", got)
	}
}

func TestEarliestQualifyingSlotWins(t *testing.T) {
	slots := []model.FreeSlot{
		slot(now.Add(2*time.Hour), now.Add(3*time.Hour)),
		slot(now.Add(6*time.Hour), now.Add(8*time.Hour)),
	}
	got, err := Select(utcFriend(), slots, now)
	if err != nil || got == nil {
		t.Fatalf("expected recommendation, got %v %v", got, err)
	}
	if !got.CallerTime.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("expected earliest slot, got %v", got.CallerTime)
	}
}

func TestInProgressSlotClampsToNow(t *testing.T) {
	slots := []model.FreeSlot{slot(now.Add(-time.Hour), now.Add(time.Hour))}
	got, err := Select(utcFriend(), slots, now)
	if err != nil || got == nil {
		t.Fatalf("expected recommendation, got %v %v", got, err)
	}
	if !got.CallerTime.Equal(now) {
		t.Fatalf("expected start clamped to now, got %v", got.CallerTime)
	}
	if got.Reason != model.ReasonBothFreeNow {
		t.Fatalf("expected both-free-now, got %q", got.Reason)
	}
}

func TestPreferredHoursBoundsAreInclusive(t *testing.T) {
	f := utcFriend()
	f.WeekdayStart, f.WeekdayEnd = "09:00", "14:00"
	// Slot starting exactly at the end bound still qualifies.
	start := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)
	got, err := Select(f, []model.FreeSlot{slot(start, start.Add(time.Hour))}, now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected inclusive end bound to qualify")
	}
}

func TestWeekendClassifiedInFriendZone(t *testing.T) {
	// Friday 23:00 UTC is already Saturday morning in Tokyo, so the
	// weekend pair must apply even though the caller is still on Friday.
	friday := time.Date(2025, 3, 14, 23, 0, 0, 0, time.UTC)
	f := model.Friend{ID: "f2", Name: "Kei", Timezone: "Asia/Tokyo", Cadence: model.CadenceWeekly,
		WeekdayStart: "18:00", WeekdayEnd: "22:00", // would reject 08:00
		WeekendStart: "07:00", WeekendEnd: "10:00", // accepts 08:00
	}
	got, err := Select(f, []model.FreeSlot{slot(friday, friday.Add(time.Hour))}, friday)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected weekend pair to accept the Saturday-morning slot")
	}
	if got.FriendTime.Weekday() != time.Saturday {
		t.Fatalf("friend-local weekday should be Saturday, got %v", got.FriendTime.Weekday())
	}
}

func TestUnresolvableZoneFailsOpenAndFlagsDegraded(t *testing.T) {
	f := utcFriend()
	f.Timezone = "Mars/Olympus_Mons"
	f.WeekdayStart, f.WeekdayEnd = "18:00", "22:00" // would reject a morning slot if enforced
	slots := []model.FreeSlot{slot(now.Add(time.Hour), now.Add(2*time.Hour))}
	got, err := Select(f, slots, now)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected fail-open recommendation")
	}
	if !got.Degraded {
		t.Fatal("expected degraded flag on fail-open result")
	}
}

func TestConfidentMatchIsNotDegraded(t *testing.T) {
	got, err := Select(utcFriend(), []model.FreeSlot{slot(now.Add(time.Hour), now.Add(2*time.Hour))}, now)
	if err != nil || got == nil {
		t.Fatalf("expected recommendation, got %v %v", got, err)
	}
	if got.Degraded {
		t.Fatal("confident match must not be degraded")
	}
}

func TestMalformedPolicyFailsFast(t *testing.T) {
	f := utcFriend()
	f.WeekdayStart, f.WeekdayEnd = "25:99", "26:00"
	if _, err := Select(f, []model.FreeSlot{slot(now, now.Add(time.Hour))}, now); err == nil {
		t.Fatal("expected validation error for malformed hours")
	}
}

func TestNoSlotsReturnsNil(t *testing.T) {
	got, err := Select(utcFriend(), nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("expected nil for empty slot list, got %+v", got)
	}
}
