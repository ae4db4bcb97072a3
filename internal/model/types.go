package model

import "time"

// Cadence is how often the user wants to be in touch with a friend.
type Cadence string

const (
	CadenceWeekly    Cadence = "weekly"
	CadenceMonthly   Cadence = "monthly"
	CadenceQuarterly Cadence = "quarterly"
	CadenceYearly    Cadence = "yearly"
)

// Days maps a cadence to the expected re-contact interval in days.
// Unknown values fall back to monthly, matching the display-side default.
func (c Cadence) Days() int {
	switch c {
	case CadenceWeekly:
		return 7
	case CadenceMonthly:
		return 30
	case CadenceQuarterly:
		return 90
	case CadenceYearly:
		return 365
	default:
		return 30
	}
}

// Friend is one person the user keeps in touch with.
// The four clock strings are "HH:MM" (or "HH:MM:SS") in the friend's own
// timezone; an empty pair means that weekday class has no restriction.
type Friend struct {
	ID           string     `json:"id"`
	Name         string     `json:"name" validate:"required"`
	Phone        string     `json:"phone,omitempty"`
	Timezone     string     `json:"timezone" validate:"omitempty,timezone"`
	City         string     `json:"city,omitempty"`
	Cadence      Cadence    `json:"cadence" validate:"required,oneof=weekly monthly quarterly yearly"`
	Priority     string     `json:"priority,omitempty" validate:"omitempty,oneof=high medium low"`
	LastCalledAt *time.Time `json:"last_called_at,omitempty"`
	WeekdayStart string     `json:"weekday_start,omitempty"`
	WeekdayEnd   string     `json:"weekday_end,omitempty"`
	WeekendStart string     `json:"weekend_start,omitempty"`
	WeekendEnd   string     `json:"weekend_end,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DaysSinceContact returns whole days since the friend was last contacted,
// or -1 if never contacted.
func (f Friend) DaysSinceContact(now time.Time) int {
	if f.LastCalledAt == nil {
		return -1
	}
	return int(now.Sub(*f.LastCalledAt).Hours() / 24)
}

// Overdue reports whether the friend has gone longer than their cadence
// allows since the last contact. A friend with no recorded contact is not
// overdue; there is no baseline to measure from.
func (f Friend) Overdue(now time.Time) bool {
	d := f.DaysSinceContact(now)
	if d < 0 {
		return false
	}
	return d > f.Cadence.Days()
}

// ImportantDate is a recurring yearly date attached to a friend
// (birthday, anniversary, ...). Month/Day only; the year is projected.
type ImportantDate struct {
	ID       string `json:"id"`
	FriendID string `json:"friend_id" validate:"required"`
	Label    string `json:"label" validate:"required"`
	Month    int    `json:"month" validate:"min=1,max=12"`
	Day      int    `json:"day" validate:"min=1,max=31"`
}

// BusyInterval is one externally reported busy period (calendar event,
// manual block). Instants are UTC; source-agnostic.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether b and o share any time, using the strict
// open-interval test: touching boundaries do not count as overlap.
func (b BusyInterval) Overlaps(o BusyInterval) bool {
	return b.Start.Before(o.End) && o.Start.Before(b.End)
}

// FreeSlot is a maximal run of consecutive free half-hour cells within one
// day's work window. Always at least the minimum bookable duration.
type FreeSlot struct {
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Reason tags for a call recommendation, optionally prefixed OverduePrefix.
const (
	ReasonBothFreeNow      = "Both free now"
	ReasonGoodOverlapToday = "Good overlap today"
	ReasonFreeTomorrow     = "Free tomorrow"
	OverduePrefix          = "Overdue • "
)

// BestCallTime is the single recommended call moment for one friend.
// CallerTime and FriendTime are the same instant; FriendTime carries the
// friend's location so formatting shows their wall clock. Degraded is set
// when the friend's timezone could not be resolved and the preferred-hours
// check fell open, so the match is weaker than a confident one.
type BestCallTime struct {
	CallerTime time.Time `json:"caller_time"`
	FriendTime time.Time `json:"friend_time"`
	Reason     string    `json:"reason"`
	Degraded   bool      `json:"degraded,omitempty"`
}
