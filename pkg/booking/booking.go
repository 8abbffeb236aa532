package booking

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFrozen    Status = "frozen"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Booking is the subset of a venue booking the calendar works with.
type Booking struct {
	Id           string
	ResourceId   string
	Date         Date
	StartTime    WallClock
	EndTime      WallClock
	Status       Status
	CustomerName string
}

// Placement returns where the booking currently sits on the calendar.
func (b Booking) Placement() Placement {
	return Placement{
		ResourceId: b.ResourceId,
		Date:       b.Date,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
	}
}

// WithPlacement returns a copy of the booking moved to p.
func (b Booking) WithPlacement(p Placement) Booking {
	b.ResourceId = p.ResourceId
	b.Date = p.Date
	b.StartTime = p.StartTime
	b.EndTime = p.EndTime
	return b
}

// DurationMinutes returns EndTime - StartTime.
func (b Booking) DurationMinutes() int {
	return b.EndTime.Sub(b.StartTime)
}

// Placement is a resource, day and time range. Moves and resizes change a booking's placement.
type Placement struct {
	ResourceId string
	Date       Date
	StartTime  WallClock
	EndTime    WallClock
}

func (p Placement) Valid() bool {
	return p.ResourceId != "" && p.Date != "" &&
		p.StartTime.Valid() && p.EndTime.Valid() &&
		p.EndTime.After(p.StartTime)
}

func (p Placement) String() string {
	return fmt.Sprintf("%s %s %s-%s", p.ResourceId, p.Date, p.StartTime, p.EndTime)
}

// TimeSlot is one addressable cell of the calendar grid.
type TimeSlot struct {
	Date       Date      `json:"date"`
	ResourceId string    `json:"resourceId"`
	StartTime  WallClock `json:"startTime"`
	EndTime    WallClock `json:"endTime"`
}

// SameLane reports whether both slots belong to the same resource on the same day.
func (s TimeSlot) SameLane(other TimeSlot) bool {
	return s.ResourceId == other.ResourceId && s.Date == other.Date
}

// Key identifies a slot by its lane and start time.
func (s TimeSlot) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.Date, s.ResourceId, s.StartTime)
}
