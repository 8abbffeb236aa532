package conflict

import (
	"fmt"

	"github.com/klokku/venuebook/pkg/booking"
	log "github.com/sirupsen/logrus"
)

// Source supplies the current bookings. It is read on every query; nothing is cached.
type Source interface {
	Bookings() []booking.Booking
}

// Interval is a half-open [Start, End) range of wall clock time.
type Interval struct {
	Start booking.WallClock
	End   booking.WallClock
}

// Overlaps reports whether a and b share any minute. Touching ranges do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

type Result struct {
	HasConflict         bool
	ConflictingBookings []booking.Booking
	// Message describes the first conflict only. Empty when there is none.
	Message string
}

type Detector struct {
	source       Source
	grid         booking.Grid
	nonOccupying map[booking.Status]struct{}
}

// NewDetector creates a detector. Bookings in a nonOccupying status never block a slot;
// when none are given only cancelled bookings are ignored.
func NewDetector(source Source, grid booking.Grid, nonOccupying ...booking.Status) *Detector {
	if len(nonOccupying) == 0 {
		nonOccupying = []booking.Status{booking.StatusCancelled}
	}
	statuses := make(map[booking.Status]struct{}, len(nonOccupying))
	for _, s := range nonOccupying {
		statuses[s] = struct{}{}
	}
	return &Detector{source: source, grid: grid, nonOccupying: statuses}
}

func (d *Detector) occupies(b booking.Booking) bool {
	_, ignored := d.nonOccupying[b.Status]
	return !ignored
}

// CheckConflict finds bookings on the same resource and date overlapping [start, end).
// excludeBookingId lets a booking being moved or resized ignore itself; pass "" to exclude nothing.
func (d *Detector) CheckConflict(resourceId string, date booking.Date, start, end booking.WallClock, excludeBookingId string) Result {
	candidate := Interval{Start: start, End: end}
	var conflicting []booking.Booking
	for _, b := range d.source.Bookings() {
		if b.ResourceId != resourceId || b.Date != date {
			continue
		}
		if !d.occupies(b) || (excludeBookingId != "" && b.Id == excludeBookingId) {
			continue
		}
		if Overlaps(candidate, Interval{Start: b.StartTime, End: b.EndTime}) {
			conflicting = append(conflicting, b)
		}
	}

	if len(conflicting) == 0 {
		return Result{}
	}
	first := conflicting[0]
	return Result{
		HasConflict:         true,
		ConflictingBookings: conflicting,
		Message: fmt.Sprintf("Time slot %s-%s conflicts with booking %s (%s-%s)",
			start, end, first.Id, first.StartTime, first.EndTime),
	}
}

// FindNearestAvailableSlot returns the first conflict-free start for a booking of durationMinutes.
// It scans forward from preferredStart up to WorkDayEnd-duration, then backward from one slot before
// preferredStart down to WorkDayStart. Backward candidates must also end by WorkDayEnd.
// A free forward slot always wins over a closer backward one.
// ok is false when the resource is fully booked for the whole window.
func (d *Detector) FindNearestAvailableSlot(resourceId string, date booking.Date, durationMinutes int, preferredStart booking.WallClock) (start booking.WallClock, ok bool) {
	step := d.grid.SlotDurationMinutes
	if step <= 0 || durationMinutes <= 0 {
		return 0, false
	}
	free := func(t booking.WallClock) bool {
		return !d.CheckConflict(resourceId, date, t, t.Add(durationMinutes), "").HasConflict
	}

	lastStart := d.grid.WorkDayEnd.Add(-durationMinutes)
	for t := preferredStart; !t.After(lastStart); t = t.Add(step) {
		if free(t) {
			return t, true
		}
	}
	backward := preferredStart.Add(-step)
	if backward.After(lastStart) {
		backward = lastStart.Floor(step)
	}
	for t := backward; !t.Before(d.grid.WorkDayStart); t = t.Add(-step) {
		if free(t) {
			return t, true
		}
	}

	log.Debugf("no free %d minute slot for resource %s on %s", durationMinutes, resourceId, date)
	return 0, false
}

// IsSlotAvailable checks a single 30 minute slot starting at start.
func (d *Detector) IsSlotAvailable(resourceId string, date booking.Date, start booking.WallClock, excludeBookingId string) bool {
	return !d.CheckConflict(resourceId, date, start, start.Add(booking.DefaultSlotDurationMinutes), excludeBookingId).HasConflict
}

// ValidateDrop reports whether a booking may be placed at the given range. It has the shape drag.ValidateFunc expects.
func (d *Detector) ValidateDrop(resourceId string, date booking.Date, start, end booking.WallClock, bookingId string) bool {
	if !end.After(start) || end.After(booking.WallClock(booking.MinutesPerDay)) {
		return false
	}
	result := d.CheckConflict(resourceId, date, start, end, bookingId)
	if result.HasConflict {
		log.Debugf("drop of booking %s rejected: %s", bookingId, result.Message)
	}
	return !result.HasConflict
}
