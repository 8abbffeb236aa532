package booking

import "fmt"

const (
	DefaultSlotDurationMinutes       = 30
	DefaultMinBookingDurationMinutes = 30
	DefaultMaxHistorySize            = 50
)

var (
	DefaultWorkDayStart = MustWallClock("06:00")
	DefaultWorkDayEnd   = MustWallClock("23:00")
)

// Grid describes how a venue day is cut into slots.
type Grid struct {
	SlotDurationMinutes       int
	WorkDayStart              WallClock
	WorkDayEnd                WallClock
	MinBookingDurationMinutes int
}

func DefaultGrid() Grid {
	return Grid{
		SlotDurationMinutes:       DefaultSlotDurationMinutes,
		WorkDayStart:              DefaultWorkDayStart,
		WorkDayEnd:                DefaultWorkDayEnd,
		MinBookingDurationMinutes: DefaultMinBookingDurationMinutes,
	}
}

func (g Grid) Validate() error {
	if g.SlotDurationMinutes <= 0 {
		return fmt.Errorf("slot duration must be positive, got %d", g.SlotDurationMinutes)
	}
	if g.MinBookingDurationMinutes <= 0 {
		return fmt.Errorf("minimum booking duration must be positive, got %d", g.MinBookingDurationMinutes)
	}
	if !g.WorkDayStart.Valid() || !g.WorkDayEnd.Valid() || !g.WorkDayEnd.After(g.WorkDayStart) {
		return fmt.Errorf("work day %s-%s is not a valid range", g.WorkDayStart, g.WorkDayEnd)
	}
	if !g.WorkDayStart.Aligned(g.SlotDurationMinutes) || !g.WorkDayEnd.Aligned(g.SlotDurationMinutes) {
		return fmt.Errorf("work day %s-%s is not aligned to %d minute slots", g.WorkDayStart, g.WorkDayEnd, g.SlotDurationMinutes)
	}
	return nil
}

// SlotAt returns the slot containing t on the given lane, snapped down to the grid.
// ok is false when no whole slot fits at that position.
func (g Grid) SlotAt(date Date, resourceId string, t WallClock) (TimeSlot, bool) {
	start := t.Floor(g.SlotDurationMinutes)
	end := start.Add(g.SlotDurationMinutes)
	if start < 0 || end > MinutesPerDay || resourceId == "" || date == "" {
		return TimeSlot{}, false
	}
	return TimeSlot{Date: date, ResourceId: resourceId, StartTime: start, EndTime: end}, true
}

// SlotsBetween materialises every slot from a to b inclusive, in either order.
func (g Grid) SlotsBetween(date Date, resourceId string, a, b WallClock) []TimeSlot {
	if g.SlotDurationMinutes <= 0 {
		return nil
	}
	from, to := a.Floor(g.SlotDurationMinutes), b.Floor(g.SlotDurationMinutes)
	if to.Before(from) {
		from, to = to, from
	}
	slots := make([]TimeSlot, 0, to.Sub(from)/g.SlotDurationMinutes+1)
	for t := from; !t.After(to); t = t.Add(g.SlotDurationMinutes) {
		slot, ok := g.SlotAt(date, resourceId, t)
		if !ok {
			break
		}
		slots = append(slots, slot)
	}
	return slots
}
