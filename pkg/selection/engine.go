package selection

import (
	"context"

	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/pkg/booking"
	log "github.com/sirupsen/logrus"
)

type Phase int

const (
	Idle Phase = iota
	Dragging
)

func (p Phase) String() string {
	if p == Dragging {
		return "dragging"
	}
	return "idle"
}

// Modifiers are the keyboard modifiers held during a click. Ctrl and Meta (cmd) behave the same.
type Modifiers struct {
	Shift bool
	Ctrl  bool
	Meta  bool
}

// State is a read-only snapshot of the engine.
type State struct {
	SelectedSlots []booking.TimeSlot
	IsDragging    bool
	DragStart     *booking.TimeSlot
	DragEnd       *booking.TimeSlot
}

// TimeRange spans a selection that can be booked as one range.
type TimeRange struct {
	ResourceId string
	Date       booking.Date
	Start      booking.WallClock
	End        booking.WallClock
}

// Engine turns clicks and click-drags on empty cells into a set of selected slots.
// It is driven from a single event loop and is not safe for concurrent use.
type Engine struct {
	grid      booking.Grid
	bus       *event_bus.EventBus
	phase     Phase
	slots     []booking.TimeSlot
	dragStart *booking.TimeSlot
	dragEnd   *booking.TimeSlot
}

// NewEngine creates an idle engine. Completed drag selections are published on bus.
func NewEngine(grid booking.Grid, bus *event_bus.EventBus) *Engine {
	return &Engine{grid: grid, bus: bus}
}

// Click updates the selection for a click on a cell.
// Shift extends from the last selected slot when it is on the same lane; otherwise the click is handled
// as if shift were not held. Ctrl/cmd toggles the cell, or starts a new selection when the cell is on
// another lane. A plain click selects only the cell.
func (e *Engine) Click(date booking.Date, resourceId string, t booking.WallClock, mods Modifiers) {
	slot, ok := e.grid.SlotAt(date, resourceId, t)
	if !ok {
		log.Debugf("selection: ignoring click outside the grid at %s %s %s", resourceId, date, t)
		return
	}

	if mods.Shift && len(e.slots) > 0 {
		last := e.slots[len(e.slots)-1]
		if last.SameLane(slot) {
			e.slots = e.grid.SlotsBetween(date, resourceId, last.StartTime, slot.StartTime)
			return
		}
		log.Tracef("selection: shift-click on another lane, not building a range")
	}

	if mods.Ctrl || mods.Meta {
		e.toggle(slot)
		return
	}

	e.slots = []booking.TimeSlot{slot}
}

func (e *Engine) toggle(slot booking.TimeSlot) {
	if len(e.slots) > 0 && !e.slots[0].SameLane(slot) {
		e.slots = []booking.TimeSlot{slot}
		return
	}
	for i, s := range e.slots {
		if s.Key() == slot.Key() {
			e.slots = append(e.slots[:i:i], e.slots[i+1:]...)
			return
		}
	}
	e.slots = append(e.slots, slot)
}

// DragStart clears the selection and anchors a click-drag at the given cell.
func (e *Engine) DragStart(date booking.Date, resourceId string, t booking.WallClock) {
	slot, ok := e.grid.SlotAt(date, resourceId, t)
	if !ok {
		return
	}
	e.phase = Dragging
	e.slots = nil
	e.dragStart = &slot
	end := slot
	e.dragEnd = &end
}

// DragMove replaces the selection with the range from the anchor to the cell under the pointer.
// Cells on another lane are ignored.
func (e *Engine) DragMove(date booking.Date, resourceId string, t booking.WallClock) {
	if e.phase != Dragging || e.dragStart == nil {
		return
	}
	slot, ok := e.grid.SlotAt(date, resourceId, t)
	if !ok || !slot.SameLane(*e.dragStart) {
		return
	}
	e.dragEnd = &slot
	e.slots = e.grid.SlotsBetween(date, resourceId, e.dragStart.StartTime, slot.StartTime)
}

// DragEnd finishes a click-drag and publishes the selection when it is not empty.
func (e *Engine) DragEnd(ctx context.Context) error {
	if e.phase != Dragging {
		return nil
	}
	e.phase = Idle
	e.dragStart = nil
	e.dragEnd = nil
	if len(e.slots) == 0 {
		return nil
	}

	slots := append([]booking.TimeSlot(nil), e.slots...)
	log.Debugf("selection: completed with %d slot(s)", len(slots))
	return e.bus.PublishData(ctx, event_bus.TopicSelectionCompleted, event_bus.SelectionCompleted{Slots: slots})
}

// ClearSelection returns to idle with nothing selected.
func (e *Engine) ClearSelection() {
	e.phase = Idle
	e.slots = nil
	e.dragStart = nil
	e.dragEnd = nil
}

// HandlePointerUp is the entry point for a global pointer release.
func (e *Engine) HandlePointerUp(ctx context.Context) error {
	return e.DragEnd(ctx)
}

// HandleCancelSignal is the entry point for Escape and similar cancel inputs.
func (e *Engine) HandleCancelSignal() {
	e.ClearSelection()
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) State() State {
	state := State{
		SelectedSlots: append([]booking.TimeSlot(nil), e.slots...),
		IsDragging:    e.phase == Dragging,
	}
	if e.dragStart != nil {
		start := *e.dragStart
		state.DragStart = &start
	}
	if e.dragEnd != nil {
		end := *e.dragEnd
		state.DragEnd = &end
	}
	return state
}

// SelectionTimeRange returns the span of the selection when every slot is on one lane.
func (e *Engine) SelectionTimeRange() (TimeRange, bool) {
	if len(e.slots) == 0 {
		return TimeRange{}, false
	}
	first := e.slots[0]
	r := TimeRange{ResourceId: first.ResourceId, Date: first.Date, Start: first.StartTime, End: first.EndTime}
	for _, s := range e.slots[1:] {
		if !s.SameLane(first) {
			return TimeRange{}, false
		}
		if s.StartTime.Before(r.Start) {
			r.Start = s.StartTime
		}
		if s.EndTime.After(r.End) {
			r.End = s.EndTime
		}
	}
	return r, true
}
