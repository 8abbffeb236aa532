package drag

import (
	"context"

	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/pkg/booking"
	log "github.com/sirupsen/logrus"
)

type Mode int

const (
	Idle Mode = iota
	Dragging
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Edge is the side of a booking being resized.
type Edge string

const (
	EdgeStart Edge = "start"
	EdgeEnd   Edge = "end"
)

func (e Edge) Valid() bool {
	return e == EdgeStart || e == EdgeEnd
}

// DraggedBooking is the snapshot taken when a drag or resize begins.
type DraggedBooking struct {
	Booking            booking.Booking
	OriginalResourceId string
	OriginalDate       booking.Date
	OriginalStartTime  booking.WallClock
	OriginalEndTime    booking.WallClock
}

func (d DraggedBooking) durationMinutes() int {
	return d.OriginalEndTime.Sub(d.OriginalStartTime)
}

// DropTarget is the cell under the pointer during a drag or resize.
type DropTarget struct {
	ResourceId string
	Date       booking.Date
	StartTime  booking.WallClock
}

// ValidateFunc decides whether bookingId may occupy [start, end) on the resource and date.
type ValidateFunc func(resourceId string, date booking.Date, start, end booking.WallClock, bookingId string) bool

// Engine moves and resizes existing bookings from pointer input. Rejected operations reset it silently.
// It is driven from a single event loop and is not safe for concurrent use.
type Engine struct {
	grid     booking.Grid
	validate ValidateFunc
	bus      *event_bus.EventBus

	mode    Mode
	edge    Edge
	dragged *DraggedBooking
	target  *DropTarget
}

func NewEngine(grid booking.Grid, validate ValidateFunc, bus *event_bus.EventBus) *Engine {
	if validate == nil {
		validate = func(string, booking.Date, booking.WallClock, booking.WallClock, string) bool { return true }
	}
	return &Engine{grid: grid, validate: validate, bus: bus}
}

func snapshot(b booking.Booking) *DraggedBooking {
	return &DraggedBooking{
		Booking:            b,
		OriginalResourceId: b.ResourceId,
		OriginalDate:       b.Date,
		OriginalStartTime:  b.StartTime,
		OriginalEndTime:    b.EndTime,
	}
}

// DragBookingStart begins moving b, abandoning any drag or resize in progress.
func (e *Engine) DragBookingStart(b booking.Booking) {
	e.reset()
	e.mode = Dragging
	e.dragged = snapshot(b)
	log.Tracef("drag: start moving booking %s", b.Id)
}

// DragOver replaces the drop target. While resizing the resource and date stay pinned.
func (e *Engine) DragOver(resourceId string, date booking.Date, startTime booking.WallClock) {
	switch e.mode {
	case Dragging:
		e.target = &DropTarget{ResourceId: resourceId, Date: date, StartTime: startTime.Floor(e.grid.SlotDurationMinutes)}
	case Resizing:
		e.ResizeMove(startTime)
	}
}

// Drop commits the move when the target is valid. It reports whether a move was requested.
func (e *Engine) Drop(ctx context.Context) (bool, error) {
	if e.mode != Dragging {
		return false, nil
	}
	dragged, target := e.dragged, e.target
	e.reset()

	if target == nil {
		log.Debugf("drag: booking %s dropped without a target", dragged.Booking.Id)
		return false, nil
	}
	to := booking.Placement{
		ResourceId: target.ResourceId,
		Date:       target.Date,
		StartTime:  target.StartTime,
		EndTime:    target.StartTime.Add(dragged.durationMinutes()),
	}
	if to == dragged.Booking.Placement() {
		log.Debugf("drag: booking %s dropped on its own position", dragged.Booking.Id)
		return false, nil
	}
	if !to.Valid() || !e.validate(to.ResourceId, to.Date, to.StartTime, to.EndTime, dragged.Booking.Id) {
		log.Debugf("drag: drop of booking %s at %s rejected", dragged.Booking.Id, to)
		return false, nil
	}

	log.Debugf("drag: moving booking %s to %s", dragged.Booking.Id, to)
	err := e.bus.PublishData(ctx, event_bus.TopicBookingMoveRequested, event_bus.BookingMoveRequested{
		Booking: dragged.Booking,
		To:      to,
	})
	return true, err
}

// ResizeStart begins resizing one edge of b, abandoning any drag or resize in progress.
func (e *Engine) ResizeStart(b booking.Booking, edge Edge) {
	e.reset()
	if !edge.Valid() {
		return
	}
	e.mode = Resizing
	e.edge = edge
	e.dragged = snapshot(b)
	log.Tracef("drag: start resizing %s edge of booking %s", edge, b.Id)
}

// ResizeMove moves the resized edge to the slot at t.
func (e *Engine) ResizeMove(t booking.WallClock) {
	if e.mode != Resizing {
		return
	}
	e.target = &DropTarget{
		ResourceId: e.dragged.OriginalResourceId,
		Date:       e.dragged.OriginalDate,
		StartTime:  t.Floor(e.grid.SlotDurationMinutes),
	}
}

// ResizeEnd commits the resize when the new range is long enough and free. It reports whether a resize was requested.
// Resizing the start edge sets the new start to the target slot; resizing the end edge ends the booking
// after the target slot.
func (e *Engine) ResizeEnd(ctx context.Context) (bool, error) {
	if e.mode != Resizing {
		return false, nil
	}
	dragged, target, edge := e.dragged, e.target, e.edge
	e.reset()

	if target == nil {
		return false, nil
	}
	newStart, newEnd := dragged.OriginalStartTime, dragged.OriginalEndTime
	if edge == EdgeStart {
		newStart = target.StartTime
	} else {
		newEnd = target.StartTime.Add(e.grid.SlotDurationMinutes)
	}

	if newEnd.Sub(newStart) < e.grid.MinBookingDurationMinutes {
		log.Debugf("drag: resize of booking %s to %s-%s is below the minimum duration", dragged.Booking.Id, newStart, newEnd)
		return false, nil
	}
	if newStart == dragged.OriginalStartTime && newEnd == dragged.OriginalEndTime {
		return false, nil
	}
	if !newEnd.Valid() || !e.validate(dragged.OriginalResourceId, dragged.OriginalDate, newStart, newEnd, dragged.Booking.Id) {
		log.Debugf("drag: resize of booking %s to %s-%s rejected", dragged.Booking.Id, newStart, newEnd)
		return false, nil
	}

	log.Debugf("drag: resizing booking %s to %s-%s", dragged.Booking.Id, newStart, newEnd)
	err := e.bus.PublishData(ctx, event_bus.TopicBookingResizeRequested, event_bus.BookingResizeRequested{
		Booking:  dragged.Booking,
		NewStart: newStart,
		NewEnd:   newEnd,
	})
	return true, err
}

// DragCancel discards any drag or resize in progress.
func (e *Engine) DragCancel() {
	if e.mode != Idle {
		log.Tracef("drag: cancelled while %s", e.mode)
	}
	e.reset()
}

// HandlePointerUp is the entry point for a global pointer release: it commits whatever is in progress.
func (e *Engine) HandlePointerUp(ctx context.Context) (bool, error) {
	switch e.mode {
	case Dragging:
		return e.Drop(ctx)
	case Resizing:
		return e.ResizeEnd(ctx)
	default:
		return false, nil
	}
}

// HandleCancelSignal is the entry point for Escape and similar cancel inputs.
func (e *Engine) HandleCancelSignal() {
	e.DragCancel()
}

// PreviewPosition returns the current drop target for rendering a preview.
func (e *Engine) PreviewPosition() (DropTarget, bool) {
	if e.target == nil {
		return DropTarget{}, false
	}
	return *e.target, true
}

func (e *Engine) Mode() Mode {
	return e.mode
}

// Edge returns the edge being resized; empty unless resizing.
func (e *Engine) Edge() Edge {
	return e.edge
}

// Dragged returns the snapshot of the booking being dragged or resized.
func (e *Engine) Dragged() (DraggedBooking, bool) {
	if e.dragged == nil {
		return DraggedBooking{}, false
	}
	return *e.dragged, true
}

func (e *Engine) reset() {
	e.mode = Idle
	e.edge = ""
	e.dragged = nil
	e.target = nil
}
