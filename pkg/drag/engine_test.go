package drag

import (
	"context"
	"testing"

	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/conflict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	day = booking.Date("2025-06-14")
	wc  = booking.MustWallClock
)

type recorder struct {
	moves   []event_bus.BookingMoveRequested
	resizes []event_bus.BookingResizeRequested
}

func newBooking(id, resource, start, end string) booking.Booking {
	return booking.Booking{
		Id:         id,
		ResourceId: resource,
		Date:       day,
		StartTime:  wc(start),
		EndTime:    wc(end),
		Status:     booking.StatusConfirmed,
	}
}

// setupEngine wires the engine to a detector over board, applying requested moves and resizes to it
// the way the executor does.
func setupEngine(board *booking.Board) (*Engine, *recorder) {
	bus := event_bus.NewEventBus()
	rec := &recorder{}
	event_bus.SubscribeTyped[event_bus.BookingMoveRequested](bus, event_bus.TopicBookingMoveRequested,
		func(e event_bus.EventT[event_bus.BookingMoveRequested]) error {
			rec.moves = append(rec.moves, e.Data)
			_, err := board.Place(e.Data.Booking.Id, e.Data.To)
			return err
		})
	event_bus.SubscribeTyped[event_bus.BookingResizeRequested](bus, event_bus.TopicBookingResizeRequested,
		func(e event_bus.EventT[event_bus.BookingResizeRequested]) error {
			rec.resizes = append(rec.resizes, e.Data)
			p := e.Data.Booking.Placement()
			p.StartTime, p.EndTime = e.Data.NewStart, e.Data.NewEnd
			_, err := board.Place(e.Data.Booking.Id, p)
			return err
		})

	grid := booking.DefaultGrid()
	detector := conflict.NewDetector(board, grid)
	return NewEngine(grid, detector.ValidateDrop, bus), rec
}

func TestEngine_DropOnFreeTarget(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	other := newBooking("b2", "court-2", "09:00", "10:00")
	board := booking.NewBoard(b, other)
	e, rec := setupEngine(board)
	detector := conflict.NewDetector(board, booking.DefaultGrid())

	e.DragBookingStart(b)
	assert.Equal(t, Dragging, e.Mode())
	e.DragOver("court-2", day, wc("10:10"))

	preview, ok := e.PreviewPosition()
	require.True(t, ok)
	assert.Equal(t, DropTarget{ResourceId: "court-2", Date: day, StartTime: wc("10:00")}, preview)

	committed, err := e.Drop(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, Idle, e.Mode())

	require.Len(t, rec.moves, 1)
	assert.Equal(t, booking.Placement{ResourceId: "court-2", Date: day, StartTime: wc("10:00"), EndTime: wc("11:00")}, rec.moves[0].To)

	moved, err := board.Get("b1")
	require.NoError(t, err)
	assert.False(t, detector.CheckConflict(moved.ResourceId, moved.Date, moved.StartTime, moved.EndTime, moved.Id).HasConflict)
}

func TestEngine_DropRejected(t *testing.T) {
	testCases := []struct {
		name     string
		target   string
		resource string
	}{
		{name: "overlaps another booking", resource: "court-2", target: "08:30"},
		{name: "ends after midnight", resource: "court-1", target: "23:30"},
		{name: "same position", resource: "court-1", target: "09:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBooking("b1", "court-1", "09:00", "10:00")
			board := booking.NewBoard(b, newBooking("b2", "court-2", "09:00", "10:00"))
			e, rec := setupEngine(board)

			e.DragBookingStart(b)
			e.DragOver(tc.resource, day, wc(tc.target))
			committed, err := e.Drop(context.Background())

			require.NoError(t, err)
			assert.False(t, committed)
			assert.Empty(t, rec.moves)
			assert.Equal(t, Idle, e.Mode())
			_, ok := e.PreviewPosition()
			assert.False(t, ok)
		})
	}
}

func TestEngine_DropAdjacentIsAllowed(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	board := booking.NewBoard(b, newBooking("b2", "court-2", "09:00", "10:00"))
	e, rec := setupEngine(board)

	e.DragBookingStart(b)
	e.DragOver("court-2", day, wc("10:00"))
	committed, err := e.HandlePointerUp(context.Background())

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Len(t, rec.moves, 1)
}

func TestEngine_DropWithoutTarget(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, rec := setupEngine(booking.NewBoard(b))

	e.DragBookingStart(b)
	committed, err := e.Drop(context.Background())

	require.NoError(t, err)
	assert.False(t, committed)
	assert.Empty(t, rec.moves)
}

func TestEngine_ResizeEndEdge(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	board := booking.NewBoard(b)
	e, rec := setupEngine(board)

	e.ResizeStart(b, EdgeEnd)
	assert.Equal(t, Resizing, e.Mode())
	assert.Equal(t, EdgeEnd, e.Edge())
	e.ResizeMove(wc("11:00"))
	committed, err := e.ResizeEnd(context.Background())

	require.NoError(t, err)
	assert.True(t, committed)
	require.Len(t, rec.resizes, 1)
	assert.Equal(t, wc("09:00"), rec.resizes[0].NewStart)
	assert.Equal(t, wc("11:30"), rec.resizes[0].NewEnd)

	resized, _ := board.Get("b1")
	assert.Equal(t, 150, resized.DurationMinutes())
}

func TestEngine_ResizeStartEdge(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, rec := setupEngine(booking.NewBoard(b))

	e.ResizeStart(b, EdgeStart)
	// resource and date stay pinned to the original lane
	e.DragOver("court-2", day.AddDays(1), wc("08:00"))
	preview, ok := e.PreviewPosition()
	require.True(t, ok)
	assert.Equal(t, "court-1", preview.ResourceId)
	assert.Equal(t, day, preview.Date)

	committed, err := e.HandlePointerUp(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)
	require.Len(t, rec.resizes, 1)
	assert.Equal(t, wc("08:00"), rec.resizes[0].NewStart)
	assert.Equal(t, wc("10:00"), rec.resizes[0].NewEnd)
}

func TestEngine_ResizeBelowMinimumNeverPublishes(t *testing.T) {
	testCases := []struct {
		name   string
		edge   Edge
		target string
	}{
		{name: "start edge past the end", edge: EdgeStart, target: "10:00"},
		{name: "start edge far past the end", edge: EdgeStart, target: "12:00"},
		{name: "end edge before the start", edge: EdgeEnd, target: "08:00"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := newBooking("b1", "court-1", "09:00", "10:00")
			board := booking.NewBoard(b)
			e, rec := setupEngine(board)

			e.ResizeStart(b, tc.edge)
			e.ResizeMove(wc(tc.target))
			committed, err := e.ResizeEnd(context.Background())

			require.NoError(t, err)
			assert.False(t, committed)
			assert.Empty(t, rec.resizes)
			assert.Equal(t, Idle, e.Mode())
			unchanged, _ := board.Get("b1")
			assert.Equal(t, b, unchanged)
		})
	}
}

func TestEngine_ResizeIntoAnotherBookingIsRejected(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, rec := setupEngine(booking.NewBoard(b, newBooking("b2", "court-1", "10:30", "11:30")))

	e.ResizeStart(b, EdgeEnd)
	e.ResizeMove(wc("10:30"))
	committed, err := e.ResizeEnd(context.Background())

	require.NoError(t, err)
	assert.False(t, committed)
	assert.Empty(t, rec.resizes)
}

func TestEngine_ResizeWithoutChange(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, rec := setupEngine(booking.NewBoard(b))

	e.ResizeStart(b, EdgeEnd)
	e.ResizeMove(wc("09:30"))
	committed, err := e.ResizeEnd(context.Background())

	require.NoError(t, err)
	assert.False(t, committed)
	assert.Empty(t, rec.resizes)
}

func TestEngine_InvalidEdge(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, _ := setupEngine(booking.NewBoard(b))

	e.ResizeStart(b, Edge("middle"))

	assert.Equal(t, Idle, e.Mode())
}

func TestEngine_Cancel(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	e, rec := setupEngine(booking.NewBoard(b))

	e.DragBookingStart(b)
	e.DragOver("court-1", day, wc("12:00"))
	e.HandleCancelSignal()

	assert.Equal(t, Idle, e.Mode())
	_, ok := e.Dragged()
	assert.False(t, ok)
	committed, err := e.HandlePointerUp(context.Background())
	require.NoError(t, err)
	assert.False(t, committed)
	assert.Empty(t, rec.moves)
}

func TestEngine_StartingANewGestureResetsTheOldOne(t *testing.T) {
	b1 := newBooking("b1", "court-1", "09:00", "10:00")
	b2 := newBooking("b2", "court-1", "12:00", "13:00")
	e, _ := setupEngine(booking.NewBoard(b1, b2))

	e.DragBookingStart(b1)
	e.DragOver("court-1", day, wc("15:00"))
	e.ResizeStart(b2, EdgeEnd)

	dragged, ok := e.Dragged()
	require.True(t, ok)
	assert.Equal(t, "b2", dragged.Booking.Id)
	assert.Equal(t, wc("12:00"), dragged.OriginalStartTime)
	_, ok = e.PreviewPosition()
	assert.False(t, ok)
}

func TestEngine_NilValidatorAcceptsEverything(t *testing.T) {
	b := newBooking("b1", "court-1", "09:00", "10:00")
	bus := event_bus.NewEventBus()
	e := NewEngine(booking.DefaultGrid(), nil, bus)

	e.DragBookingStart(b)
	e.DragOver("court-1", day, wc("11:00"))
	committed, err := e.Drop(context.Background())

	require.NoError(t, err)
	assert.True(t, committed)
}
