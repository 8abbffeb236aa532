package calendar

import (
	"context"
	"fmt"
	"sync"

	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/conflict"
	"github.com/klokku/venuebook/pkg/drag"
	"github.com/klokku/venuebook/pkg/executor"
	"github.com/klokku/venuebook/pkg/selection"
	log "github.com/sirupsen/logrus"
)

// PointerUpResult tells what a global pointer release committed.
type PointerUpResult struct {
	BookingChanged bool
	Selection      []booking.TimeSlot
}

// Session is the host controller of one calendar view. Every input is handled under one lock,
// so the engines see events one at a time and in order.
type Session struct {
	mu        sync.Mutex
	grid      booking.Grid
	board     *booking.Board
	detector  *conflict.Detector
	selection *selection.Engine
	drag      *drag.Engine
	executor  *executor.Executor

	// completed is written by the selection handler, which runs on the goroutine holding mu.
	completed []booking.TimeSlot

	outcomeMu   sync.Mutex
	lastOutcome *event_bus.MutationOutcome
}

func NewSession(grid booking.Grid, board *booking.Board, detector *conflict.Detector, exec *executor.Executor, bus *event_bus.EventBus) *Session {
	s := &Session{
		grid:      grid,
		board:     board,
		detector:  detector,
		selection: selection.NewEngine(grid, bus),
		drag:      drag.NewEngine(grid, detector.ValidateDrop, bus),
		executor:  exec,
	}

	event_bus.SubscribeTyped[event_bus.SelectionCompleted](bus, event_bus.TopicSelectionCompleted,
		func(e event_bus.EventT[event_bus.SelectionCompleted]) error {
			s.completed = e.Data.Slots
			log.Debugf("calendar: selection of %d slot(s) ready for booking", len(e.Data.Slots))
			return nil
		})
	recordOutcome := func(e event_bus.EventT[event_bus.MutationOutcome]) error {
		s.outcomeMu.Lock()
		defer s.outcomeMu.Unlock()
		outcome := e.Data
		s.lastOutcome = &outcome
		return nil
	}
	event_bus.SubscribeTyped[event_bus.MutationOutcome](bus, event_bus.TopicMutationCommitted, recordOutcome)
	event_bus.SubscribeTyped[event_bus.MutationOutcome](bus, event_bus.TopicMutationRolledBack, recordOutcome)

	return s
}

func (s *Session) Grid() booking.Grid {
	return s.grid
}

func (s *Session) Bookings() []booking.Booking {
	return s.board.Bookings()
}

func (s *Session) Refresh(ctx context.Context, from, to booking.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor.Refresh(ctx, from, to)
}

func (s *Session) Click(date booking.Date, resourceId string, t booking.WallClock, mods selection.Modifiers) selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection.Click(date, resourceId, t, mods)
	return s.selection.State()
}

func (s *Session) SelectionDragStart(date booking.Date, resourceId string, t booking.WallClock) selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = nil
	s.selection.DragStart(date, resourceId, t)
	return s.selection.State()
}

func (s *Session) SelectionDragMove(date booking.Date, resourceId string, t booking.WallClock) selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection.DragMove(date, resourceId, t)
	return s.selection.State()
}

func (s *Session) SelectionState() selection.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.State()
}

func (s *Session) SelectionTimeRange() (selection.TimeRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.SelectionTimeRange()
}

// CompletedSelection returns the slots of the last finished drag selection.
func (s *Session) CompletedSelection() []booking.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.TimeSlot(nil), s.completed...)
}

func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = nil
	s.selection.ClearSelection()
}

// PointerUp delivers a global pointer release to both engines.
func (s *Session) PointerUp(ctx context.Context) (PointerUpResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result PointerUpResult
	changed, err := s.drag.HandlePointerUp(ctx)
	if err != nil {
		return result, fmt.Errorf("booking change failed: %w", err)
	}
	result.BookingChanged = changed

	wasDragging := s.selection.Phase() == selection.Dragging
	if err := s.selection.HandlePointerUp(ctx); err != nil {
		return result, fmt.Errorf("selection failed: %w", err)
	}
	if wasDragging {
		result.Selection = append([]booking.TimeSlot(nil), s.completed...)
	}
	return result, nil
}

// Cancel delivers a cancel signal (Escape) to both engines.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drag.HandleCancelSignal()
	s.selection.HandleCancelSignal()
}

func (s *Session) BookingDragStart(bookingId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.board.Get(bookingId)
	if err != nil {
		return err
	}
	s.drag.DragBookingStart(b)
	return nil
}

func (s *Session) BookingDragOver(resourceId string, date booking.Date, t booking.WallClock) (drag.DropTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drag.DragOver(resourceId, date, t)
	return s.drag.PreviewPosition()
}

func (s *Session) ResizeStart(bookingId string, edge drag.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !edge.Valid() {
		return fmt.Errorf("unknown edge %q", edge)
	}
	b, err := s.board.Get(bookingId)
	if err != nil {
		return err
	}
	s.drag.ResizeStart(b, edge)
	return nil
}

func (s *Session) ResizeMove(t booking.WallClock) (drag.DropTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drag.ResizeMove(t)
	return s.drag.PreviewPosition()
}

// Preview returns the drag mode and the target under the pointer.
func (s *Session) Preview() (drag.Mode, drag.DropTarget, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.drag.PreviewPosition()
	return s.drag.Mode(), target, ok
}

func (s *Session) Undo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor.Undo(ctx)
}

func (s *Session) Redo(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executor.Redo(ctx)
}

func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executor.ClearHistory()
}

func (s *Session) HistoryState() executor.HistoryState {
	return s.executor.HistoryState()
}

// LastOutcome returns the most recent persisted or rolled back mutation.
func (s *Session) LastOutcome() (event_bus.MutationOutcome, bool) {
	s.outcomeMu.Lock()
	defer s.outcomeMu.Unlock()

	if s.lastOutcome == nil {
		return event_bus.MutationOutcome{}, false
	}
	return *s.lastOutcome, true
}

func (s *Session) CheckConflict(resourceId string, date booking.Date, start, end booking.WallClock, excludeBookingId string) conflict.Result {
	return s.detector.CheckConflict(resourceId, date, start, end, excludeBookingId)
}

func (s *Session) NearestAvailableSlot(resourceId string, date booking.Date, durationMinutes int, preferred booking.WallClock) (booking.WallClock, bool) {
	return s.detector.FindNearestAvailableSlot(resourceId, date, durationMinutes, preferred)
}

func (s *Session) IsSlotAvailable(resourceId string, date booking.Date, start booking.WallClock, excludeBookingId string) bool {
	return s.detector.IsSlotAvailable(resourceId, date, start, excludeBookingId)
}
