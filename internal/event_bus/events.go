package event_bus

import "github.com/klokku/venuebook/pkg/booking"

const (
	TopicSelectionCompleted     EventType = "selection.completed"
	TopicBookingMoveRequested   EventType = "booking.move.requested"
	TopicBookingResizeRequested EventType = "booking.resize.requested"
	TopicMutationCommitted      EventType = "booking.mutation.committed"
	TopicMutationRolledBack     EventType = "booking.mutation.rolled_back"
)

type SelectionCompleted struct {
	Slots []booking.TimeSlot
}

// BookingMoveRequested is emitted when a drag is dropped on a valid target.
type BookingMoveRequested struct {
	Booking booking.Booking
	To      booking.Placement
}

// BookingResizeRequested is emitted when a resize ends with a valid range.
type BookingResizeRequested struct {
	Booking  booking.Booking
	NewStart booking.WallClock
	NewEnd   booking.WallClock
}

// MutationOrigin tells which user gesture produced a persisted mutation.
type MutationOrigin string

const (
	OriginCommit MutationOrigin = "commit"
	OriginUndo   MutationOrigin = "undo"
	OriginRedo   MutationOrigin = "redo"
)

// MutationOutcome reports the result of persisting a mutation.
type MutationOutcome struct {
	Action  booking.Action
	Origin  MutationOrigin
	Applied booking.Placement
	Err     error
}
