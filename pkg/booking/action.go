package booking

import (
	"time"

	"github.com/google/uuid"
)

type ActionKind string

const (
	ActionMove   ActionKind = "move"
	ActionResize ActionKind = "resize"
)

// Action records a committed move or resize so it can be undone and redone.
// For ActionResize, Previous and New share the resource and date.
type Action struct {
	Id        uuid.UUID
	Kind      ActionKind
	Booking   Booking
	Previous  Placement
	New       Placement
	Timestamp time.Time
}

func NewMoveAction(b Booking, to Placement, at time.Time) Action {
	return Action{
		Id:        uuid.New(),
		Kind:      ActionMove,
		Booking:   b,
		Previous:  b.Placement(),
		New:       to,
		Timestamp: at,
	}
}

func NewResizeAction(b Booking, newStart, newEnd WallClock, at time.Time) Action {
	to := b.Placement()
	to.StartTime = newStart
	to.EndTime = newEnd
	return Action{
		Id:        uuid.New(),
		Kind:      ActionResize,
		Booking:   b,
		Previous:  b.Placement(),
		New:       to,
		Timestamp: at,
	}
}

// Target returns the placement to apply when replaying the action forward (redo) or backward (undo).
func (a Action) Target(undo bool) Placement {
	if undo {
		return a.Previous
	}
	return a.New
}
