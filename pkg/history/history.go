package history

import (
	"github.com/google/uuid"
	"github.com/klokku/venuebook/pkg/booking"
	log "github.com/sirupsen/logrus"
)

// Listener is notified when an action is undone or redone. It is responsible for applying the change;
// the history only records actions and moves its index.
type Listener interface {
	OnUndo(action booking.Action)
	OnRedo(action booking.Action)
}

// ListenerFuncs adapts two plain functions to Listener. Nil functions are skipped.
type ListenerFuncs struct {
	Undo func(action booking.Action)
	Redo func(action booking.Action)
}

func (l ListenerFuncs) OnUndo(action booking.Action) {
	if l.Undo != nil {
		l.Undo(action)
	}
}

func (l ListenerFuncs) OnRedo(action booking.Action) {
	if l.Redo != nil {
		l.Redo(action)
	}
}

// ActionHistory is a bounded undo/redo log.
// Invariant: -1 <= currentIndex < len(actions) <= maxSize. Entries up to currentIndex are done,
// entries after it form the redo branch. Not safe for concurrent use.
type ActionHistory struct {
	actions      []booking.Action
	currentIndex int
	maxSize      int
	listener     Listener
}

// New creates an empty history holding at most maxSize actions (booking.DefaultMaxHistorySize when <= 0).
func New(maxSize int, listener Listener) *ActionHistory {
	if maxSize <= 0 {
		maxSize = booking.DefaultMaxHistorySize
	}
	if listener == nil {
		listener = ListenerFuncs{}
	}
	return &ActionHistory{
		currentIndex: -1,
		maxSize:      maxSize,
		listener:     listener,
	}
}

// AddAction drops the redo branch, appends the action and evicts the oldest entry when full.
func (h *ActionHistory) AddAction(action booking.Action) {
	h.actions = append(h.actions[:h.currentIndex+1], action)
	h.currentIndex++

	if len(h.actions) > h.maxSize {
		evicted := len(h.actions) - h.maxSize
		h.actions = append([]booking.Action(nil), h.actions[evicted:]...)
		h.currentIndex -= evicted
	}
	log.Tracef("history: added %s action %s, index %d of %d", action.Kind, action.Id, h.currentIndex, len(h.actions))
}

// Undo notifies the listener with the current action and steps back. It reports false at the start of the log.
func (h *ActionHistory) Undo() bool {
	if !h.CanUndo() {
		return false
	}
	action := h.actions[h.currentIndex]
	h.listener.OnUndo(action)
	h.currentIndex--
	return true
}

// Redo notifies the listener with the next action and steps forward. It reports false at the end of the log.
func (h *ActionHistory) Redo() bool {
	if !h.CanRedo() {
		return false
	}
	action := h.actions[h.currentIndex+1]
	h.listener.OnRedo(action)
	h.currentIndex++
	return true
}

func (h *ActionHistory) ClearHistory() {
	h.actions = nil
	h.currentIndex = -1
}

func (h *ActionHistory) CanUndo() bool {
	return h.currentIndex >= 0
}

func (h *ActionHistory) CanRedo() bool {
	return h.currentIndex < len(h.actions)-1
}

func (h *ActionHistory) CurrentIndex() int {
	return h.currentIndex
}

func (h *ActionHistory) Len() int {
	return len(h.actions)
}

// Actions returns a copy of the log, oldest first.
func (h *ActionHistory) Actions() []booking.Action {
	return append([]booking.Action(nil), h.actions...)
}

func (h *ActionHistory) indexOf(id uuid.UUID) int {
	for i, a := range h.actions {
		if a.Id == id {
			return i
		}
	}
	return -1
}

// Discard removes the action with the given id without notifying the listener.
// Used when the change an action describes never reached persistent storage. The next action on the
// same booking takes over the discarded action's previous placement, so undoing it restores a stored position.
func (h *ActionHistory) Discard(id uuid.UUID) bool {
	i := h.indexOf(id)
	if i < 0 {
		return false
	}
	discarded := h.actions[i]
	for j := i + 1; j < len(h.actions); j++ {
		if h.actions[j].Booking.Id == discarded.Booking.Id {
			h.actions[j].Previous = discarded.Previous
			break
		}
	}
	h.actions = append(h.actions[:i], h.actions[i+1:]...)
	if i <= h.currentIndex {
		h.currentIndex--
	}
	return true
}

// MarkDone steps forward over the action if it is the next redo entry, without notifying.
// Used when undoing the action failed and its effect is back in place.
func (h *ActionHistory) MarkDone(id uuid.UUID) bool {
	if !h.CanRedo() || h.actions[h.currentIndex+1].Id != id {
		return false
	}
	h.currentIndex++
	return true
}

// MarkUndone steps back over the action if it is the current entry, without notifying.
// Used when redoing the action failed and its effect was reverted.
func (h *ActionHistory) MarkUndone(id uuid.UUID) bool {
	if !h.CanUndo() || h.actions[h.currentIndex].Id != id {
		return false
	}
	h.currentIndex--
	return true
}
