package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/klokku/venuebook/internal/event_bus"
	"github.com/klokku/venuebook/internal/utils"
	"github.com/klokku/venuebook/pkg/booking"
	"github.com/klokku/venuebook/pkg/history"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("executor closed")

const defaultPersistTimeout = 10 * time.Second

type Options struct {
	MaxHistorySize int
	PersistTimeout time.Duration
	Clock          utils.Clock
	// Registerer receives the executor metrics. Nil skips registration.
	Registerer prometheus.Registerer
}

// HistoryState is a snapshot of the undo/redo log.
type HistoryState struct {
	Actions      []booking.Action
	CurrentIndex int
	CanUndo      bool
	CanRedo      bool
}

type job struct {
	action booking.Action
	origin event_bus.MutationOrigin
	target booking.Placement
	revert booking.Placement
}

// Executor applies requested moves and resizes to the board, records them in the history
// and persists them in order on a single worker goroutine. Failed persists are reverted locally.
type Executor struct {
	board   *booking.Board
	repo    booking.Repository
	bus     *event_bus.EventBus
	clock   utils.Clock
	timeout time.Duration
	metrics *Metrics

	// mu guards the history, the pending and stored placements and closed.
	mu      sync.Mutex
	history *history.ActionHistory
	pending map[string][]booking.Placement
	// stored is the last placement known to be in the repository, per booking.
	stored  map[string]booking.Placement
	skipped []booking.Action
	closed  bool

	qmu      sync.Mutex
	queue    []job
	signal   chan struct{}
	inflight sync.WaitGroup
	done     chan struct{}
	stopped  chan struct{}

	unsubscribe []func()
}

// New starts an executor listening for move and resize requests on bus.
func New(board *booking.Board, repo booking.Repository, bus *event_bus.EventBus, opts Options) *Executor {
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}

	e := &Executor{
		board:   board,
		repo:    repo,
		bus:     bus,
		clock:   opts.Clock,
		timeout: opts.PersistTimeout,
		metrics: NewMetrics(opts.Registerer),
		pending: make(map[string][]booking.Placement),
		stored:  make(map[string]booking.Placement),
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	e.history = history.New(opts.MaxHistorySize, history.ListenerFuncs{
		Undo: func(action booking.Action) { e.replay(action, true) },
		Redo: func(action booking.Action) { e.replay(action, false) },
	})

	e.unsubscribe = append(e.unsubscribe,
		event_bus.SubscribeTyped[event_bus.BookingMoveRequested](bus, event_bus.TopicBookingMoveRequested,
			func(ev event_bus.EventT[event_bus.BookingMoveRequested]) error {
				to := ev.Data.To
				return e.commit(ev.Data.Booking.Id, func(current booking.Booking, at time.Time) booking.Action {
					return booking.NewMoveAction(current, to, at)
				})
			}),
		event_bus.SubscribeTyped[event_bus.BookingResizeRequested](bus, event_bus.TopicBookingResizeRequested,
			func(ev event_bus.EventT[event_bus.BookingResizeRequested]) error {
				start, end := ev.Data.NewStart, ev.Data.NewEnd
				return e.commit(ev.Data.Booking.Id, func(current booking.Booking, at time.Time) booking.Action {
					return booking.NewResizeAction(current, start, end, at)
				})
			}),
	)

	go e.run()
	return e
}

func (e *Executor) commit(bookingId string, build func(current booking.Booking, at time.Time) booking.Action) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	current, err := e.board.Get(bookingId)
	if err != nil {
		return fmt.Errorf("cannot apply mutation: %w", err)
	}
	e.remember(current)
	action := build(current, e.clock.Now())
	if _, err := e.board.Place(bookingId, action.New); err != nil {
		return fmt.Errorf("cannot apply mutation: %w", err)
	}
	e.history.AddAction(action)
	e.enqueue(job{action: action, origin: event_bus.OriginCommit, target: action.New, revert: action.Previous})

	log.Debugf("executor: applied %s of booking %s: %s -> %s", action.Kind, bookingId, action.Previous, action.New)
	return nil
}

// Undo reverts the most recent done action. It reports false when there is nothing to undo.
// When the booking no longer exists the action is dropped from the history and an error wrapping
// booking.ErrBookingNotFound is returned.
func (e *Executor) Undo(ctx context.Context) (bool, error) {
	return e.step(ctx, true)
}

// Redo reapplies the next undone action. It reports false when there is nothing to redo.
func (e *Executor) Redo(ctx context.Context) (bool, error) {
	return e.step(ctx, false)
}

func (e *Executor) step(ctx context.Context, undo bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, ErrClosed
	}
	var moved bool
	if undo {
		moved = e.history.Undo()
	} else {
		moved = e.history.Redo()
	}
	if len(e.skipped) == 0 {
		return moved, nil
	}

	skipped := e.skipped[0]
	e.skipped = nil
	e.history.Discard(skipped.Id)
	return false, fmt.Errorf("%s of booking %s skipped: %w", skipped.Kind, skipped.Booking.Id, booking.ErrBookingNotFound)
}

// replay runs inside ActionHistory.Undo/Redo with mu held.
func (e *Executor) replay(action booking.Action, undo bool) {
	origin := event_bus.OriginRedo
	if undo {
		origin = event_bus.OriginUndo
	}
	target, revert := action.Target(undo), action.Target(!undo)

	if current, err := e.board.Get(action.Booking.Id); err == nil {
		e.remember(current)
	}
	if _, err := e.board.Place(action.Booking.Id, target); err != nil {
		log.Warnf("executor: %s of %s action %s skipped, discarding it: %v", origin, action.Kind, action.Id, err)
		e.skipped = append(e.skipped, action)
		return
	}
	e.enqueue(job{action: action, origin: origin, target: target, revert: revert})
	log.Debugf("executor: %s of %s action %s, booking %s -> %s", origin, action.Kind, action.Id, action.Booking.Id, target)
}

// remember records the board placement of a booking with nothing pending as its stored placement,
// unless one is already known. Must be called with mu held.
func (e *Executor) remember(b booking.Booking) {
	if len(e.pending[b.Id]) > 0 {
		return
	}
	if _, ok := e.stored[b.Id]; !ok {
		e.stored[b.Id] = b.Placement()
	}
}

// enqueue must be called with mu held.
func (e *Executor) enqueue(j job) {
	id := j.action.Booking.Id
	e.pending[id] = append(e.pending[id], j.target)
	e.metrics.mutationQueued()
	e.inflight.Add(1)

	e.qmu.Lock()
	e.queue = append(e.queue, j)
	e.qmu.Unlock()

	select {
	case e.signal <- struct{}{}:
	default:
	}
}

func (e *Executor) run() {
	defer close(e.stopped)
	for {
		select {
		case <-e.signal:
			e.drain()
		case <-e.done:
			e.drain()
			return
		}
	}
}

func (e *Executor) drain() {
	for {
		e.qmu.Lock()
		if len(e.queue) == 0 {
			e.qmu.Unlock()
			return
		}
		j := e.queue[0]
		e.queue = e.queue[1:]
		e.qmu.Unlock()

		e.persist(j)
	}
}

func (e *Executor) persist(j job) {
	defer e.inflight.Done()
	id := j.action.Booking.Id

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	err := e.repo.UpdatePlacement(ctx, id, j.target)
	cancel()

	outcome := event_bus.MutationOutcome{Action: j.action, Origin: j.origin, Applied: j.target}
	topic := event_bus.TopicMutationCommitted

	e.mu.Lock()
	e.popPending(id)
	if err == nil {
		e.stored[id] = j.target
		e.metrics.mutationCommitted(j.origin)
		log.Debugf("executor: persisted %s of booking %s at %s", j.origin, id, j.target)
	} else {
		log.Errorf("executor: failed to persist %s of booking %s: %v", j.origin, id, err)
		outcome.Applied = e.rollback(j)
		e.metrics.mutationRolledBack(j.origin)
		outcome.Err = err
		topic = event_bus.TopicMutationRolledBack
	}
	e.mu.Unlock()

	if err := e.bus.PublishData(context.Background(), topic, outcome); err != nil {
		log.Errorf("executor: publishing %s failed: %v", topic, err)
	}
}

// rollback reverts the board to the stored placement once no newer change for the booking is pending,
// corrects the history and returns the placement left on the board. Must be called with mu held.
func (e *Executor) rollback(j job) booking.Placement {
	id := j.action.Booking.Id
	applied := j.revert
	if stored, ok := e.stored[id]; ok {
		applied = stored
	}
	if len(e.pending[id]) > 0 {
		log.Warnf("executor: booking %s has newer pending changes, keeping them over the failed %s", id, j.origin)
		applied = e.pending[id][len(e.pending[id])-1]
	} else if current, err := e.board.Get(id); err == nil && current.Placement() != applied {
		if _, err := e.board.Place(id, applied); err != nil {
			log.Errorf("executor: cannot revert booking %s: %v", id, err)
		}
	}

	var corrected bool
	switch j.origin {
	case event_bus.OriginCommit:
		corrected = e.history.Discard(j.action.Id)
	case event_bus.OriginUndo:
		corrected = e.history.MarkDone(j.action.Id)
	case event_bus.OriginRedo:
		corrected = e.history.MarkUndone(j.action.Id)
	}
	if !corrected {
		log.Warnf("executor: history moved on, %s action %s left as is after failed %s", j.action.Kind, j.action.Id, j.origin)
	}
	log.Warnf("executor: rolled back %s of booking %s, board keeps %s", j.origin, id, applied)
	return applied
}

func (e *Executor) popPending(id string) {
	placements := e.pending[id]
	if len(placements) <= 1 {
		delete(e.pending, id)
		return
	}
	e.pending[id] = placements[1:]
}

// Refresh reloads the board for [from, to] from the repository and re-applies placements that are
// still waiting to be persisted.
func (e *Executor) Refresh(ctx context.Context, from, to booking.Date) error {
	bookings, err := e.repo.ListBookings(ctx, from, to)
	if err != nil {
		return fmt.Errorf("cannot refresh bookings: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.board.Replace(bookings)
	for _, b := range bookings {
		if len(e.pending[b.Id]) == 0 {
			e.stored[b.Id] = b.Placement()
		}
	}
	for id, placements := range e.pending {
		latest := placements[len(placements)-1]
		if _, err := e.board.Place(id, latest); err != nil {
			log.Debugf("executor: pending booking %s is outside the refreshed range", id)
		}
	}
	log.Debugf("executor: refreshed %d booking(s) for %s..%s", len(bookings), from, to)
	return nil
}

func (e *Executor) HistoryState() HistoryState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return HistoryState{
		Actions:      e.history.Actions(),
		CurrentIndex: e.history.CurrentIndex(),
		CanUndo:      e.history.CanUndo(),
		CanRedo:      e.history.CanRedo(),
	}
}

func (e *Executor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history.ClearHistory()
}

// Pending returns how many mutations are waiting to be persisted.
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, placements := range e.pending {
		n += len(placements)
	}
	return n
}

// IsPending reports whether the booking has a change waiting to be persisted.
func (e *Executor) IsPending(bookingId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending[bookingId]) > 0
}

// Wait blocks until every queued mutation has been persisted or rolled back.
func (e *Executor) Wait() {
	e.inflight.Wait()
}

// Close stops accepting requests, persists what is queued and stops the worker.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	for _, unsubscribe := range e.unsubscribe {
		unsubscribe()
	}
	close(e.done)
	<-e.stopped
	log.Info("executor: stopped")
}

