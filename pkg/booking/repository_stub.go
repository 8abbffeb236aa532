package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type RepositoryStub struct {
	mu        sync.Mutex
	items     map[string]Booking
	updates   []Placement
	updateErr error
	failNext  int
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items: make(map[string]Booking),
	}
}

func (r *RepositoryStub) ListBookings(ctx context.Context, from Date, to Date) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Booking, 0, len(r.items))
	for _, b := range r.items {
		if b.Date >= from && b.Date <= to {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Id < result[j].Id
	})
	return result, nil
}

func (r *RepositoryStub) UpdatePlacement(ctx context.Context, id string, placement Placement) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNext > 0 {
		r.failNext--
		return r.updateErr
	}
	b, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	r.items[id] = b.WithPlacement(placement)
	r.updates = append(r.updates, placement)
	return nil
}

func (r *RepositoryStub) StoreBooking(ctx context.Context, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.Id] = b
	return nil
}

// FailNextUpdates makes the next n UpdatePlacement calls return err (for testing rollback)
func (r *RepositoryStub) FailNextUpdates(n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failNext = n
	r.updateErr = err
}

// Stored returns the persisted state of a booking (useful for test assertions)
func (r *RepositoryStub) Stored(id string) (Booking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	return b, ok
}

// Updates returns every successfully persisted placement in call order
func (r *RepositoryStub) Updates() []Placement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Placement(nil), r.updates...)
}

// Remove deletes a booking from the stub, simulating a deletion made elsewhere
func (r *RepositoryStub) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
}
