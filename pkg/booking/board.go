package booking

import (
	"fmt"
	"sort"
	"sync"
)

var ErrBookingNotFound = fmt.Errorf("booking not found")

// Board is the host's in-memory view of the bookings shown on the calendar.
// It is safe for concurrent use.
type Board struct {
	mu       sync.RWMutex
	bookings map[string]Booking
}

func NewBoard(bookings ...Booking) *Board {
	b := &Board{bookings: make(map[string]Booking, len(bookings))}
	for _, booking := range bookings {
		b.bookings[booking.Id] = booking
	}
	return b
}

// Replace swaps the whole content of the board.
func (b *Board) Replace(bookings []Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bookings = make(map[string]Booking, len(bookings))
	for _, booking := range bookings {
		b.bookings[booking.Id] = booking
	}
}

// Bookings returns a snapshot ordered by date, resource and start time.
func (b *Board) Bookings() []Booking {
	b.mu.RLock()
	result := make([]Booking, 0, len(b.bookings))
	for _, booking := range b.bookings {
		result = append(result, booking)
	}
	b.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].ResourceId != result[j].ResourceId {
			return result[i].ResourceId < result[j].ResourceId
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].Id < result[j].Id
	})
	return result
}

func (b *Board) Get(id string) (Booking, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	booking, ok := b.bookings[id]
	if !ok {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	return booking, nil
}

// Place moves an existing booking to p and returns the updated booking.
func (b *Board) Place(id string, p Placement) (Booking, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	booking, ok := b.bookings[id]
	if !ok {
		return Booking{}, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	booking = booking.WithPlacement(p)
	b.bookings[id] = booking
	return booking, nil
}

func (b *Board) Upsert(booking Booking) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bookings[booking.Id] = booking
}

func (b *Board) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.bookings, id)
}
