package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

type Repository interface {
	ListBookings(ctx context.Context, from Date, to Date) ([]Booking, error)
	UpdatePlacement(ctx context.Context, id string, placement Placement) error
	StoreBooking(ctx context.Context, booking Booking) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// ListBookings returns bookings with a date in [from, to], both inclusive.
func (r *RepositoryImpl) ListBookings(ctx context.Context, from Date, to Date) ([]Booking, error) {
	query, args, err := psql.Select(
		"id", "resource_id", "booking_date", "start_minute", "end_minute", "status", "customer_name",
	).
		From("booking").
		Where(squirrel.GtOrEq{"booking_date": string(from)}).
		Where(squirrel.LtOrEq{"booking_date": string(to)}).
		OrderBy("booking_date", "resource_id", "start_minute").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query bookings: %w", err)
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	bookings := make([]Booking, 0)
	for rows.Next() {
		var (
			b           Booking
			bookingDate time.Time
			startMinute int
			endMinute   int
			status      string
		)
		if err := rows.Scan(&b.Id, &b.ResourceId, &bookingDate, &startMinute, &endMinute, &status, &b.CustomerName); err != nil {
			err := fmt.Errorf("could not scan booking: %w", err)
			log.Error(err)
			return nil, err
		}
		b.Date = DateOf(bookingDate)
		b.StartTime = WallClock(startMinute)
		b.EndTime = WallClock(endMinute)
		b.Status = Status(status)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read bookings: %w", err)
	}

	return bookings, nil
}

func (r *RepositoryImpl) UpdatePlacement(ctx context.Context, id string, placement Placement) error {
	query, args, err := psql.Update("booking").
		Set("resource_id", placement.ResourceId).
		Set("booking_date", string(placement.Date)).
		Set("start_minute", placement.StartTime.Minutes()).
		Set("end_minute", placement.EndTime.Minutes()).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update placement query failed: %w", err)
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not update booking %s: %w", id, err)
		log.Error(err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrBookingNotFound, id)
	}
	return nil
}

func (r *RepositoryImpl) StoreBooking(ctx context.Context, b Booking) error {
	query, args, err := psql.Insert("booking").
		Columns("id", "resource_id", "booking_date", "start_minute", "end_minute", "status", "customer_name").
		Values(b.Id, b.ResourceId, string(b.Date), b.StartTime.Minutes(), b.EndTime.Minutes(), string(b.Status), b.CustomerName).
		ToSql()
	if err != nil {
		return fmt.Errorf("build store booking query failed: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		err := fmt.Errorf("could not store booking %s: %w", b.Id, err)
		log.Error(err)
		return err
	}
	return nil
}
