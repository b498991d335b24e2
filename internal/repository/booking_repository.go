package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// BookingDescriptor configures the generic store for bookings.
func BookingDescriptor() Descriptor {
	return Descriptor{
		Table:    "bookings",
		Resource: "booking",
		Columns: query.NewColumnSet(
			query.Column{Name: "id", SQL: "id"},
			query.Column{Name: "tour_id", SQL: "tour_id"},
			query.Column{Name: "user_id", SQL: "user_id"},
			query.Column{Name: "price", SQL: "price"},
			query.Column{Name: "paid", SQL: "paid"},
			query.Column{Name: "created_at", SQL: "created_at"},
			query.Column{Name: "updated_at", SQL: "updated_at"},
		),
		Writable: []string{"tour_id", "user_id", "price", "paid"},
		Required: []string{"tour_id", "user_id", "price"},
		Defaults: map[string]any{"paid": true},
	}
}

// BookingRepository extends the generic store with the principal-scoped
// listing.
type BookingRepository interface {
	Store() *SQLStore[domain.Booking]
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
}

type bookingRepository struct {
	pool  *pgxpool.Pool
	store *SQLStore[domain.Booking]
}

// NewBookingRepository returns a Postgres-backed implementation.
func NewBookingRepository(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepository{
		pool:  pool,
		store: NewSQLStore[domain.Booking](pool, BookingDescriptor()),
	}
}

func (r *bookingRepository) Store() *SQLStore[domain.Booking] {
	return r.store
}

func (r *bookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	const sql = `
        SELECT id, tour_id, user_id, price, paid, created_at, updated_at
        FROM bookings WHERE user_id=$1
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	bookings, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.Booking])
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	return bookings, nil
}
