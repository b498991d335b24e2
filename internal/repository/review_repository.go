package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// ReviewDescriptor configures the generic store for reviews.
func ReviewDescriptor() Descriptor {
	return Descriptor{
		Table:    "reviews",
		Resource: "review",
		Columns: query.NewColumnSet(
			query.Column{Name: "id", SQL: "id"},
			query.Column{Name: "review", SQL: "review"},
			query.Column{Name: "rating", SQL: "rating"},
			query.Column{Name: "tour_id", SQL: "tour_id"},
			query.Column{Name: "user_id", SQL: "user_id"},
			query.Column{Name: "created_at", SQL: "created_at"},
			query.Column{Name: "updated_at", SQL: "updated_at"},
		),
		Writable: []string{"review", "rating", "tour_id", "user_id"},
		Required: []string{"review", "rating", "tour_id", "user_id"},
	}
}

// ReviewRepository extends the generic store with author population and the
// rating aggregate that reviews maintain on their tour.
type ReviewRepository interface {
	Store() *SQLStore[domain.Review]
	AttachAuthors(ctx context.Context, reviews []domain.Review) error
	TourRatingStats(ctx context.Context, tourID string) (domain.RatingStats, error)
	ApplyRatingStats(ctx context.Context, tourID string) error
}

type reviewRepository struct {
	pool  *pgxpool.Pool
	store *SQLStore[domain.Review]
}

// NewReviewRepository returns a Postgres-backed implementation.
func NewReviewRepository(pool *pgxpool.Pool) ReviewRepository {
	return &reviewRepository{
		pool:  pool,
		store: NewSQLStore[domain.Review](pool, ReviewDescriptor()),
	}
}

func (r *reviewRepository) Store() *SQLStore[domain.Review] {
	return r.store
}

// AttachAuthors populates each review's author with public user fields.
func (r *reviewRepository) AttachAuthors(ctx context.Context, reviews []domain.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	ids := make([]string, 0, len(reviews))
	for _, review := range reviews {
		ids = append(ids, review.UserID)
	}

	const sql = `
        SELECT id, name, email, photo, role, created_at, updated_at
        FROM users WHERE id = ANY($1)`
	rows, err := r.pool.Query(ctx, sql, ids)
	if err != nil {
		return apperrors.MapError(err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.User])
	if err != nil {
		return apperrors.MapError(err)
	}

	byID := make(map[string]domain.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}
	for i := range reviews {
		if user, ok := byID[reviews[i].UserID]; ok {
			author := user
			reviews[i].Author = &author
		}
	}
	return nil
}

// TourRatingStats computes the review aggregate for one tour.
func (r *reviewRepository) TourRatingStats(ctx context.Context, tourID string) (domain.RatingStats, error) {
	const sql = `
        SELECT COUNT(*)::int AS quantity, COALESCE(AVG(rating), 0)::float8 AS average
        FROM reviews WHERE tour_id = $1`

	var stats domain.RatingStats
	if err := r.pool.QueryRow(ctx, sql, tourID).Scan(&stats.Quantity, &stats.Average); err != nil {
		return domain.RatingStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// ApplyRatingStats recomputes the aggregate and writes it onto the tour.
// With zero reviews the tour falls back to the catalog defaults.
func (r *reviewRepository) ApplyRatingStats(ctx context.Context, tourID string) error {
	stats, err := r.TourRatingStats(ctx, tourID)
	if err != nil {
		return err
	}

	average := domain.DefaultRatingsAverage
	quantity := domain.DefaultRatingsQuantity
	if stats.Quantity > 0 {
		average = stats.Average
		quantity = stats.Quantity
	}

	const sql = `
        UPDATE tours SET ratings_average = ROUND($1::numeric, 1), ratings_quantity = $2, updated_at = NOW()
        WHERE id = $3`
	_, err = r.pool.Exec(ctx, sql, average, quantity, tourID)
	return apperrors.MapError(err)
}
