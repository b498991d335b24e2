package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// TourDescriptor configures the generic store for tours. Secret tours are
// excluded from every read by the base filter.
func TourDescriptor() Descriptor {
	return Descriptor{
		Table:    "tours",
		Resource: "tour",
		Columns: query.NewColumnSet(
			query.Column{Name: "id", SQL: "id"},
			query.Column{Name: "name", SQL: "name"},
			query.Column{Name: "slug", SQL: "slug"},
			query.Column{Name: "price", SQL: "price"},
			query.Column{Name: "price_discount", SQL: "price_discount"},
			query.Column{Name: "duration", SQL: "duration"},
			query.Column{Name: "max_group_size", SQL: "max_group_size"},
			query.Column{Name: "difficulty", SQL: "difficulty"},
			query.Column{Name: "ratings_average", SQL: "ratings_average"},
			query.Column{Name: "ratings_quantity", SQL: "ratings_quantity"},
			query.Column{Name: "summary", SQL: "summary"},
			query.Column{Name: "description", SQL: "description"},
			query.Column{Name: "image_cover", SQL: "image_cover"},
			query.Column{Name: "images", SQL: "images"},
			query.Column{Name: "start_dates", SQL: "start_dates"},
			query.Column{Name: "created_at", SQL: "created_at"},
			query.Column{Name: "updated_at", SQL: "updated_at"},
			query.Column{Name: "secret", SQL: "secret", Internal: true},
		),
		Writable: []string{
			"name", "slug", "price", "price_discount", "duration", "max_group_size",
			"difficulty", "summary", "description", "image_cover", "images",
			"start_dates", "secret",
		},
		Required:   []string{"name", "price", "duration", "max_group_size", "difficulty", "summary", "image_cover"},
		BaseFilter: []query.Condition{{Field: "secret", Op: query.OpEq, Value: "false"}},
	}
}

// TourStats is the per-difficulty ratings/price aggregate.
type TourStats struct {
	Difficulty string  `db:"difficulty" json:"difficulty"`
	NumTours   int     `db:"num_tours" json:"num_tours"`
	NumRatings int     `db:"num_ratings" json:"num_ratings"`
	AvgRating  float64 `db:"avg_rating" json:"avg_rating"`
	AvgPrice   float64 `db:"avg_price" json:"avg_price"`
	MinPrice   float64 `db:"min_price" json:"min_price"`
	MaxPrice   float64 `db:"max_price" json:"max_price"`
}

// MonthlyPlanEntry counts tour starts per month of one year.
type MonthlyPlanEntry struct {
	Month     int      `db:"month" json:"month"`
	NumStarts int      `db:"num_starts" json:"num_starts"`
	Tours     []string `db:"tours" json:"tours"`
}

// TourRepository extends the generic store with guide population and the
// reporting aggregations.
type TourRepository interface {
	Store() *SQLStore[domain.Tour]
	AttachGuides(ctx context.Context, tour *domain.Tour) error
	ReplaceGuides(ctx context.Context, tourID string, guideIDs []string) error
	Stats(ctx context.Context) ([]TourStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error)
}

type tourRepository struct {
	pool  *pgxpool.Pool
	store *SQLStore[domain.Tour]
}

// NewTourRepository returns a Postgres-backed implementation.
func NewTourRepository(pool *pgxpool.Pool) TourRepository {
	return &tourRepository{
		pool:  pool,
		store: NewSQLStore[domain.Tour](pool, TourDescriptor()),
	}
}

func (r *tourRepository) Store() *SQLStore[domain.Tour] {
	return r.store
}

// AttachGuides populates the tour's guides with their public fields.
// Population is opt-in per call; plain retrievals skip the join.
func (r *tourRepository) AttachGuides(ctx context.Context, tour *domain.Tour) error {
	const sql = `
        SELECT u.id, u.name, u.email, u.photo, u.role, u.created_at, u.updated_at
        FROM users u
        JOIN tour_guides tg ON tg.guide_id = u.id
        WHERE tg.tour_id = $1 AND u.active = true
        ORDER BY u.name`
	rows, err := r.pool.Query(ctx, sql, tour.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	guides, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[domain.User])
	if err != nil {
		return apperrors.MapError(err)
	}
	tour.Guides = guides
	return nil
}

// ReplaceGuides swaps the tour's guide assignments in one transaction.
func (r *tourRepository) ReplaceGuides(ctx context.Context, tourID string, guideIDs []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.MapError(err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM tour_guides WHERE tour_id=$1`, tourID); err != nil {
		return apperrors.MapError(err)
	}
	for _, guideID := range guideIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO tour_guides (tour_id, guide_id) VALUES ($1, $2)`, tourID, guideID); err != nil {
			return apperrors.MapError(err)
		}
	}
	return apperrors.MapError(tx.Commit(ctx))
}

// Stats groups non-secret tours by difficulty. The secret exclusion is
// composed explicitly here because aggregates bypass the generic store.
func (r *tourRepository) Stats(ctx context.Context) ([]TourStats, error) {
	const sql = `
        SELECT difficulty,
               COUNT(*)::int                    AS num_tours,
               COALESCE(SUM(ratings_quantity),0)::int AS num_ratings,
               ROUND(AVG(ratings_average)::numeric, 2)::float8 AS avg_rating,
               ROUND(AVG(price)::numeric, 2)::float8           AS avg_price,
               MIN(price)::float8               AS min_price,
               MAX(price)::float8               AS max_price
        FROM tours
        WHERE secret = false
        GROUP BY difficulty
        ORDER BY avg_price`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[TourStats])
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return stats, nil
}

// MonthlyPlan unrolls start dates of the given year into per-month counts.
func (r *tourRepository) MonthlyPlan(ctx context.Context, year int) ([]MonthlyPlanEntry, error) {
	const sql = `
        SELECT EXTRACT(MONTH FROM start_date)::int AS month,
               COUNT(*)::int                       AS num_starts,
               ARRAY_AGG(name ORDER BY name)       AS tours
        FROM tours, UNNEST(start_dates) AS start_date
        WHERE secret = false
          AND start_date >= MAKE_DATE($1, 1, 1)
          AND start_date <  MAKE_DATE($1 + 1, 1, 1)
        GROUP BY month
        ORDER BY num_starts DESC, month`
	rows, err := r.pool.Query(ctx, sql, year)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	plan, err := pgx.CollectRows(rows, pgx.RowToStructByName[MonthlyPlanEntry])
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return plan, nil
}
