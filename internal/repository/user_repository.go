package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// UserDescriptor configures the generic store for accounts. Deactivated
// accounts are hidden by the base filter; credential columns are internal
// and never projected or writable through the generic surface.
func UserDescriptor() Descriptor {
	return Descriptor{
		Table:    "users",
		Resource: "user",
		Columns: query.NewColumnSet(
			query.Column{Name: "id", SQL: "id"},
			query.Column{Name: "name", SQL: "name"},
			query.Column{Name: "email", SQL: "email"},
			query.Column{Name: "photo", SQL: "photo"},
			query.Column{Name: "role", SQL: "role"},
			query.Column{Name: "created_at", SQL: "created_at"},
			query.Column{Name: "updated_at", SQL: "updated_at"},
			query.Column{Name: "active", SQL: "active", Internal: true},
		),
		Writable:   []string{"name", "email", "photo", "role"},
		Required:   []string{"name", "email"},
		BaseFilter: []query.Condition{{Field: "active", Op: query.OpEq, Value: "true"}},
		// Logins compare against the lowercased form, so every write must
		// store it that way too.
		Normalize: map[string]func(any) any{"email": lowercaseField},
	}
}

func lowercaseField(value any) any {
	if s, ok := value.(string); ok {
		return strings.ToLower(s)
	}
	return value
}

// UserRepository carries the account operations the auth flows need beyond
// the generic store: credential reads, password rotation and the reset-token
// lifecycle.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateProfile(ctx context.Context, id string, fields map[string]any) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error
	GetByResetToken(ctx context.Context, tokenHash string) (*domain.User, error)
	ClearResetToken(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
}

type userRepository struct {
	pool  *pgxpool.Pool
	store *SQLStore[domain.User]
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{
		pool:  pool,
		store: NewSQLStore[domain.User](pool, UserDescriptor()),
	}
}

const userColumns = `
        id, name, email, photo, role, password_hash, password_changed_at,
        password_reset_token, password_reset_expires, active, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const sql = `
        INSERT INTO users (name, email, photo, role, password_hash)
        VALUES ($1, LOWER($2), $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, sql,
		user.Name,
		user.Email,
		user.Photo,
		user.Role,
		user.PasswordHash,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return apperrors.MapError(err)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=$1 AND active=true", id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=LOWER($1) AND active=true", email)
}

func (r *userRepository) GetByResetToken(ctx context.Context, tokenHash string) (*domain.User, error) {
	const sql = "SELECT " + userColumns + `
        FROM users
        WHERE password_reset_token=$1 AND password_reset_expires > NOW() AND active=true`
	return r.fetchOne(ctx, sql, tokenHash)
}

func (r *userRepository) fetchOne(ctx context.Context, sql string, arg any) (*domain.User, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	user, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[domain.User])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateProfile routes through the generic store so the same writable
// whitelist applies as for admin updates.
func (r *userRepository) UpdateProfile(ctx context.Context, id string, fields map[string]any) (*domain.User, error) {
	return r.store.FindByIDAndUpdate(ctx, id, fields)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	const sql = `
        UPDATE users
        SET password_hash=$1, password_changed_at=$2,
            password_reset_token=NULL, password_reset_expires=NULL, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, sql, passwordHash, changedAt, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	const sql = `
        UPDATE users SET password_reset_token=$1, password_reset_expires=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, sql, tokenHash, expires, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ClearResetToken(ctx context.Context, id string) error {
	const sql = `
        UPDATE users SET password_reset_token=NULL, password_reset_expires=NULL, updated_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, sql, id)
	return apperrors.MapError(err)
}

// Deactivate soft-deletes an account. The base filter hides it from every
// subsequent read.
func (r *userRepository) Deactivate(ctx context.Context, id string) error {
	const sql = `UPDATE users SET active=false, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, sql, id)
	if err != nil {
		return apperrors.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
