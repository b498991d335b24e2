package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/tour-booking-service/internal/query"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// Store is the capability set the handler factory is generic over. Every
// operation constructs fresh query state from its inputs; implementations
// hold no per-request state.
type Store[T any] interface {
	Find(ctx context.Context, spec query.Spec) ([]T, error)
	FindByID(ctx context.Context, id string) (*T, error)
	Create(ctx context.Context, fields map[string]any) (*T, error)
	FindByIDAndUpdate(ctx context.Context, id string, fields map[string]any) (*T, error)
	FindByIDAndDelete(ctx context.Context, id string) error
}

// Descriptor configures a SQLStore for one resource type.
type Descriptor struct {
	Table    string
	Resource string
	Columns  query.ColumnSet

	// Writable lists the exposed field names accepted from request payloads;
	// everything else in a payload is dropped. Required names must be
	// present on create.
	Writable []string
	Required []string

	// BaseFilter is composed ahead of user filters on every read and
	// delete, e.g. hiding secret tours.
	BaseFilter []query.Condition

	// Defaults supplies server-side values for create when the payload
	// omits them.
	Defaults map[string]any

	// Normalize maps field names to canonicalizers applied before every
	// write, so create and update store the same representation.
	Normalize map[string]func(any) any
}

// SQLStore is the generic pgx-backed store.
type SQLStore[T any] struct {
	pool *pgxpool.Pool
	desc Descriptor

	writable map[string]struct{}
}

// NewSQLStore builds a store from a descriptor.
func NewSQLStore[T any](pool *pgxpool.Pool, desc Descriptor) *SQLStore[T] {
	writable := make(map[string]struct{}, len(desc.Writable))
	for _, name := range desc.Writable {
		writable[name] = struct{}{}
	}
	return &SQLStore[T]{pool: pool, desc: desc, writable: writable}
}

// Find executes a specification against the resource table. The resource's
// base filter is composed ahead of the caller's conditions so it can never
// be bypassed.
func (s *SQLStore[T]) Find(ctx context.Context, spec query.Spec) ([]T, error) {
	if len(s.desc.BaseFilter) > 0 {
		conds := make([]query.Condition, 0, len(s.desc.BaseFilter)+len(spec.Conditions))
		conds = append(conds, s.desc.BaseFilter...)
		conds = append(conds, spec.Conditions...)
		spec.Conditions = conds
	}
	sql, args := spec.SelectSQL(s.desc.Table, s.desc.Columns)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	items, err := pgx.CollectRows(rows, pgx.RowToStructByNameLax[T])
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// FindByID fetches one record, honoring the base filter.
func (s *SQLStore[T]) FindByID(ctx context.Context, id string) (*T, error) {
	args := []any{id}
	where := []string{"id = $1"}
	where = append(where, s.baseClauses(&args)...)

	sql := fmt.Sprintf("SELECT * FROM %s WHERE %s", s.desc.Table, strings.Join(where, " AND "))
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound(s.desc.Resource, map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return item, nil
}

// Create inserts a record from a payload field map. Unknown and non-writable
// fields are dropped; schema-level validation (types, uniqueness, checks) is
// delegated to the database and surfaced via the error funnel.
func (s *SQLStore[T]) Create(ctx context.Context, fields map[string]any) (*T, error) {
	values := s.writableSubset(fields)
	for name, def := range s.desc.Defaults {
		if _, ok := values[name]; !ok {
			values[name] = def
		}
	}

	var missing []string
	for _, name := range s.desc.Required {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			map[string]any{"fields": missing},
		)
	}

	cols := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, name := range s.orderedWritable(values) {
		col, ok := s.desc.Columns.Lookup(name)
		if !ok {
			continue
		}
		args = append(args, values[name])
		cols = append(cols, col.SQL)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(cols) == 0 {
		return nil, apperrors.NewValidationError("empty payload", nil)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		s.desc.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return item, nil
}

// FindByIDAndUpdate applies a partial payload merge and returns the updated
// record.
func (s *SQLStore[T]) FindByIDAndUpdate(ctx context.Context, id string, fields map[string]any) (*T, error) {
	values := s.writableSubset(fields)
	if len(values) == 0 {
		return nil, apperrors.NewValidationError("no updatable fields in payload", nil)
	}

	sets := make([]string, 0, len(values)+1)
	args := make([]any, 0, len(values)+1)
	for _, name := range s.orderedWritable(values) {
		col, ok := s.desc.Columns.Lookup(name)
		if !ok {
			continue
		}
		args = append(args, values[name])
		sets = append(sets, fmt.Sprintf("%s = $%d", col.SQL, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")

	args = append(args, id)
	where := []string{fmt.Sprintf("id = $%d", len(args))}
	where = append(where, s.baseClauses(&args)...)

	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		s.desc.Table, strings.Join(sets, ", "), strings.Join(where, " AND "))
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByNameLax[T])
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound(s.desc.Resource, map[string]any{"id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return item, nil
}

// FindByIDAndDelete removes a record; deleting a missing record is NotFound.
func (s *SQLStore[T]) FindByIDAndDelete(ctx context.Context, id string) error {
	args := []any{id}
	where := []string{"id = $1"}
	where = append(where, s.baseClauses(&args)...)

	sql := fmt.Sprintf("DELETE FROM %s WHERE %s", s.desc.Table, strings.Join(where, " AND "))
	cmd, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return apperrors.MapError(err)
	}
	if cmd.RowsAffected() == 0 {
		return apperrors.NewNotFound(s.desc.Resource, map[string]any{"id": id})
	}
	return nil
}

func (s *SQLStore[T]) writableSubset(fields map[string]any) map[string]any {
	subset := make(map[string]any, len(fields))
	for name, value := range fields {
		if _, ok := s.writable[name]; !ok {
			continue
		}
		if canon, ok := s.desc.Normalize[name]; ok {
			value = canon(value)
		}
		subset[name] = value
	}
	return subset
}

// orderedWritable yields the present field names in descriptor order so the
// generated SQL is deterministic.
func (s *SQLStore[T]) orderedWritable(values map[string]any) []string {
	ordered := make([]string, 0, len(values))
	for _, name := range s.desc.Writable {
		if _, ok := values[name]; ok {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

func (s *SQLStore[T]) baseClauses(args *[]any) []string {
	clauses := make([]string, 0, len(s.desc.BaseFilter))
	for _, cond := range s.desc.BaseFilter {
		col, ok := s.desc.Columns.Lookup(cond.Field)
		if !ok {
			continue
		}
		*args = append(*args, cond.Value)
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col.SQL, len(*args)))
	}
	return clauses
}
