package query

import (
	"fmt"
	"strings"
)

// Column maps an exposed field name onto its storage column. Internal
// columns are omitted from the default projection and can only be selected
// explicitly by server-side callers.
type Column struct {
	Name     string
	SQL      string
	Internal bool
}

// ColumnSet is the whitelist of fields a resource exposes to the pipeline.
// Identifiers are only ever taken from this set, never from user input.
type ColumnSet struct {
	cols   []Column
	byName map[string]Column
}

// NewColumnSet builds a set preserving declaration order.
func NewColumnSet(cols ...Column) ColumnSet {
	byName := make(map[string]Column, len(cols))
	for _, col := range cols {
		byName[col.Name] = col
	}
	return ColumnSet{cols: cols, byName: byName}
}

// Lookup resolves an exposed field name to its column.
func (cs ColumnSet) Lookup(name string) (Column, bool) {
	col, ok := cs.byName[name]
	return col, ok
}

// Spec is a frozen, executable query specification.
type Spec struct {
	Conditions []Condition
	Include    []string
	Exclude    []string
	Sorts      []SortKey
	Page       int
	Limit      int
}

// Offset returns the number of rows to skip.
func (s Spec) Offset() int {
	page := s.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := s.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	return (page - 1) * limit
}

// SelectSQL renders the specification against a table and its column
// whitelist. Fields not present in the whitelist are skipped; values are
// always bound as numbered arguments.
func (s Spec) SelectSQL(table string, cs ColumnSet) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.projection(cs), ", "))
	b.WriteString(" FROM ")
	b.WriteString(table)

	args := make([]any, 0, len(s.Conditions))
	if where := s.whereClause(cs, &args); where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}

	if orderBy := s.orderClause(cs); orderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderBy)
	}

	limit := s.Limit
	if limit < 1 {
		limit = DefaultLimit
	}
	fmt.Fprintf(&b, " LIMIT %d OFFSET %d", limit, s.Offset())

	return b.String(), args
}

// WhereSQL renders only the predicate, for callers composing their own
// statements (deletes, aggregates).
func (s Spec) WhereSQL(cs ColumnSet) (string, []any) {
	args := make([]any, 0, len(s.Conditions))
	return s.whereClause(cs, &args), args
}

func (s Spec) projection(cs ColumnSet) []string {
	if len(s.Include) > 0 {
		projected := make([]string, 0, len(s.Include)+1)
		projected = append(projected, "id")
		for _, name := range s.Include {
			if name == "id" {
				continue
			}
			if col, ok := cs.Lookup(name); ok && !col.Internal {
				projected = append(projected, col.SQL)
			}
		}
		return projected
	}

	excluded := make(map[string]struct{}, len(s.Exclude))
	for _, name := range s.Exclude {
		excluded[name] = struct{}{}
	}

	projected := make([]string, 0, len(cs.cols)+1)
	projected = append(projected, "id")
	for _, col := range cs.cols {
		if col.Internal || col.Name == "id" {
			continue
		}
		if _, skip := excluded[col.Name]; skip {
			continue
		}
		projected = append(projected, col.SQL)
	}
	return projected
}

func (s Spec) whereClause(cs ColumnSet, args *[]any) string {
	clauses := make([]string, 0, len(s.Conditions))
	for _, cond := range s.Conditions {
		col, ok := cs.Lookup(cond.Field)
		if !ok {
			continue
		}
		op, ok := sqlOps[cond.Op]
		if !ok {
			continue
		}
		*args = append(*args, cond.Value)
		clauses = append(clauses, fmt.Sprintf("%s %s $%d", col.SQL, op, len(*args)))
	}
	return strings.Join(clauses, " AND ")
}

func (s Spec) orderClause(cs ColumnSet) string {
	keys := make([]string, 0, len(s.Sorts))
	for _, sk := range s.Sorts {
		col, ok := cs.Lookup(sk.Field)
		if !ok {
			continue
		}
		if sk.Desc {
			keys = append(keys, col.SQL+" DESC")
		} else {
			keys = append(keys, col.SQL+" ASC")
		}
	}
	return strings.Join(keys, ", ")
}
