// Package query translates raw request parameters into bounded SQL queries.
// Stages apply in fixed order (filter, fields, sort, paginate); each stage
// refines the accumulated specification and returns the pipeline for
// chaining.
package query

import (
	"sort"
	"strconv"
	"strings"
)

// Reserved parameter names never participate in the filter predicate.
var reservedParams = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

// Pagination defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 100
)

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var bracketOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
}

// SQL mirrors each operator in the storage engine's native syntax.
var sqlOps = map[Op]string{
	OpEq:  "=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
}

// Condition is one field constraint of the filter predicate.
type Condition struct {
	Field string
	Op    Op
	Value string
}

// SortKey is one component of a compound sort.
type SortKey struct {
	Field string
	Desc  bool
}

// Features accumulates a query specification from raw string parameters.
type Features struct {
	params map[string][]string

	base       []Condition
	conditions []Condition
	include    []string
	exclude    []string
	sorts      []SortKey
	page       int
	limit      int
}

// New starts a pipeline over the raw parameter map. Values beyond the first
// for a key are ignored, matching standard query-string semantics.
func New(params map[string][]string) *Features {
	return &Features{
		params: params,
		page:   DefaultPage,
		limit:  DefaultLimit,
	}
}

// WithBaseFilter composes always-applied conditions ahead of user filters,
// e.g. excluding secret tours or deactivated accounts. Explicit here rather
// than hidden in a query interceptor so the default stays visible and
// testable.
func (f *Features) WithBaseFilter(conds ...Condition) *Features {
	f.base = append(f.base, conds...)
	return f
}

// Filter builds the filter predicate: reserved keys are stripped, bracket
// operator suffixes (field[gte] etc.) become comparison conditions and all
// remaining keys are equality constraints.
func (f *Features) Filter() *Features {
	for key, values := range f.params {
		if len(values) == 0 {
			continue
		}
		field, op := splitOperator(key)
		if _, reserved := reservedParams[field]; reserved {
			continue
		}
		for _, value := range values {
			f.conditions = append(f.conditions, Condition{Field: field, Op: op, Value: value})
		}
	}
	// Map iteration order is random; keep the rendered SQL deterministic.
	sort.SliceStable(f.conditions, func(i, j int) bool {
		if f.conditions[i].Field != f.conditions[j].Field {
			return f.conditions[i].Field < f.conditions[j].Field
		}
		return f.conditions[i].Op < f.conditions[j].Op
	})
	return f
}

// SelectFields applies the comma-separated fields parameter as a projection.
// A leading '-' excludes a field. Without the parameter all fields minus
// internal metadata are projected.
func (f *Features) SelectFields() *Features {
	raw := f.first("fields")
	if raw == "" {
		return f
	}
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		if strings.HasPrefix(field, "-") {
			f.exclude = append(f.exclude, strings.TrimPrefix(field, "-"))
		} else {
			f.include = append(f.include, field)
		}
	}
	return f
}

// Sort applies the comma-separated sort parameter as a compound sort key in
// listed order; '-' prefixes mean descending. Defaults to newest-first.
func (f *Features) Sort() *Features {
	raw := f.first("sort")
	if raw == "" {
		f.sorts = []SortKey{{Field: "created_at", Desc: true}}
		return f
	}
	for _, key := range strings.Split(raw, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "-") {
			f.sorts = append(f.sorts, SortKey{Field: strings.TrimPrefix(key, "-"), Desc: true})
		} else {
			f.sorts = append(f.sorts, SortKey{Field: key})
		}
	}
	return f
}

// Paginate computes skip/limit from the page and limit parameters.
// Non-numeric or out-of-range values degrade to the defaults; this stage
// never fails. No upper bound is enforced on limit.
func (f *Features) Paginate() *Features {
	f.page = positiveIntOr(f.first("page"), DefaultPage)
	f.limit = positiveIntOr(f.first("limit"), DefaultLimit)
	return f
}

// Spec freezes the accumulated stages into an executable specification.
func (f *Features) Spec() Spec {
	conds := make([]Condition, 0, len(f.base)+len(f.conditions))
	conds = append(conds, f.base...)
	conds = append(conds, f.conditions...)
	return Spec{
		Conditions: conds,
		Include:    f.include,
		Exclude:    f.exclude,
		Sorts:      f.sorts,
		Page:       f.page,
		Limit:      f.limit,
	}
}

// Conditions exposes the user-supplied filter predicate (base filter
// excluded).
func (f *Features) Conditions() []Condition {
	return f.conditions
}

func (f *Features) first(key string) string {
	if values, ok := f.params[key]; ok && len(values) > 0 {
		return values[0]
	}
	return ""
}

// splitOperator recognizes the bracket form "field[op]" for the supported
// comparison suffixes; anything else is an equality constraint on the raw
// key.
func splitOperator(key string) (string, Op) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, OpEq
	}
	suffix := key[open+1 : len(key)-1]
	if op, ok := bracketOps[suffix]; ok {
		return key[:open], op
	}
	return key, OpEq
}

func positiveIntOr(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
