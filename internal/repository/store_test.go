package repository

import (
	"testing"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/query"
)

func TestBaseClausesHideSecretTours(t *testing.T) {
	store := NewSQLStore[domain.Tour](nil, TourDescriptor())

	args := []any{"tour-1"}
	clauses := store.baseClauses(&args)

	if len(clauses) != 1 || clauses[0] != "secret = $2" {
		t.Fatalf("clauses = %v, want [secret = $2]", clauses)
	}
	if len(args) != 2 || args[1] != "false" {
		t.Fatalf("args = %v, want [tour-1 false]", args)
	}
}

func TestBaseClausesHideDeactivatedAccounts(t *testing.T) {
	store := NewSQLStore[domain.User](nil, UserDescriptor())

	args := []any{"user-1"}
	clauses := store.baseClauses(&args)

	if len(clauses) != 1 || clauses[0] != "active = $2" {
		t.Fatalf("clauses = %v, want [active = $2]", clauses)
	}
	if args[1] != "true" {
		t.Fatalf("args = %v, want the active filter bound to true", args)
	}
}

func TestBaseClausesSkipUnknownColumns(t *testing.T) {
	desc := Descriptor{
		Table:    "things",
		Resource: "thing",
		Columns:  query.NewColumnSet(query.Column{Name: "id", SQL: "id"}),
		BaseFilter: []query.Condition{
			{Field: "vanished", Op: query.OpEq, Value: "true"},
		},
	}
	store := NewSQLStore[domain.Tour](nil, desc)

	args := []any{"thing-1"}
	if clauses := store.baseClauses(&args); len(clauses) != 0 {
		t.Fatalf("clauses = %v, want none for a column outside the set", clauses)
	}
	if len(args) != 1 {
		t.Fatalf("args grew to %v despite no rendered clause", args)
	}
}

func TestWritableSubsetLowercasesEmail(t *testing.T) {
	store := NewSQLStore[domain.User](nil, UserDescriptor())

	subset := store.writableSubset(map[string]any{
		"name":     "Ada",
		"email":    "Ada@Example.com",
		"password": "should-never-pass",
	})

	if got := subset["email"]; got != "ada@example.com" {
		t.Fatalf("email = %v, want the lowercased form", got)
	}
	if got := subset["name"]; got != "Ada" {
		t.Fatalf("name = %v, want Ada untouched", got)
	}
	if _, ok := subset["password"]; ok {
		t.Fatal("password leaked through the writable whitelist")
	}
}

func TestWritableSubsetNormalizeIgnoresNonStrings(t *testing.T) {
	store := NewSQLStore[domain.User](nil, UserDescriptor())

	subset := store.writableSubset(map[string]any{"email": 42})
	if got := subset["email"]; got != 42 {
		t.Fatalf("email = %v, want the value passed through unchanged", got)
	}
}
