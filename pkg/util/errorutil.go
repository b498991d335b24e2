package util

import (
	"errors"
	"fmt"
	"net/http"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes used across the service.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidationFailed  = "VALIDATION_FAILED"
	CodeNotAuthenticated  = "NOT_AUTHENTICATED"
	CodeInvalidToken      = "INVALID_TOKEN"
	CodeExpiredToken      = "EXPIRED_TOKEN"
	CodeStaleCredentials  = "STALE_CREDENTIALS"
	CodePrincipalGone     = "PRINCIPAL_GONE"
	CodeForbidden         = "FORBIDDEN"
	CodeDependencyFailure = "DEPENDENCY_FAILURE"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors. Operational errors are
// expected outcomes whose message is safe to return to the client verbatim;
// everything else surfaces as a generic 500 while the cause is logged
// server-side only.
type DomainError struct {
	Code        string
	Message     string
	HTTPStatus  int
	Operational bool
	Details     map[string]any
	Err         error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs an operational DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Operational: true, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidationFailed, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewNotAuthenticated(message string) error {
	return NewDomainError(CodeNotAuthenticated, message, http.StatusUnauthorized, nil)
}

func NewInvalidToken() error {
	return NewDomainError(CodeInvalidToken, "invalid token, please log in again", http.StatusUnauthorized, nil)
}

func NewExpiredToken() error {
	return NewDomainError(CodeExpiredToken, "your token has expired, please log in again", http.StatusUnauthorized, nil)
}

func NewStaleCredentials() error {
	return NewDomainError(CodeStaleCredentials, "credentials changed recently, please log in again", http.StatusUnauthorized, nil)
}

func NewPrincipalGone() error {
	return NewDomainError(CodePrincipalGone, "the account belonging to this token no longer exists", http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewDependencyFailure marks an external collaborator (mail, payment) as
// unavailable. Operational: the client may retry.
func NewDependencyFailure(dependency string, err error) error {
	return &DomainError{
		Code:        CodeDependencyFailure,
		Message:     fmt.Sprintf("%s is currently unavailable, try again later", dependency),
		HTTPStatus:  http.StatusServiceUnavailable,
		Operational: true,
		Err:         err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Postgres error class for unique/constraint violations.
const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgNotNull         = "23502"
	pgForeignKey      = "23503"
	pgInvalidText     = "22P02"
)

// ToDomainError is the single funnel converting storage, token and generic
// errors into DomainError. Already-classified operational errors pass
// through unchanged.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return NewValidationError("duplicate field value, please use another value", map[string]any{
				"constraint": pgErr.ConstraintName,
			}).(*DomainError)
		case pgCheckViolation, pgNotNull:
			return NewValidationError("invalid input data", map[string]any{
				"constraint": pgErr.ConstraintName,
			}).(*DomainError)
		case pgForeignKey:
			return NewValidationError("referenced resource does not exist", map[string]any{
				"constraint": pgErr.ConstraintName,
			}).(*DomainError)
		case pgInvalidText:
			// Malformed identifiers surface as not-found, mirroring a failed
			// lookup rather than leaking driver detail.
			return NewNotFound("resource", nil).(*DomainError)
		}
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return NewExpiredToken().(*DomainError)
	}
	if errors.Is(err, jwt.ErrTokenMalformed) || errors.Is(err, jwt.ErrSignatureInvalid) ||
		errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrTokenUnverifiable) {
		return NewInvalidToken().(*DomainError)
	}

	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
