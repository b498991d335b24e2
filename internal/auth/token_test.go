package auth

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

func TestGenerateAndParseRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("user-123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining < 59*time.Minute {
		t.Fatalf("expiry too close: %v", remaining)
	}

	subject, issuedAt, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if subject != "user-123" {
		t.Fatalf("subject = %q", subject)
	}
	if issuedAt.IsZero() || issuedAt.After(time.Now().Add(time.Minute)) {
		t.Fatalf("implausible issuedAt: %v", issuedAt)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken("user-123")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, _, err = NewTokenManager("secret-b", 60).ParseToken(token)
	assertCode(t, err, apperrors.CodeInvalidToken)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, _, err := NewTokenManager("secret", 60).ParseToken("not.a.token")
	assertCode(t, err, apperrors.CodeInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	token := signedToken(t, "secret", "user-123", time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))

	_, _, err := NewTokenManager("secret", 60).ParseToken(token)
	assertCode(t, err, apperrors.CodeExpiredToken)
}

func TestParseRejectsMissingSubject(t *testing.T) {
	token := signedToken(t, "secret", "", time.Now(), time.Now().Add(time.Hour))

	_, _, err := NewTokenManager("secret", 60).ParseToken(token)
	assertCode(t, err, apperrors.CodeInvalidToken)
}

func signedToken(t *testing.T, secret, subject string, issuedAt, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var domainErr *apperrors.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("not a DomainError: %v", err)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
}
