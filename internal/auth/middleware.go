package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/repository"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

const principalKey = "auth_principal"

// CookieName holds the access token for browser clients.
const CookieName = "jwt"

// Principal represents the authenticated caller for the duration of one
// request.
type Principal struct {
	User *domain.User
	Role domain.Role
}

// Middleware establishes identity ahead of handler execution: token
// extraction, verification, principal resolution and the stale-credential
// check, rejecting at the first failed step.
type Middleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewMiddleware constructs the auth gate.
func NewMiddleware(tokens *TokenManager, users repository.UserRepository) *Middleware {
	return &Middleware{tokens: tokens, users: users}
}

// Protect enforces authentication for protected routes.
func (m *Middleware) Protect(c *fiber.Ctx) error {
	principal, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(principalKey, principal)
	return c.Next()
}

// Optional resolves a principal when a valid token is present but lets the
// request proceed anonymously on any failure. Used by routes that
// personalize output without requiring login.
func (m *Middleware) Optional(c *fiber.Ctx) error {
	if principal, err := m.resolve(c); err == nil {
		c.Locals(principalKey, principal)
	}
	return c.Next()
}

func (m *Middleware) resolve(c *fiber.Ctx) (*Principal, error) {
	token := extractToken(c)
	if token == "" {
		return nil, apperrors.NewNotAuthenticated("you are not logged in, please log in to get access")
	}

	userID, issuedAt, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, err
	}

	user, err := m.users.GetByID(c.Context(), userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewPrincipalGone()
		}
		return nil, apperrors.MapError(err)
	}

	if user.ChangedPasswordAfter(issuedAt) {
		return nil, apperrors.NewStaleCredentials()
	}

	if !user.Role.Valid() {
		return nil, apperrors.NewForbidden("your account role is not recognized")
	}

	return &Principal{User: user, Role: user.Role}, nil
}

// extractToken reads the bearer credential from the Authorization header,
// falling back to the jwt cookie. A non-Bearer header (for example Basic
// credentials aimed at a proxy) does not mask a valid cookie.
func extractToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return c.Cookies(CookieName)
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
