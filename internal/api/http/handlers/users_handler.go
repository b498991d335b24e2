package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/tour-booking-service/internal/api/dto"
	"github.com/spec-kit/tour-booking-service/internal/auth"
	"github.com/spec-kit/tour-booking-service/internal/service"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// UsersHandler exposes the identity endpoints and the me-scoped profile
// operations. Admin CRUD over accounts goes through the generic resource
// factory instead.
type UsersHandler struct {
	auth      *service.AuthService
	cookieTTL time.Duration
	secure    bool
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, cookieTTLDays int, secureCookies bool) *UsersHandler {
	return &UsersHandler{
		auth:      authService,
		cookieTTL: time.Duration(cookieTTLDays) * 24 * time.Hour,
		secure:    secureCookies,
	}
}

// Signup handles POST /api/v1/users/signup.
func (h *UsersHandler) Signup(c *fiber.Ctx) error {
	var req dto.SignupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Signup(c.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookie(c, token, exp)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

// Login handles POST /api/v1/users/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookie(c, token, exp)
	return c.JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

// Logout handles GET /api/v1/users/logout by expiring the cookie. The
// bearer token itself stays valid until it expires.
func (h *UsersHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"status": "success"})
}

// ForgotPassword handles POST /api/v1/users/forgot-password.
func (h *UsersHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	if err := h.auth.ForgotPassword(c.Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": "token sent to email",
	})
}

// ResetPassword handles PATCH /api/v1/users/reset-password/:token.
func (h *UsersHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, exp, err := h.auth.ResetPassword(c.Context(), c.Params("token"), req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookie(c, token, exp)
	return c.JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

// UpdatePassword handles PATCH /api/v1/users/update-password for the
// logged-in principal.
func (h *UsersHandler) UpdatePassword(c *fiber.Ctx) error {
	principal := mustPrincipal(c)

	var req dto.UpdatePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	token, exp, err := h.auth.UpdatePassword(c.Context(), principal.User.ID, req.PasswordCurrent, req.Password)
	if err != nil {
		return err
	}

	h.setAuthCookie(c, token, exp)
	return c.JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   dto.AuthResponse{Token: token, ExpiresAt: exp},
	})
}

// GetMe handles GET /api/v1/users/me. The gate already resolved the
// principal, so no further lookup is needed.
func (h *UsersHandler) GetMe(c *fiber.Ctx) error {
	principal := mustPrincipal(c)
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": principal.User},
	})
}

// UpdateMe handles PATCH /api/v1/users/me (name/email/photo only).
func (h *UsersHandler) UpdateMe(c *fiber.Ctx) error {
	principal := mustPrincipal(c)

	payload, err := parsePayload(c)
	if err != nil {
		return err
	}

	user, err := h.auth.UpdateProfile(c.Context(), principal.User.ID, payload)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"data":   fiber.Map{"user": user},
	})
}

// DeleteMe handles DELETE /api/v1/users/me with a soft delete.
func (h *UsersHandler) DeleteMe(c *fiber.Ctx) error {
	principal := mustPrincipal(c)

	if err := h.auth.DeactivateAccount(c.Context(), principal.User.ID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *UsersHandler) setAuthCookie(c *fiber.Ctx, token string, exp time.Time) {
	expires := time.Now().Add(h.cookieTTL)
	if expires.After(exp) {
		expires = exp
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secure,
	})
}

// CreateUserDisabled rejects direct account creation on the admin surface;
// accounts only come into existence through signup.
func (h *UsersHandler) CreateUserDisabled(c *fiber.Ctx) error {
	return apperrors.NewValidationError("this route is not for creating users, use /signup", nil)
}

// mustPrincipal is only called behind the auth gate.
func mustPrincipal(c *fiber.Ctx) *auth.Principal {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		panic("principal missing behind auth gate")
	}
	return principal
}
