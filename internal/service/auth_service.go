package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tour-booking-service/internal/auth"
	"github.com/spec-kit/tour-booking-service/internal/config"
	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/events"
	"github.com/spec-kit/tour-booking-service/internal/mail"
	"github.com/spec-kit/tour-booking-service/internal/repository"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

// AuthService coordinates signup, login, password and profile flows.
type AuthService struct {
	users      repository.UserRepository
	mailer     mail.Sender
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	publicURL  string
}

// AuthDependencies encapsulates collaborator requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Mailer     mail.Sender
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		mailer:     deps.Mailer,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
		resetTTL:   time.Duration(cfg.Auth.PasswordResetTTLMinutes) * time.Minute,
		publicURL:  cfg.App.PublicURL,
	}
}

// Signup creates a new account with the user role and logs it in. The
// welcome mail is best effort: a delivery failure never fails the signup.
func (s *AuthService) Signup(ctx context.Context, name, email, password string) (*domain.User, string, time.Time, error) {
	if name == "" || email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if len(password) < 8 {
		return nil, "", time.Time{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		Photo:        "default.jpg",
		Role:         domain.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", time.Time{}, err
	}

	if err := s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Welcome to the Tours family!",
		Body:    fmt.Sprintf("Hi %s, welcome aboard! Visit %s/me to complete your profile.", user.Name, s.publicURL),
	}); err != nil {
		s.logger.Warn("welcome mail failed", zap.String("user_id", user.ID), zap.Error(err))
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventUserSignedUp,
			UserID:    user.ID,
			Timestamp: time.Now(),
			Payload:   events.UserSignedUpPayload{Email: user.Email, Name: user.Name},
		})
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	if email == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewValidationError("please provide email and password", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewNotAuthenticated("incorrect email or password")
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewNotAuthenticated("incorrect email or password")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// ForgotPassword stores a hashed reset token and mails the plaintext one.
// If the mail cannot be delivered the stored token is cleared before the
// failure is returned, so a half-committed token never remains valid.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.NewValidationError("please provide an email address", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user with this email address", nil)
		}
		return err
	}

	resetToken := uuid.NewString()
	expires := time.Now().Add(s.resetTTL)
	if err := s.users.SetResetToken(ctx, user.ID, hashResetToken(resetToken), expires); err != nil {
		return apperrors.MapError(err)
	}

	resetURL := fmt.Sprintf("%s/api/v1/users/reset-password/%s", s.publicURL, resetToken)
	if err := s.mailer.Send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Your password reset token (valid for 10 minutes)",
		Body:    fmt.Sprintf("Forgot your password? Submit a new one at %s. If you didn't, ignore this mail.", resetURL),
	}); err != nil {
		if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
			s.logger.Error("failed to clear reset token after mail failure",
				zap.String("user_id", user.ID), zap.Error(clearErr))
		}
		return apperrors.NewDependencyFailure("mail delivery", err)
	}
	return nil
}

// ResetPassword consumes an unexpired reset token, sets the new password
// and logs the user in. The credential-change timestamp revokes every token
// issued before this moment.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) (*domain.User, string, time.Time, error) {
	if len(newPassword) < 8 {
		return nil, "", time.Time{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	user, err := s.users.GetByResetToken(ctx, hashResetToken(resetToken))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewValidationError("token is invalid or has expired", nil)
		}
		return nil, "", time.Time{}, err
	}

	if err := s.rotatePassword(ctx, user.ID, newPassword); err != nil {
		return nil, "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// UpdatePassword verifies the current password before rotating to a new one
// and re-issues a token.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (string, time.Time, error) {
	if len(newPassword) < 8 {
		return "", time.Time{}, apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return "", time.Time{}, apperrors.NewNotAuthenticated("your current password is wrong")
	}

	if err := s.rotatePassword(ctx, userID, newPassword); err != nil {
		return "", time.Time{}, err
	}

	token, exp, err := s.tokenMgr.GenerateToken(userID)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}

// UpdateProfile applies the name/email/photo subset of a payload to the
// caller's own account. Password changes are rejected here.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*domain.User, error) {
	if _, ok := fields["password"]; ok {
		return nil, apperrors.NewValidationError("this route is not for password updates, use /update-password", nil)
	}

	allowed := make(map[string]any, 3)
	for _, name := range []string{"name", "email", "photo"} {
		value, ok := fields[name]
		if !ok {
			continue
		}
		// Logins compare the lowercased email, so updates store it that way.
		if name == "email" {
			if str, ok := value.(string); ok {
				value = strings.ToLower(str)
			}
		}
		allowed[name] = value
	}
	if len(allowed) == 0 {
		return nil, apperrors.NewValidationError("nothing to update", nil)
	}
	return s.users.UpdateProfile(ctx, userID, allowed)
}

// DeactivateAccount soft-deletes the caller's own account.
func (s *AuthService) DeactivateAccount(ctx context.Context, userID string) error {
	return apperrors.MapError(s.users.Deactivate(ctx, userID))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// rotatePassword hashes and stores the new password. The changed-at stamp is
// backdated one second so a token issued in the same instant still passes
// the stale-credential check.
func (s *AuthService) rotatePassword(ctx context.Context, userID, newPassword string) error {
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	changedAt := time.Now().Add(-time.Second)
	return apperrors.MapError(s.users.UpdatePassword(ctx, userID, hash, changedAt))
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
