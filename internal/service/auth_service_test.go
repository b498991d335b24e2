package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/tour-booking-service/internal/auth"
	"github.com/spec-kit/tour-booking-service/internal/config"
	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/mail"
	apperrors "github.com/spec-kit/tour-booking-service/pkg/util"
)

type memoryUserRepo struct {
	byID    map[string]*domain.User
	byEmail map[string]*domain.User

	resetTokenHash string
	resetExpires   time.Time
	resetUserID    string

	setResetCalls   int
	clearResetCalls int
}

func newMemoryUserRepo(users ...*domain.User) *memoryUserRepo {
	repo := &memoryUserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
	for _, user := range users {
		repo.byID[user.ID] = user
		repo.byEmail[strings.ToLower(user.Email)] = user
	}
	return repo
}

func (r *memoryUserRepo) Create(_ context.Context, user *domain.User) error {
	user.ID = "generated-id"
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.byID[user.ID] = user
	r.byEmail[strings.ToLower(user.Email)] = user
	return nil
}

func (r *memoryUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memoryUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return user, nil
}

func (r *memoryUserRepo) UpdateProfile(_ context.Context, id string, fields map[string]any) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if name, ok := fields["name"].(string); ok {
		user.Name = name
	}
	if email, ok := fields["email"].(string); ok {
		// Stored verbatim and indexed verbatim, matching the column the
		// lowercased login lookup compares against.
		delete(r.byEmail, strings.ToLower(user.Email))
		user.Email = email
		r.byEmail[email] = user
	}
	if photo, ok := fields["photo"].(string); ok {
		user.Photo = photo
	}
	return user, nil
}

func (r *memoryUserRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) error {
	user, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	stamp := changedAt
	user.PasswordChangedAt = &stamp
	r.resetTokenHash = ""
	return nil
}

func (r *memoryUserRepo) SetResetToken(_ context.Context, id, tokenHash string, expires time.Time) error {
	if _, ok := r.byID[id]; !ok {
		return pgx.ErrNoRows
	}
	r.setResetCalls++
	r.resetTokenHash = tokenHash
	r.resetExpires = expires
	r.resetUserID = id
	return nil
}

func (r *memoryUserRepo) GetByResetToken(_ context.Context, tokenHash string) (*domain.User, error) {
	if r.resetTokenHash == "" || r.resetTokenHash != tokenHash || time.Now().After(r.resetExpires) {
		return nil, pgx.ErrNoRows
	}
	return r.byID[r.resetUserID], nil
}

func (r *memoryUserRepo) ClearResetToken(_ context.Context, id string) error {
	r.clearResetCalls++
	r.resetTokenHash = ""
	return nil
}

func (r *memoryUserRepo) Deactivate(_ context.Context, id string) error {
	user, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Active = false
	return nil
}

// capturingSender records outgoing mail; fail makes every send error out.
type capturingSender struct {
	sent []mail.Message
	fail bool
}

func (s *capturingSender) Send(_ context.Context, msg mail.Message) error {
	if s.fail {
		return errors.New("smtp connection refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		App: config.AppConfig{PublicURL: "http://localhost:8080"},
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			PasswordResetTTLMinutes: 10,
			BcryptCost:              4, // minimum cost keeps the suite fast
		},
	}
}

func newTestAuthService(repo *memoryUserRepo, sender *capturingSender) *AuthService {
	return NewAuthService(testConfig(), AuthDependencies{
		UserRepo: repo,
		Mailer:   sender,
		Logger:   zap.NewNop(),
	})
}

func seedUser(t *testing.T, repo *memoryUserRepo, id, email, password string) *domain.User {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &domain.User{ID: id, Name: "Test User", Email: email, Role: domain.RoleUser, PasswordHash: hash, Active: true}
	repo.byID[id] = user
	repo.byEmail[strings.ToLower(email)] = user
	return user
}

func TestSignupForcesUserRoleAndIssuesToken(t *testing.T) {
	repo := newMemoryUserRepo()
	sender := &capturingSender{}
	svc := newTestAuthService(repo, sender)

	user, token, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("role = %s, want user", user.Role)
	}
	if token == "" {
		t.Fatal("no token issued")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("welcome mails = %d, want 1", len(sender.sent))
	}

	subject, _, err := svc.TokenManager().ParseToken(token)
	if err != nil || subject != user.ID {
		t.Fatalf("token subject = %q (%v), want %q", subject, err, user.ID)
	}
}

func TestSignupSurvivesWelcomeMailFailure(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := newTestAuthService(repo, &capturingSender{fail: true})

	_, token, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("signup must not fail on mail delivery: %v", err)
	}
	if token == "" {
		t.Fatal("no token issued")
	}
}

func TestSignupRejectsShortPassword(t *testing.T) {
	svc := newTestAuthService(newMemoryUserRepo(), &capturingSender{})

	_, _, _, err := svc.Signup(context.Background(), "Ada", "ada@example.com", "short")
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestLoginAcceptsCorrectCredentials(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	user, token, _, err := svc.Login(context.Background(), "ada@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != "u1" || token == "" {
		t.Fatalf("user = %+v, token = %q", user, token)
	}
}

func TestLoginRejectsWrongPasswordAndUnknownEmailAlike(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	_, _, _, wrongPass := svc.Login(context.Background(), "ada@example.com", "wrong")
	assertCode(t, wrongPass, apperrors.CodeNotAuthenticated)

	_, _, _, unknown := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assertCode(t, unknown, apperrors.CodeNotAuthenticated)

	// Both failures carry the same message so the response does not reveal
	// which part was wrong.
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPass.Error(), unknown.Error())
	}
}

func TestForgotPasswordMailsPlaintextTokenStoresHash(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	sender := &capturingSender{}
	svc := newTestAuthService(repo, sender)

	if err := svc.ForgotPassword(context.Background(), "ada@example.com"); err != nil {
		t.Fatalf("forgot password: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("mails = %d, want 1", len(sender.sent))
	}
	if repo.resetTokenHash == "" {
		t.Fatal("no reset token stored")
	}
	// The stored value must be the digest, never the mailed plaintext.
	if strings.Contains(sender.sent[0].Body, repo.resetTokenHash) {
		t.Fatal("mail leaked the stored hash")
	}
}

func TestForgotPasswordRollsBackTokenOnMailFailure(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{fail: true})

	err := svc.ForgotPassword(context.Background(), "ada@example.com")
	assertCode(t, err, apperrors.CodeDependencyFailure)

	if repo.setResetCalls != 1 {
		t.Fatalf("set calls = %d, want 1", repo.setResetCalls)
	}
	if repo.clearResetCalls != 1 {
		t.Fatalf("clear calls = %d, want 1 (compensating action)", repo.clearResetCalls)
	}
	if repo.resetTokenHash != "" {
		t.Fatal("half-committed reset token left behind")
	}
}

func TestForgotPasswordUnknownEmailIsNotFound(t *testing.T) {
	svc := newTestAuthService(newMemoryUserRepo(), &capturingSender{})
	err := svc.ForgotPassword(context.Background(), "ghost@example.com")
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestResetPasswordConsumesTokenAndLogsIn(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	plaintext := "some-reset-token"
	sum := sha256.Sum256([]byte(plaintext))
	repo.resetTokenHash = hex.EncodeToString(sum[:])
	repo.resetExpires = time.Now().Add(10 * time.Minute)
	repo.resetUserID = "u1"

	user, token, _, err := svc.ResetPassword(context.Background(), plaintext, "brand-new-password")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if user.ID != "u1" || token == "" {
		t.Fatalf("user = %+v, token = %q", user, token)
	}

	// The new password must work for login.
	if _, _, _, err := svc.Login(context.Background(), "ada@example.com", "brand-new-password"); err != nil {
		t.Fatalf("login with rotated password: %v", err)
	}
	// And the token must be consumed.
	_, _, _, err = svc.ResetPassword(context.Background(), plaintext, "another-password")
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	plaintext := "stale-token"
	sum := sha256.Sum256([]byte(plaintext))
	repo.resetTokenHash = hex.EncodeToString(sum[:])
	repo.resetExpires = time.Now().Add(-time.Minute)
	repo.resetUserID = "u1"

	_, _, _, err := svc.ResetPassword(context.Background(), plaintext, "brand-new-password")
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestUpdatePasswordRequiresCurrentPassword(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	_, _, err := svc.UpdatePassword(context.Background(), "u1", "wrong-current", "brand-new-password")
	assertCode(t, err, apperrors.CodeNotAuthenticated)

	token, _, err := svc.UpdatePassword(context.Background(), "u1", "correct-horse", "brand-new-password")
	if err != nil {
		t.Fatalf("update password: %v", err)
	}
	if token == "" {
		t.Fatal("no fresh token issued")
	}
}

func TestRotatedPasswordBackdatesChangeStamp(t *testing.T) {
	repo := newMemoryUserRepo()
	user := seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	token, _, err := svc.UpdatePassword(context.Background(), "u1", "correct-horse", "brand-new-password")
	if err != nil {
		t.Fatalf("update password: %v", err)
	}

	// The freshly issued token must survive the stale-credential check.
	_, issuedAt, err := svc.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if user.ChangedPasswordAfter(issuedAt) {
		t.Fatal("fresh token rejected as stale")
	}
}

func TestUpdateProfileRejectsPasswordField(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	_, err := svc.UpdateProfile(context.Background(), "u1", map[string]any{"password": "sneaky"})
	assertCode(t, err, apperrors.CodeValidationFailed)
}

func TestUpdateProfileAppliesWhitelistedFieldsOnly(t *testing.T) {
	repo := newMemoryUserRepo()
	user := seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	updated, err := svc.UpdateProfile(context.Background(), "u1", map[string]any{
		"name": "Ada Lovelace",
		"role": "admin",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Name != "Ada Lovelace" {
		t.Fatalf("name = %q", updated.Name)
	}
	if user.Role != domain.RoleUser {
		t.Fatalf("role escalated to %s", user.Role)
	}
}

func TestUpdateProfileLowercasesEmail(t *testing.T) {
	repo := newMemoryUserRepo()
	seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	updated, err := svc.UpdateProfile(context.Background(), "u1", map[string]any{
		"email": "Ada.Lovelace@Example.com",
	})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Email != "ada.lovelace@example.com" {
		t.Fatalf("email = %q, want the lowercased form", updated.Email)
	}

	// The stored form has to keep matching the lowercased login lookup.
	if _, _, _, err := svc.Login(context.Background(), "ada.lovelace@example.com", "correct-horse"); err != nil {
		t.Fatalf("login after email change: %v", err)
	}
}

func TestDeactivateAccountSoftDeletes(t *testing.T) {
	repo := newMemoryUserRepo()
	user := seedUser(t, repo, "u1", "ada@example.com", "correct-horse")
	svc := newTestAuthService(repo, &capturingSender{})

	if err := svc.DeactivateAccount(context.Background(), "u1"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if user.Active {
		t.Fatal("account still active")
	}
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
