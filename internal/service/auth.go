package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/obsidian/internal/apperror"
	"github.com/sakif/obsidian/internal/auth"
	"github.com/sakif/obsidian/internal/model"
	"github.com/sakif/obsidian/internal/repository"
)

// Validation limits for registration input.
const (
	MaxEmailLength = 254
	MaxNameLength  = 100
)

// errInvalidCredentials is shared by "no such email" and "wrong password"
// so a caller cannot tell the two apart.
var errInvalidCredentials = apperror.Unauthorized("Invalid credentials")

// AuthService handles the authentication business logic. It sits between
// the HTTP handlers and the identity store:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// KEY RESPONSIBILITIES:
//   - Validate and normalise registration input, store a bcrypt digest
//   - Check credentials and issue a 1-hour access token
//   - Resolve a presented token back to a live user
//
// It never returns model.User to its callers, only model.PublicUser, so
// the password digest cannot escape this package.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users      repository.UserRepository  → read/write user records
//   - tokens     *auth.TokenService         → generate/validate JWTs
//   - passwords  *auth.PasswordService      → bcrypt hashing
//   - logger     *slog.Logger               → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult is returned by Login: the issued JWT and who it belongs to.
type AuthResult struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// NormalizeEmail trims and lower-cases an email address.
// Registration and login both go through it, so "Alice@X.com " and
// "alice@x.com" are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new account.
//
// Rules:
//   - email: normalised, must contain "@", at most MaxEmailLength bytes
//   - password: 1 to auth.MaxPasswordBytes bytes, stored only as a bcrypt digest
//   - name: trimmed, required, at most MaxNameLength bytes
//
// A duplicate email surfaces as apperror.ErrConflict from the repository.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.PublicUser, error) {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)

	switch {
	case email == "":
		return nil, apperror.ValidationFailed("email", "email is required")
	case !strings.Contains(email, "@") || strings.HasPrefix(email, "@") || strings.HasSuffix(email, "@"):
		return nil, apperror.ValidationFailed("email", "invalid email format")
	case len(email) > MaxEmailLength:
		return nil, apperror.ValidationFailed("email",
			fmt.Sprintf("email must be %d characters or less", MaxEmailLength))
	case password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	case len(password) > auth.MaxPasswordBytes:
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d bytes or less", auth.MaxPasswordBytes))
	case name == "":
		return nil, apperror.ValidationFailed("name", "name is required")
	case len(name) > MaxNameLength:
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}

	digest, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{Email: email, Name: name, PasswordHash: digest}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to create user", slog.String("error", err.Error()))
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.Int64("userID", user.ID))

	public := user.Public()
	return &public, nil
}

// Login checks email and password and issues an access token.
//
// Unknown email and wrong password return the same error, and the unknown
// email path still spends one bcrypt comparison, so neither the response nor
// its timing reveals which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: loading user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("login failed", slog.Int64("userID", user.ID))
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("service/auth: verifying password: %w", err)
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}

	s.logger.Info("user logged in", slog.Int64("userID", user.ID))

	return &AuthResult{Token: token, User: user.Public()}, nil
}

// Verify validates tokenStr and returns the user it was issued to.
// A bad token wraps apperror.ErrUnauthorized; a token for a deleted user
// returns apperror.ErrNotFound.
func (s *AuthService) Verify(ctx context.Context, tokenStr string) (*model.PublicUser, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}
	return s.CurrentUser(ctx, userID)
}

// CurrentUser returns the public summary of an authenticated user.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*model.PublicUser, error) {
	if userID <= 0 {
		return nil, apperror.ValidationFailed("id", "user id must be positive")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", userID, err)
	}

	public := user.Public()
	return &public, nil
}
