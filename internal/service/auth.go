// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT)
//
// KEY RESPONSIBILITIES:
//   - Register and log in with email + password, issuing a 30-day token
//   - Verify a token and re-resolve the user it names
//   - Keep every auth rule in one place, away from HTTP concerns

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/lumi/internal/apperror"
	"github.com/sakif/lumi/internal/auth"
	"github.com/sakif/lumi/internal/model"
	"github.com/sakif/lumi/internal/repository"
)

// AuthService handles registration, login and token verification.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users   repository.UserRepository → read/write user records
//   - tokens  *auth.TokenService        → sign/verify JWTs
//   - logger  *slog.Logger              → structured logging
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult is returned by Register and Login. User is the public
// projection, so the password hash never leaves this layer.
type AuthResult struct {
	Token string           `json:"token"`
	User  model.PublicUser `json:"user"`
}

// VerifyResult is returned by Verify. Valid is always true on success; a bad
// token is reported as an error instead.
type VerifyResult struct {
	Valid bool             `json:"valid"`
	User  model.PublicUser `json:"user"`
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

// Register creates a user and returns a token for it.
//
// A duplicate username or email is reported as apperror.ErrConflict by the
// repository's unique constraints. No row is written in that case.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" || email == "" || in.Password == "" {
		return nil, apperror.ValidationFailed("", "Username, email and password required")
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: auth.Digest(in.Password),
		FullName:     strings.TrimSpace(in.FullName),
		Role:         model.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", username, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Login authenticates by email and password.
//
// The lookup matches email AND digest in a single query, so an unknown email
// and a wrong password produce the same apperror.ErrInvalidCredentials.
// There is no lockout.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("", "Email and password required")
	}

	user, err := s.users.GetByCredentials(ctx, email, auth.Digest(password))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.Debug("login rejected", slog.String("email", email))
			return nil, apperror.InvalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up credentials: %w", err)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// Verify checks the token and re-fetches the user it names.
//
// The claims are only a hint: role and profile may have changed since the
// token was issued, so the response always carries the current row.
// A deleted user yields apperror.ErrUserNotFound.
func (s *AuthService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperror.ValidationFailed("token", "Token required")
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.CurrentUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Valid: true, User: user.Public()}, nil
}

// CurrentUser loads the user behind an already-verified identity.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.UserNotFound(userID)
		}
		return nil, fmt.Errorf("service/auth: loading user %s: %w", userID, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %s: %w", user.ID, err)
	}
	return &AuthResult{Token: token, User: user.Public()}, nil
}
