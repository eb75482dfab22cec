package accounts

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/R3E-Network/opxpress/internal/app/domain/user"
	"github.com/R3E-Network/opxpress/internal/app/metrics"
	"github.com/R3E-Network/opxpress/internal/app/storage"
	"github.com/R3E-Network/opxpress/internal/auth"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/validation"
)

// Credentials is the signup and login request body.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      user.User
}

// Service registers users and manages their sessions.
type Service struct {
	users  storage.UserStore
	tokens *auth.TokenIssuer
	log    *logging.Logger
}

// New constructs an accounts service.
func New(users storage.UserStore, tokens *auth.TokenIssuer, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("accounts")
	}
	return &Service{users: users, tokens: tokens, log: log}
}

// Signup creates a user with a hashed password.
func (s *Service) Signup(ctx context.Context, creds Credentials) (user.Public, error) {
	creds.Email = normalizeEmail(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return user.Public{}, err
	}

	if _, err := s.users.GetUserByEmail(ctx, creds.Email); err == nil {
		return user.Public{}, errors.Conflict("User already exists")
	} else if !stderrors.Is(err, storage.ErrNotFound) {
		return user.Public{}, errors.Internal("Failed to create user", err)
	}

	hash, err := auth.HashPassword(creds.Password)
	if err != nil {
		return user.Public{}, errors.Internal("Failed to create user", err)
	}

	created, err := s.users.CreateUser(ctx, user.User{Email: creds.Email, PasswordHash: hash})
	if stderrors.Is(err, storage.ErrConflict) {
		return user.Public{}, errors.Conflict("User already exists")
	}
	if err != nil {
		return user.Public{}, errors.Internal("Failed to create user", err)
	}

	metrics.RecordSignup()
	s.log.WithContext(ctx).WithField("new_user_id", created.ID).Info("user signed up")
	return user.Public{Email: created.Email}, nil
}

// Login checks the password and issues an access token.
func (s *Service) Login(ctx context.Context, creds Credentials) (Session, error) {
	creds.Email = normalizeEmail(creds.Email)
	if err := validation.Struct(creds); err != nil {
		return Session{}, err
	}

	u, err := s.users.GetUserByEmail(ctx, creds.Email)
	if stderrors.Is(err, storage.ErrNotFound) {
		s.loginFailed(ctx, creds.Email, "unknown email")
		return Session{}, errors.Unauthorized("Invalid credentials")
	}
	if err != nil {
		return Session{}, errors.Internal("Failed to log in", err)
	}

	ok, err := auth.ComparePassword(u.PasswordHash, creds.Password)
	if err != nil {
		return Session{}, errors.Internal("Failed to log in", err)
	}
	if !ok {
		s.loginFailed(ctx, creds.Email, "wrong password")
		return Session{}, errors.Unauthorized("Invalid credentials")
	}

	token, expires, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return Session{}, errors.Internal("Failed to log in", err)
	}

	metrics.RecordLogin(true)
	s.log.WithContext(ctx).WithField("login_user_id", u.ID).Info("user logged in")
	return Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Logout revokes token if it is still valid. Logging out without a token
// succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return errors.Internal("Failed to log out", err)
	}
	return nil
}

func (s *Service) loginFailed(ctx context.Context, email, reason string) {
	metrics.RecordLogin(false)
	s.log.LogSecurityEvent(ctx, "login_failed", map[string]interface{}{
		"email":  email,
		"reason": reason,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
