// Authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// TWO WAYS TO SIGN IN:
//   - email + password: Register creates the account, Login checks the hash
//   - GitHub OAuth:     LoginOrRegisterGitHub upserts on the GitHub id
//
// Both end the same way: a JWT whose subject is the internal user id. That
// id is the partition key of every per-user collection (snippets, quota
// counter, sub-categories).

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

const (
	MinPasswordLength = 8
	MaxLoginLength    = 50
)

// errBadCredentials is deliberately vague: it never says whether the email
// or the password was wrong.
const errBadCredentials = "invalid email or password"

// AuthService handles the authentication business logic.
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

// AuthResult bundles the user record and the issued JWT together so the
// caller (the HTTP handler) can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs it in.
//
// The email is normalised to lower case so "Ada@Example.com" and
// "ada@example.com" are the same account. A taken email yields
// apperror.ErrConflict from the repository.
func (s *AuthService) Register(ctx context.Context, email, password, login string) (*AuthResult, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	login = strings.TrimSpace(login)
	if login == "" {
		// default the display name to the local part of the email
		login, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(login) > MaxLoginLength {
		return nil, apperror.ValidationFailed("login",
			fmt.Sprintf("login must be %d characters or less", MaxLoginLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		// the only input-dependent failure is bcrypt's 72-byte limit
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Login:        login,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// Login checks an email/password pair.
// Unknown emails and wrong passwords both return the same Unauthorized error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email, err := normaliseEmail(email)
	if err != nil {
		return nil, apperror.Unauthorized(errBadCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(errBadCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		s.logger.Info("failed login attempt", slog.String("userID", user.ID))
		return nil, apperror.Unauthorized(errBadCredentials)
	}

	s.logger.Info("user authenticated via password", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// WHY UPSERT (not insert + check conflict)?
// GitHub's OAuth guarantees the GitHub ID is stable and unique, so we can
// always upsert on (github_id). First login → INSERT; subsequent logins → UPDATE
// the email/avatar in case the user changed them on GitHub.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     strings.ToLower(strings.TrimSpace(ghUser.Email)),
		AvatarURL: ghUser.AvatarURL,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID. Used by /api/me.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	return user, nil
}

// ValidateToken validates a JWT string and returns the userID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}

// TokenTTL is how long issued tokens (and their cookie) live.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func normaliseEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email address is not valid")
	}
	return email, nil
}
