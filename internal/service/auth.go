// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/metrics"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/repository"
)

// Service errors.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// dummyPassword is hashed once at construction; unknown-user logins verify
// against it so they cost the same as a wrong password.
const dummyPassword = "authgate-timing-equalizer"

// UserStore is the credential store the service depends on.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// TokenIssuer mints bearer tokens.
type TokenIssuer interface {
	Issue(username string) (*auth.IssuedToken, error)
}

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// Tokens issues and validates bearer tokens.
type Tokens interface {
	TokenIssuer
	TokenValidator
}

// AuthService handles signup, login and token authentication.
// It holds only immutable collaborators and is safe for concurrent use.
type AuthService struct {
	store     UserStore
	hasher    auth.PasswordHasher
	tokens    Tokens
	metrics   metrics.Recorder
	dummyHash string
}

// NewAuthService creates a new AuthService.
func NewAuthService(store UserStore, hasher auth.PasswordHasher, tokens Tokens, recorder metrics.Recorder) (*AuthService, error) {
	if store == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth service requires a store, hasher and token manager")
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dummy hash: %w", err)
	}

	return &AuthService{
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   recorder,
		dummyHash: dummyHash,
	}, nil
}

// SignupInput defines input for registering a user.
type SignupInput struct {
	Username string
	Password string
}

// LoginInput defines input for exchanging credentials for a token.
type LoginInput struct {
	Username string
	Password string
}

// Signup registers a new user.
func (s *AuthService) Signup(ctx context.Context, input SignupInput) error {
	err := s.signup(ctx, input)
	s.metrics.IncSignup(signupStatus(err))
	return err
}

func (s *AuthService) signup(ctx context.Context, input SignupInput) error {
	username := model.NormalizeUsername(input.Username)
	if err := model.ValidateUsername(username); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if err := model.ValidatePassword(input.Password); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	_, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return ErrUsernameTaken
	case !errors.Is(err, repository.ErrUserNotFound):
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	hash, err := s.hash(input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %w", ErrInvalidInput, model.ErrPasswordTooLong)
		}
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same name.
		if errors.Is(err, repository.ErrUsernameExists) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	return nil
}

// Login verifies credentials and issues a bearer token.
// Unknown users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*auth.IssuedToken, error) {
	token, err := s.login(ctx, input)
	s.metrics.IncLogin(loginStatus(err))
	return token, err
}

func (s *AuthService) login(ctx context.Context, input LoginInput) (*auth.IssuedToken, error) {
	username := model.NormalizeUsername(input.Username)
	// No stored password can be empty or longer than the signup limit.
	if username == "" || model.ValidatePassword(input.Password) != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.verify(input.Password, s.dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if !s.verify(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return token, nil
}

// Authenticate validates a bearer token and returns the caller's identity.
// Every failure is reported as ErrInvalidToken wrapping the cause.
func (s *AuthService) Authenticate(_ context.Context, rawToken string) (*model.AuthContext, error) {
	claims, err := s.tokens.Validate(rawToken)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			s.metrics.IncTokenValidation(metrics.StatusExpiredToken)
		} else {
			s.metrics.IncTokenValidation(metrics.StatusInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	s.metrics.IncTokenValidation(metrics.StatusSuccess)

	authCtx := &model.AuthContext{
		Username: claims.Username(),
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		authCtx.ExpiresAt = claims.ExpiresAt.Time
	}
	return authCtx, nil
}

// InvalidInputReason returns a client-safe description of a validation failure.
func InvalidInputReason(err error) string {
	for _, reason := range []error{
		model.ErrUsernameEmpty,
		model.ErrUsernameTooLong,
		model.ErrUsernameInvalid,
		model.ErrPasswordEmpty,
		model.ErrPasswordTooLong,
	} {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return ErrInvalidInput.Error()
}

func (s *AuthService) hash(password string) (string, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveHashDuration(metrics.HashOpHash, time.Since(start)) }()
	return s.hasher.Hash(password)
}

func (s *AuthService) verify(password, encodedHash string) bool {
	start := time.Now()
	defer func() { s.metrics.ObserveHashDuration(metrics.HashOpVerify, time.Since(start)) }()
	return s.hasher.Verify(password, encodedHash)
}

func signupStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, ErrInvalidInput):
		return metrics.StatusInvalidInput
	case errors.Is(err, ErrUsernameTaken):
		return metrics.StatusUsernameTaken
	default:
		return metrics.StatusError
	}
}

func loginStatus(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.Is(err, ErrInvalidCredentials):
		return metrics.StatusInvalidCredentials
	default:
		return metrics.StatusError
	}
}
