package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/audit"
)

// ErrInvalidLogin is returned for empty logins or passwords.
var ErrInvalidLogin = errors.New("login and password are required")

// UserService provisions application logins.
type UserService struct {
	userRepo       domain.UserRepository
	passwordHasher PasswordHasher
	tokens         *TokenService
	auditor        audit.Recorder
}

// NewUserService creates a new UserService. tokens may be nil when provider
// tokens are not reachable from the caller, as in the admin CLI.
func NewUserService(userRepo domain.UserRepository, hasher PasswordHasher, tokens *TokenService) *UserService {
	return &UserService{
		userRepo:       userRepo,
		passwordHasher: hasher,
		tokens:         tokens,
		auditor:        audit.Nop{},
	}
}

// WithAuditor sets where user provisioning is recorded.
func (s *UserService) WithAuditor(r audit.Recorder) *UserService {
	s.auditor = r
	return s
}

// CreateUser registers a new application login.
func (s *UserService) CreateUser(ctx context.Context, login, password string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidLogin
	}

	if _, err := s.userRepo.GetByLogin(ctx, login); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := s.passwordHasher.Hash(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:               uuid.NewString(),
		ApplicationLogin: login,
		PasswordHash:     hash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.Event{Action: audit.ActionUserCreate, UserID: user.ID, Login: login, Success: true})

	return user, nil
}

// EnsureUser creates the login unless it already exists.
func (s *UserService) EnsureUser(ctx context.Context, login, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByLogin(ctx, login)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	return s.CreateUser(ctx, login, password)
}

// SetPassword replaces the password of an existing login.
func (s *UserService) SetPassword(ctx context.Context, login, password string) error {
	if password == "" {
		return ErrInvalidLogin
	}

	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return err
	}

	hash, err := s.passwordHasher.Hash(password)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.UpdatedAt = time.Now().UTC()

	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Event{Action: audit.ActionPasswordChange, UserID: user.ID, Login: login, Success: true})

	return nil
}

// DeleteUser removes the login and, when reachable, its provider tokens.
func (s *UserService) DeleteUser(ctx context.Context, login string) error {
	user, err := s.userRepo.GetByLogin(ctx, login)
	if err != nil {
		return err
	}

	if s.tokens != nil {
		if err := s.tokens.RemoveAllTokens(ctx, user.ID); err != nil {
			return err
		}
	}

	if err := s.userRepo.Delete(ctx, user.ID); err != nil {
		return err
	}
	s.auditor.Record(ctx, audit.Event{Action: audit.ActionUserDelete, UserID: user.ID, Login: login, Success: true})

	return nil
}

// ListUsers returns every registered login.
func (s *UserService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.List(ctx)
}
