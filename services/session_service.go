package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/audit"
	"go.pilab.hu/focusboard/internal/metrics"
)

// DefaultSessionTTL is the lifetime of an application session.
const DefaultSessionTTL = 24 * time.Hour

// SessionService binds application logins to sessions.
type SessionService struct {
	sessions SessionStore
	users    domain.UserRepository
	hasher   PasswordHasher
	tokens   *TokenService
	ttl      time.Duration
	auditor  audit.Recorder
	now      func() time.Time
}

// NewSessionService creates a SessionService. A non-positive ttl selects DefaultSessionTTL.
func NewSessionService(
	sessions SessionStore,
	users domain.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	ttl time.Duration,
) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		ttl:      ttl,
		auditor:  audit.Nop{},
		now:      time.Now,
	}
}

// WithAuditor sets where login and logout events are recorded.
func (s *SessionService) WithAuditor(r audit.Recorder) *SessionService {
	s.auditor = r
	return s
}

// TTL returns the session lifetime.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

// Load returns the session with the given id.
func (s *SessionService) Load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.ErrSessionNotFound
	}
	return s.sessions.Get(ctx, id)
}

// Login verifies the credentials and returns a new session bound to the user.
// An existing session is replaced, never upgraded in place.
func (s *SessionService) Login(ctx context.Context, login, password string, previous *domain.Session) (*domain.Session, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if errors.Is(err, domain.ErrUserNotFound) {
		metrics.LoginFailureTotal.Inc()
		s.auditor.Record(ctx, audit.Event{Action: audit.ActionLogin, Login: login, Reason: "unknown_login"})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if user.PasswordHash == "" || s.hasher.Verify(user.PasswordHash, password) != nil {
		metrics.LoginFailureTotal.Inc()
		log.Ctx(ctx).Info().Str("login", login).Msg("login rejected")
		s.auditor.Record(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, Login: login, Reason: "bad_password"})
		return nil, ErrInvalidCredentials
	}

	if previous != nil && previous.ID != "" {
		if err := s.sessions.Delete(ctx, previous.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("failed to drop previous session")
		}
	}

	sess := domain.NewSession(uuid.NewString(), s.now(), s.ttl)
	sess.BindUser(user)

	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	metrics.LoginSuccessTotal.Inc()
	log.Ctx(ctx).Info().Str("user_id", user.ID).Msg("user logged in")
	s.auditor.Record(ctx, audit.Event{Action: audit.ActionLogin, UserID: user.ID, Login: login, Success: true})

	return sess, nil
}

// Logout removes every provider token of the user, clears the linked
// identities and destroys the session. Cleanup failures are logged; only a
// failure to destroy the session is returned.
func (s *SessionService) Logout(ctx context.Context, sess *domain.Session) error {
	if sess.IsAuthenticated() {
		if err := s.tokens.RemoveAllTokens(ctx, sess.UserID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("user_id", sess.UserID).Msg("token cleanup failed during logout")
		}
		s.anonymize(ctx, sess.UserID)
	}

	if err := s.sessions.Delete(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}

	metrics.LogoutTotal.Inc()
	s.auditor.Record(ctx, audit.Event{Action: audit.ActionLogout, UserID: sess.UserID, Success: true})

	return nil
}

func (s *SessionService) anonymize(ctx context.Context, userID string) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("failed to load user during logout")
		return
	}

	user.Anonymize()
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("user_id", userID).Msg("failed to clear identities during logout")
	}
}
