package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"go.pilab.hu/focusboard/cache"
	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/audit"
	"go.pilab.hu/focusboard/internal/federation"
	"go.pilab.hu/focusboard/internal/metrics"
)

// Reason codes placed in the callback redirect. They never carry provider detail.
const (
	ReasonSuccess        = "success"
	ReasonInvalidState   = "invalid_state"
	ReasonAccessDenied   = "access_denied"
	ReasonMissingCode    = "missing_code"
	ReasonExchangeFailed = "exchange_failed"
	ReasonProfileFailed  = "profile_failed"
	ReasonLoginRequired  = "login_required"
	ReasonServerError    = "server_error"
)

// CallbackParams are the query parameters a provider sends to the callback.
type CallbackParams struct {
	State string
	Code  string
	Error string
}

// StatusUser is the public part of a connected identity.
type StatusUser struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// ConnectionStatus reports whether a provider is usable for the session.
type ConnectionStatus struct {
	Connected bool        `json:"connected"`
	User      *StatusUser `json:"user,omitempty"`
}

// ConnectService drives the per-provider OAuth flow of a session:
// issuing the authorization redirect, completing the callback and
// disconnecting.
type ConnectService struct {
	providers ProviderRegistry
	sessions  SessionStore
	users     domain.UserRepository
	tokens    *TokenService
	auditor   audit.Recorder
	now       func() time.Time
}

// NewConnectService creates a ConnectService.
func NewConnectService(
	providers ProviderRegistry,
	sessions SessionStore,
	users domain.UserRepository,
	tokens *TokenService,
) *ConnectService {
	return &ConnectService{
		providers: providers,
		sessions:  sessions,
		users:     users,
		tokens:    tokens,
		auditor:   audit.Nop{},
		now:       time.Now,
	}
}

// WithAuditor sets where connect and disconnect events are recorded. Events
// are discarded by default.
func (s *ConnectService) WithAuditor(r audit.Recorder) *ConnectService {
	s.auditor = r
	return s
}

// BeginConnect issues a fresh CSRF state for the provider, binds it to the
// session and returns the provider authorization URL. A previously issued
// state for the same provider is replaced.
func (s *ConnectService) BeginConnect(ctx context.Context, sess *domain.Session, provider domain.Provider) (string, error) {
	if !sess.IsAuthenticated() {
		return "", ErrAppLoginRequired
	}

	p, err := s.providers.GetProvider(provider)
	if err != nil {
		return "", err
	}

	state, err := s.providers.GenerateAuthState()
	if err != nil {
		return "", fmt.Errorf("failed to generate auth state: %w", err)
	}

	authURL, err := p.AuthCodeURL(state)
	if err != nil {
		return "", err
	}

	if sess.OAuthStates == nil {
		sess.OAuthStates = make(map[domain.Provider]string)
	}
	sess.OAuthStates[provider] = state

	if err := s.sessions.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("provider", provider.String()).
		Str("session_id", cache.Fingerprint(sess.ID)).
		Str("state", cache.Fingerprint(state)).
		Msg("authorization redirect issued")

	return authURL, nil
}

// HandleCallback completes an authorization attempt. The stored state is
// consumed before anything else, so a state can be used at most once, and no
// code is exchanged unless it matches exactly.
func (s *ConnectService) HandleCallback(
	ctx context.Context,
	sess *domain.Session,
	provider domain.Provider,
	params CallbackParams,
) (*domain.ProviderIdentity, error) {
	identity, err := s.handleCallback(ctx, sess, provider, params)

	reason := CallbackReason(err)
	metrics.ProviderConnectTotal.WithLabelValues(provider.String(), reason).Inc()
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionProviderConnect,
		UserID:   sess.UserID,
		Provider: provider.String(),
		Reason:   reason,
		Success:  err == nil,
		Err:      err,
	})

	return identity, err
}

func (s *ConnectService) handleCallback(
	ctx context.Context,
	sess *domain.Session,
	provider domain.Provider,
	params CallbackParams,
) (*domain.ProviderIdentity, error) {
	logger := log.Ctx(ctx).With().
		Str("provider", provider.String()).
		Str("session_id", cache.Fingerprint(sess.ID)).
		Logger()

	p, err := s.providers.GetProvider(provider)
	if err != nil {
		return nil, err
	}

	issued, err := s.sessions.ConsumeState(ctx, sess.ID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to consume auth state: %w", err)
	}
	delete(sess.OAuthStates, provider)

	if err := federation.ValidateAuthState(issued, params.State); err != nil {
		logger.Warn().
			Bool("state_issued", issued != "").
			Str("expected", cache.Fingerprint(issued)).
			Str("received", cache.Fingerprint(params.State)).
			Msg("rejecting callback with invalid state")
		return nil, err
	}

	if params.Error != "" {
		logger.Info().Str("provider_error", params.Error).Msg("authorization denied at provider")
		return nil, ErrProviderDenied
	}
	if params.Code == "" {
		return nil, ErrMissingCode
	}
	if !sess.IsAuthenticated() {
		return nil, ErrAppLoginRequired
	}

	grant, err := p.ExchangeCode(ctx, params.Code)
	if err != nil {
		logger.Error().Err(err).Msg("code exchange failed")
		return nil, err
	}

	identity, err := p.FetchIdentity(ctx, grant.AccessToken)
	if err != nil {
		logger.Error().Err(err).Msg("fetching provider identity failed")
		return nil, err
	}

	user, err := s.userForSession(ctx, sess)
	if err != nil {
		return nil, err
	}

	previous := user.Identity(provider)
	user.AttachIdentity(provider, *identity)
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to attach identity: %w", err)
	}

	if err := s.tokens.StoreToken(ctx, user.ID, provider, *grant); err != nil {
		logger.Error().Err(err).Msg("storing provider token failed")
		s.restoreIdentity(ctx, user, provider, previous)
		return nil, err
	}

	sess.SetIdentity(provider, *identity)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	logger.Info().Str("provider_user_id", identity.ProviderUserID).Msg("provider connected")

	return identity, nil
}

// restoreIdentity puts back the identity the user had before a callback whose
// token could not be stored, so no identity is left without its token.
func (s *ConnectService) restoreIdentity(ctx context.Context, user *domain.User, provider domain.Provider, previous *domain.ProviderIdentity) {
	if previous != nil {
		user.AttachIdentity(provider, *previous)
	} else {
		user.DetachIdentity(provider)
	}
	user.UpdatedAt = s.now()
	if err := s.users.Update(ctx, user); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("failed to restore identity after token store failure")
	}
}

// Disconnect removes the identity and token of one provider. The application
// login and other providers are untouched. Disconnecting a provider that is
// not connected succeeds.
func (s *ConnectService) Disconnect(ctx context.Context, sess *domain.Session, provider domain.Provider) error {
	if !sess.IsAuthenticated() {
		return ErrAppLoginRequired
	}

	user, err := s.users.GetByID(ctx, sess.UserID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
	case err != nil:
		return fmt.Errorf("failed to load user: %w", err)
	case user.Identity(provider) != nil:
		user.DetachIdentity(provider)
		user.UpdatedAt = s.now()
		if err := s.users.Update(ctx, user); err != nil {
			return fmt.Errorf("failed to detach identity: %w", err)
		}
	}

	// An orphaned token can no longer be reached once the identity is gone.
	if err := s.tokens.RemoveToken(ctx, sess.UserID, provider); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("token cleanup failed during disconnect")
	}

	sess.ClearIdentity(provider)
	delete(sess.OAuthStates, provider)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	metrics.ProviderDisconnectTotal.WithLabelValues(provider.String()).Inc()
	s.auditor.Record(ctx, audit.Event{
		Action:   audit.ActionProviderDisconnect,
		UserID:   sess.UserID,
		Provider: provider.String(),
		Success:  true,
	})

	return nil
}

// Status reports whether the provider is connected. A provider whose stored
// token is gone, for example after a revoked refresh, is reported as not
// connected.
func (s *ConnectService) Status(ctx context.Context, sess *domain.Session, provider domain.Provider) (*ConnectionStatus, error) {
	identity, ok := sess.Identity(provider)
	if !ok || !sess.IsAuthenticated() {
		return &ConnectionStatus{Connected: false}, nil
	}

	hasToken, err := s.tokens.HasToken(ctx, sess.UserID, provider)
	if err != nil {
		return nil, err
	}
	if !hasToken {
		return &ConnectionStatus{Connected: false}, nil
	}

	return &ConnectionStatus{
		Connected: true,
		User: &StatusUser{
			ID:    identity.ProviderUserID,
			Email: identity.Email,
			Name:  identity.DisplayName,
		},
	}, nil
}

// userForSession loads the record bound to the session, creating it when it
// does not exist yet.
func (s *ConnectService) userForSession(ctx context.Context, sess *domain.Session) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := s.now()
	user = &domain.User{
		ID:               sess.UserID,
		ApplicationLogin: sess.ApplicationLogin,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// CallbackReason maps a callback outcome onto its redirect reason code.
func CallbackReason(err error) string {
	switch {
	case err == nil:
		return ReasonSuccess
	case errors.Is(err, federation.ErrInvalidAuthState):
		return ReasonInvalidState
	case errors.Is(err, ErrProviderDenied):
		return ReasonAccessDenied
	case errors.Is(err, ErrMissingCode):
		return ReasonMissingCode
	case errors.Is(err, federation.ErrExchangeCodeFailed):
		return ReasonExchangeFailed
	case errors.Is(err, federation.ErrFetchUserInfoFailed):
		return ReasonProfileFailed
	case errors.Is(err, ErrAppLoginRequired):
		return ReasonLoginRequired
	default:
		return ReasonServerError
	}
}
