package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"go.pilab.hu/focusboard/cache"
	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/federation"
	"go.pilab.hu/focusboard/internal/metrics"
)

const (
	// DefaultRefreshThreshold is how long before expiry a token gets refreshed.
	DefaultRefreshThreshold = 5 * time.Minute

	// defaultRetention keeps expired bundles readable so their refresh token
	// can still be used.
	defaultRetention = 30 * 24 * time.Hour
)

// TokenService owns the provider token bundles of every user. Bundles are
// encrypted before they reach the backing store and decrypted only for the
// duration of a call.
type TokenService struct {
	store      cache.TokenStore
	cipher     TokenCipher
	refreshers map[domain.Provider]federation.Refresher
	threshold  time.Duration
	retention  time.Duration
	now        func() time.Time

	// refreshes allows one in-flight refresh per (user, provider).
	refreshes singleflight.Group

	// writes holds a *userWrites per user id.
	writes sync.Map
}

// userWrites orders the store writes of one user. gen advances on every
// StoreToken and removal; a refresh only persists its result when gen is
// still the value it saw before calling the provider.
type userWrites struct {
	mu  sync.Mutex
	gen uint64
}

func (s *TokenService) writesFor(userID string) *userWrites {
	w, _ := s.writes.LoadOrStore(userID, &userWrites{})
	return w.(*userWrites)
}

func (w *userWrites) generation() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gen
}

// TokenServiceOption configures a TokenService.
type TokenServiceOption func(*TokenService)

// WithRefreshThreshold overrides DefaultRefreshThreshold.
func WithRefreshThreshold(d time.Duration) TokenServiceOption {
	return func(s *TokenService) { s.threshold = d }
}

// WithRetention sets how long entries outlive their access token expiry.
func WithRetention(d time.Duration) TokenServiceOption {
	return func(s *TokenService) { s.retention = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService.
func NewTokenService(
	store cache.TokenStore,
	cipher TokenCipher,
	refreshers map[domain.Provider]federation.Refresher,
	opts ...TokenServiceOption,
) *TokenService {
	s := &TokenService{
		store:      store,
		cipher:     cipher,
		refreshers: refreshers,
		threshold:  DefaultRefreshThreshold,
		retention:  defaultRetention,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StoreToken encrypts the grant and overwrites any entry for the key.
func (s *TokenService) StoreToken(ctx context.Context, userID string, provider domain.Provider, grant domain.TokenGrant) error {
	bundle := domain.TokenBundle{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    s.now().Add(grant.ExpiresIn),
	}

	w := s.writesFor(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++

	return s.put(ctx, userID, provider, bundle)
}

// GetValidToken returns an access token that is valid for at least the
// refresh threshold, refreshing it first when needed.
//
// It returns ErrNoToken when nothing usable is stored, ErrReauthRequired when
// the provider rejected the refresh (the entry is gone afterwards) and an
// error wrapping federation.ErrTransient when the provider could not be
// reached and the stored token has already expired.
func (s *TokenService) GetValidToken(ctx context.Context, userID string, provider domain.Provider) (string, error) {
	bundle, err := s.load(ctx, userID, provider)
	if err != nil {
		return "", err
	}

	if !s.needsRefresh(bundle) {
		return bundle.AccessToken, nil
	}

	key := cache.TokenKey(userID, provider.String())
	v, err, shared := s.refreshes.Do(key, func() (interface{}, error) {
		// Waiters share this call, so one caller going away must not cancel it.
		return s.refresh(context.WithoutCancel(ctx), userID, provider)
	})
	if shared {
		log.Ctx(ctx).Debug().
			Str("user_id", userID).
			Str("provider", provider.String()).
			Msg("joined in-flight token refresh")
	}
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

// HasToken reports whether a readable entry exists, without refreshing it.
func (s *TokenService) HasToken(ctx context.Context, userID string, provider domain.Provider) (bool, error) {
	_, err := s.load(ctx, userID, provider)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoToken):
		return false, nil
	default:
		return false, err
	}
}

// RemoveToken deletes the entry for the key. Removing a missing entry is not an error.
func (s *TokenService) RemoveToken(ctx context.Context, userID string, provider domain.Provider) error {
	w := s.writesFor(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++

	if err := s.store.Delete(ctx, userID, provider.String()); err != nil {
		return fmt.Errorf("failed to remove %s token: %w", provider, err)
	}
	return nil
}

// RemoveAllTokens deletes the entries of every provider for the user.
// A refresh still in flight for the user will not write its result back.
func (s *TokenService) RemoveAllTokens(ctx context.Context, userID string) error {
	w := s.writesFor(userID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to remove user tokens: %w", err)
	}
	return nil
}

func (s *TokenService) needsRefresh(bundle *domain.TokenBundle) bool {
	return !s.now().Before(bundle.ExpiresAt.Add(-s.threshold))
}

// refresh runs inside the single flight of the key.
func (s *TokenService) refresh(ctx context.Context, userID string, provider domain.Provider) (string, error) {
	logger := log.Ctx(ctx).With().Str("user_id", userID).Str("provider", provider.String()).Logger()

	w := s.writesFor(userID)
	gen := w.generation()

	// A flight that finished just before this one started may already have
	// stored a fresh bundle.
	bundle, err := s.load(ctx, userID, provider)
	if err != nil {
		return "", err
	}
	if !s.needsRefresh(bundle) {
		return bundle.AccessToken, nil
	}

	refresher, ok := s.refreshers[provider]
	if !ok {
		if s.now().Before(bundle.ExpiresAt) {
			return bundle.AccessToken, nil
		}
		logger.Warn().Msg("token expired and provider has no refresh adapter")
		s.dropUnlessRewritten(ctx, w, gen, userID, provider)
		return "", ErrReauthRequired
	}

	grant, err := refresher.Refresh(ctx, *bundle)
	switch {
	case errors.Is(err, federation.ErrRevoked):
		metrics.TokenRefreshTotal.WithLabelValues(provider.String(), metrics.OutcomeRevoked).Inc()
		logger.Info().Err(err).Msg("refresh rejected by provider, removing stored token")
		s.dropUnlessRewritten(ctx, w, gen, userID, provider)
		return "", fmt.Errorf("%w: %w", ErrReauthRequired, err)

	case err != nil:
		metrics.TokenRefreshTotal.WithLabelValues(provider.String(), metrics.OutcomeTransient).Inc()
		logger.Warn().Err(err).Msg("token refresh failed, keeping stored token")
		if s.now().Before(bundle.ExpiresAt) {
			return bundle.AccessToken, nil
		}
		if !errors.Is(err, federation.ErrTransient) {
			err = fmt.Errorf("%w: %v", federation.ErrTransient, err)
		}
		return "", err
	}

	refreshed := domain.TokenBundle{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    s.now().Add(grant.ExpiresIn),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		// Removed or replaced while the provider call was pending. The
		// refreshed grant is discarded; whatever is stored now wins.
		logger.Info().Msg("token entry changed during refresh, discarding refreshed token")
		current, err := s.load(ctx, userID, provider)
		if err != nil {
			return "", err
		}
		return current.AccessToken, nil
	}
	if err := s.put(ctx, userID, provider, refreshed); err != nil {
		return "", err
	}

	metrics.TokenRefreshTotal.WithLabelValues(provider.String(), metrics.OutcomeSuccess).Inc()
	logger.Debug().Time("expires_at", refreshed.ExpiresAt).Msg("token refreshed")

	return refreshed.AccessToken, nil
}

// load reads and decrypts an entry. Unreadable entries are removed and
// reported as ErrNoToken.
func (s *TokenService) load(ctx context.Context, userID string, provider domain.Provider) (*domain.TokenBundle, error) {
	entry, err := s.store.Get(ctx, userID, provider.String())
	if errors.Is(err, cache.ErrTokenNotFound) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s token: %w", provider, err)
	}

	plaintext, err := s.cipher.Decrypt(entry.Envelope)
	if err != nil {
		metrics.TokenDecryptFailureTotal.Inc()
		log.Ctx(ctx).Warn().Err(err).
			Str("user_id", userID).
			Str("provider", provider.String()).
			Msg("dropping undecryptable token entry")
		s.drop(ctx, userID, provider)
		return nil, ErrNoToken
	}

	var bundle domain.TokenBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil || bundle.AccessToken == "" {
		log.Ctx(ctx).Warn().
			Str("user_id", userID).
			Str("provider", provider.String()).
			Msg("dropping malformed token bundle")
		s.drop(ctx, userID, provider)
		return nil, ErrNoToken
	}

	return &bundle, nil
}

func (s *TokenService) put(ctx context.Context, userID string, provider domain.Provider, bundle domain.TokenBundle) error {
	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("failed to serialize token bundle: %w", err)
	}

	envelope, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("failed to encrypt token bundle: %w", err)
	}

	now := s.now()
	ttl := bundle.ExpiresAt.Sub(now) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	entry := &cache.TokenEntry{
		UserID:    userID,
		Provider:  provider.String(),
		Envelope:  envelope,
		UpdatedAt: now,
	}
	if err := s.store.Set(ctx, entry, ttl); err != nil {
		return fmt.Errorf("failed to store %s token: %w", provider, err)
	}

	return nil
}

// dropUnlessRewritten drops the entry unless it was stored or removed since gen.
func (s *TokenService) dropUnlessRewritten(ctx context.Context, w *userWrites, gen uint64, userID string, provider domain.Provider) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.gen != gen {
		return
	}
	w.gen++
	s.drop(ctx, userID, provider)
}

// drop removes an entry on a path that is already failing; errors are logged only.
func (s *TokenService) drop(ctx context.Context, userID string, provider domain.Provider) {
	if err := s.store.Delete(ctx, userID, provider.String()); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("user_id", userID).
			Str("provider", provider.String()).
			Msg("failed to remove token entry")
	}
}
