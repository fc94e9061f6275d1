package domain

import (
	"errors"
	"time"
)

// Session is the server-side state behind the session cookie. It carries
// identity fields only; provider tokens never enter it.
type Session struct {
	ID               string                        `json:"id"`
	UserID           string                        `json:"user_id,omitempty"`
	ApplicationLogin string                        `json:"application_login,omitempty"`
	Identities       map[Provider]ProviderIdentity `json:"identities,omitempty"`
	OAuthStates      map[Provider]string           `json:"oauth_states,omitempty"`
	CreatedAt        time.Time                     `json:"created_at"`
	ExpiresAt        time.Time                     `json:"expires_at"`
}

// NewSession returns an empty anonymous session.
func NewSession(id string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:          id,
		Identities:  make(map[Provider]ProviderIdentity),
		OAuthStates: make(map[Provider]string),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsAuthenticated reports whether an application login is bound to the session.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != ""
}

// Identity returns the provider identity mirrored into the session.
func (s *Session) Identity(p Provider) (ProviderIdentity, bool) {
	if s == nil || s.Identities == nil {
		return ProviderIdentity{}, false
	}
	id, ok := s.Identities[p]
	return id, ok
}

// SetIdentity mirrors a provider identity into the session.
func (s *Session) SetIdentity(p Provider, id ProviderIdentity) {
	if s.Identities == nil {
		s.Identities = make(map[Provider]ProviderIdentity)
	}
	s.Identities[p] = id
}

// ClearIdentity removes the provider identity from the session.
func (s *Session) ClearIdentity(p Provider) {
	delete(s.Identities, p)
}

// BindUser attaches an application login and copies its stable identity fields.
func (s *Session) BindUser(u *User) {
	s.UserID = u.ID
	s.ApplicationLogin = u.ApplicationLogin
	s.Identities = make(map[Provider]ProviderIdentity)
	for _, p := range u.ConnectedProviders() {
		s.Identities[p] = *u.Identity(p)
	}
}

// ErrSessionNotFound is returned by session stores for unknown or expired ids.
var ErrSessionNotFound = errors.New("session not found")
