package federation

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"go.pilab.hu/focusboard/domain"
)

// Service holds the configured providers.
type Service struct {
	providerRegistry map[domain.Provider]OAuth2Provider
}

// NewService creates a new federation Service.
func NewService(providers ...OAuth2Provider) *Service {
	s := &Service{
		providerRegistry: make(map[domain.Provider]OAuth2Provider),
	}
	for _, p := range providers {
		s.RegisterProvider(p)
	}
	return s
}

// RegisterProvider adds a provider, replacing any previous one with the same name.
func (s *Service) RegisterProvider(provider OAuth2Provider) {
	s.providerRegistry[provider.Name()] = provider
}

// GetProvider returns the provider registered under name.
func (s *Service) GetProvider(name domain.Provider) (OAuth2Provider, error) {
	provider, ok := s.providerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return provider, nil
}

// Refreshers returns the refresh adapter of every registered provider.
func (s *Service) Refreshers() map[domain.Provider]Refresher {
	out := make(map[domain.Provider]Refresher, len(s.providerRegistry))
	for name, p := range s.providerRegistry {
		out[name] = p
	}
	return out
}

// GenerateAuthState generates a unique, unguessable string for the state parameter.
func (s *Service) GenerateAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidateAuthState compares the state returned by the provider with the one
// issued for the session. A missing stored state never matches.
func ValidateAuthState(issued, returned string) error {
	if issued == "" || returned == "" {
		return ErrInvalidAuthState
	}
	if subtle.ConstantTimeCompare([]byte(issued), []byte(returned)) != 1 {
		return ErrInvalidAuthState
	}
	return nil
}
