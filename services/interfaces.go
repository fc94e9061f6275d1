package services

import (
	"context"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/federation"
)

// PasswordHasher defines an interface for hashing and verifying passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// TokenCipher seals and opens serialized token bundles.
type TokenCipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(envelope string) ([]byte, error)
}

// SessionStore persists sessions between requests.
type SessionStore interface {
	// Get returns domain.ErrSessionNotFound for unknown or expired ids.
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, sess *domain.Session) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
	// ConsumeState removes and returns the pending OAuth state of a provider.
	// It returns an empty string when none is pending. Two concurrent callers
	// never both receive the same value.
	ConsumeState(ctx context.Context, id string, provider domain.Provider) (string, error)
}

// ProviderRegistry resolves the configured OAuth2 providers.
type ProviderRegistry interface {
	GetProvider(name domain.Provider) (federation.OAuth2Provider, error)
	GenerateAuthState() (string, error)
}
