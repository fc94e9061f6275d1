package services

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/crypto"
	"go.pilab.hu/focusboard/internal/federation"
)

// --- Mock Implementations ---

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	args := m.Called(ctx, login)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserRepository) List(ctx context.Context) ([]*domain.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}

// plainHasher stores passwords with a fixed prefix.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Verify(hashedPassword, password string) error {
	if hashedPassword != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

// --- Fake provider ---

// fakeProvider is a scriptable federation.OAuth2Provider.
type fakeProvider struct {
	name     domain.Provider
	identity domain.ProviderIdentity
	grant    domain.TokenGrant

	exchangeErr error
	fetchErr    error

	mu           sync.Mutex
	refreshGrant *domain.TokenGrant
	refreshErr   error
	refreshDelay time.Duration
	lastRefresh  domain.TokenBundle

	exchangeCalls atomic.Int32
	refreshCalls  atomic.Int32
}

func newFakeProvider(name domain.Provider, userID string) *fakeProvider {
	return &fakeProvider{
		name: name,
		identity: domain.ProviderIdentity{
			ProviderUserID: userID,
			Email:          userID + "@" + name.String() + ".test",
			DisplayName:    "User " + userID,
		},
		grant: domain.TokenGrant{
			AccessToken:  name.String() + "-access",
			RefreshToken: name.String() + "-refresh",
			ExpiresIn:    time.Hour,
		},
	}
}

func (p *fakeProvider) Name() domain.Provider { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) (string, error) {
	if state == "" {
		return "", federation.ErrInvalidAuthState
	}
	return "https://" + p.name.String() + ".test/authorize?state=" + url.QueryEscape(state), nil
}

func (p *fakeProvider) ExchangeCode(_ context.Context, _ string) (*domain.TokenGrant, error) {
	p.exchangeCalls.Add(1)
	if p.exchangeErr != nil {
		return nil, p.exchangeErr
	}
	g := p.grant
	return &g, nil
}

func (p *fakeProvider) FetchIdentity(_ context.Context, _ string) (*domain.ProviderIdentity, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	id := p.identity
	return &id, nil
}

func (p *fakeProvider) Refresh(_ context.Context, current domain.TokenBundle) (*domain.TokenGrant, error) {
	p.refreshCalls.Add(1)

	p.mu.Lock()
	p.lastRefresh = current
	delay, grant, err := p.refreshDelay, p.refreshGrant, p.refreshErr
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, federation.ErrTransient
	}
	g := *grant
	return &g, nil
}

func (p *fakeProvider) setRefresh(grant *domain.TokenGrant, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshGrant, p.refreshErr = grant, err
}

func (p *fakeProvider) lastRefreshed() domain.TokenBundle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRefresh
}

var (
	testCipherOnce sync.Once
	testCipher     *crypto.Cipher
	testCipherErr  error
)

// newTestCipher shares one cipher across tests; key derivation is slow.
func newTestCipher(t *testing.T) *crypto.Cipher {
	t.Helper()
	testCipherOnce.Do(func() {
		testCipher, testCipherErr = crypto.NewCipher("test-session-secret")
	})
	require.NoError(t, testCipherErr)
	return testCipher
}

// stateFromURL extracts the state parameter of an authorization URL.
func stateFromURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}
