package federation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/federation"
)

func newTodoistProvider(t *testing.T, serverURL string) *federation.TodoistProvider {
	t.Helper()

	provider, err := federation.NewTodoistProvider(federation.ProviderConfig{
		ClientID:     "todoist-client",
		ClientSecret: "todoist-secret",
		RedirectURL:  "http://localhost:3000/auth/todoist/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:  serverURL + "/oauth/authorize",
			TokenURL: serverURL + "/oauth/access_token",
		},
		UserInfoURL: serverURL + "/sync/v9/user",
	})
	require.NoError(t, err)

	return provider
}

func TestTodoistProvider_AuthCodeURL(t *testing.T) {
	provider, err := federation.NewTodoistProvider(federation.ProviderConfig{
		ClientID:     "todoist-client",
		ClientSecret: "todoist-secret",
		RedirectURL:  "http://localhost:3000/auth/todoist/callback",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderTodoist, provider.Name())

	raw, err := provider.AuthCodeURL("abc")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "todoist.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	assert.Equal(t, "abc", u.Query().Get("state"))
	assert.Equal(t, "data:read_write,data:delete", u.Query().Get("scope"))
}

func TestTodoistProvider_ExchangeCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		// Todoist expects client credentials in the form body.
		assert.Equal(t, "todoist-client", r.Form.Get("client_id"))
		assert.Equal(t, "todoist-secret", r.Form.Get("client_secret"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"todo-access","token_type":"Bearer"}`))
	}))
	defer server.Close()

	provider := newTodoistProvider(t, server.URL)

	grant, err := provider.ExchangeCode(context.Background(), "code")
	require.NoError(t, err)
	assert.Equal(t, "todo-access", grant.AccessToken)
	assert.Empty(t, grant.RefreshToken)
	assert.Equal(t, federation.TodoistNominalLifetime, grant.ExpiresIn)
}

func TestTodoistProvider_FetchIdentity(t *testing.T) {
	bodies := map[string]string{
		"string-id":  `{"id":"2671355","email":"alice@example.com","full_name":"Alice"}`,
		"numeric-id": `{"id":2671355,"email":"alice@example.com","full_name":"Alice"}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/sync/v9/user", r.URL.Path)
				assert.Equal(t, "Bearer todo-access", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			}))
			defer server.Close()

			identity, err := newTodoistProvider(t, server.URL).FetchIdentity(context.Background(), "todo-access")
			require.NoError(t, err)
			assert.Equal(t, "2671355", identity.ProviderUserID)
			assert.Equal(t, "alice@example.com", identity.Email)
			assert.Equal(t, "Alice", identity.DisplayName)
		})
	}

	t.Run("missing id", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"email":"alice@example.com"}`))
		}))
		defer server.Close()

		_, err := newTodoistProvider(t, server.URL).FetchIdentity(context.Background(), "todo-access")
		assert.ErrorIs(t, err, federation.ErrFetchUserInfoFailed)
	})
}

func TestTodoistProvider_RefreshIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected provider call to %s", r.URL.Path)
	}))
	defer server.Close()

	provider := newTodoistProvider(t, server.URL)

	grant, err := provider.Refresh(context.Background(), domain.TokenBundle{AccessToken: "todo-access"})
	require.NoError(t, err)
	assert.Equal(t, "todo-access", grant.AccessToken)
	assert.Equal(t, federation.TodoistNominalLifetime, grant.ExpiresIn)

	_, err = provider.Refresh(context.Background(), domain.TokenBundle{})
	assert.ErrorIs(t, err, federation.ErrRevoked)
}
