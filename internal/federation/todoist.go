package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"go.pilab.hu/focusboard/domain"
)

// TodoistNominalLifetime is the expiry given to Todoist tokens. Todoist issues
// long-lived tokens and offers no refresh grant.
const TodoistNominalLifetime = 365 * 24 * time.Hour

var TodoistUserInfoEndpoint = "https://api.todoist.com/sync/v9/user"

var TodoistEndpoint = oauth2.Endpoint{
	AuthURL:   "https://todoist.com/oauth/authorize",
	TokenURL:  "https://todoist.com/oauth/access_token",
	AuthStyle: oauth2.AuthStyleInParams,
}

var TodoistScopes = []string{"data:read_write,data:delete"}

// TodoistProvider implements the OAuth2Provider interface for Todoist.
type TodoistProvider struct {
	*BaseProvider
}

// NewTodoistProvider creates a new TodoistProvider.
func NewTodoistProvider(cfg ProviderConfig) (*TodoistProvider, error) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = TodoistScopes
	}

	base, err := newBaseProvider(domain.ProviderTodoist, cfg, TodoistEndpoint, TodoistUserInfoEndpoint)
	if err != nil {
		return nil, err
	}
	base.fallbackLifetime = TodoistNominalLifetime

	return &TodoistProvider{BaseProvider: base}, nil
}

// FetchIdentity reads id, email and full_name from the Sync API user resource.
func (p *TodoistProvider) FetchIdentity(ctx context.Context, accessToken string) (*domain.ProviderIdentity, error) {
	var user struct {
		ID       json.RawMessage `json:"id"`
		Email    string          `json:"email"`
		FullName string          `json:"full_name"`
	}

	if err := p.getJSON(ctx, p.userInfoURL, accessToken, &user); err != nil {
		return nil, err
	}

	// Older API versions return a numeric id, newer ones a string.
	id := strings.Trim(string(user.ID), `"`)
	if id == "" || id == "null" {
		return nil, fmt.Errorf("%w: missing user id", ErrFetchUserInfoFailed)
	}

	return &domain.ProviderIdentity{
		ProviderUserID: id,
		Email:          user.Email,
		DisplayName:    user.FullName,
	}, nil
}

// Refresh hands back the current access token with a fresh nominal expiry.
// The provider itself is never contacted.
func (p *TodoistProvider) Refresh(_ context.Context, current domain.TokenBundle) (*domain.TokenGrant, error) {
	if current.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token stored", ErrRevoked)
	}

	return &domain.TokenGrant{
		AccessToken:  current.AccessToken,
		RefreshToken: current.RefreshToken,
		ExpiresIn:    TodoistNominalLifetime,
	}, nil
}

var _ OAuth2Provider = (*TodoistProvider)(nil)
