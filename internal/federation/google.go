package federation

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"

	"go.pilab.hu/focusboard/domain"
)

var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleScopes are requested when the configuration names none.
var GoogleScopes = []string{
	"openid",
	"profile",
	"email",
	"https://www.googleapis.com/auth/calendar.readonly",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.readonly",
}

// GoogleProvider implements the OAuth2Provider interface for Google. Google
// issues short-lived access tokens and a refresh token for offline access.
type GoogleProvider struct {
	*BaseProvider
}

// NewGoogleProvider creates a new GoogleProvider.
func NewGoogleProvider(cfg ProviderConfig) (*GoogleProvider, error) {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = GoogleScopes
	}

	// offline + consent makes Google return a refresh token on every connect.
	base, err := newBaseProvider(domain.ProviderGoogle, cfg, googleOAuth2.Endpoint, GoogleUserInfoEndpoint,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	if err != nil {
		return nil, err
	}
	base.fallbackLifetime = time.Hour

	return &GoogleProvider{BaseProvider: base}, nil
}

// FetchIdentity fetches the sub, email and name claims of the user.
func (g *GoogleProvider) FetchIdentity(ctx context.Context, accessToken string) (*domain.ProviderIdentity, error) {
	var userInfo struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}

	if err := g.getJSON(ctx, g.userInfoURL, accessToken, &userInfo); err != nil {
		return nil, err
	}
	if userInfo.Sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrFetchUserInfoFailed)
	}

	return &domain.ProviderIdentity{
		ProviderUserID: userInfo.Sub,
		Email:          userInfo.Email,
		DisplayName:    userInfo.Name,
	}, nil
}

// Refresh exchanges the stored refresh token at Google's token endpoint.
// An invalid_grant answer means the grant was revoked or expired.
func (g *GoogleProvider) Refresh(ctx context.Context, current domain.TokenBundle) (*domain.TokenGrant, error) {
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", ErrRevoked)
	}

	src := g.oauth2.TokenSource(g.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})

	token, err := src.Token()
	if err != nil {
		g.logRetrieveError(ctx, "token refresh failed", err)
		return nil, classifyRefreshError(err)
	}

	grant := grantFromToken(token, g.fallbackLifetime)
	if grant.RefreshToken == "" {
		grant.RefreshToken = current.RefreshToken
	}

	return grant, nil
}

// Ensure GoogleProvider implements OAuth2Provider.
var _ OAuth2Provider = (*GoogleProvider)(nil)
