package federation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"go.pilab.hu/focusboard/domain"
)

// DefaultHTTPTimeout bounds every call made to a provider.
const DefaultHTTPTimeout = 10 * time.Second

// Refresher exchanges the credential of a stored bundle for a fresh one.
// Implementations never write to a store; errors wrap ErrRevoked or ErrTransient.
type Refresher interface {
	Refresh(ctx context.Context, current domain.TokenBundle) (*domain.TokenGrant, error)
}

// OAuth2Provider defines the interface for an external OAuth2 identity provider.
// Implementations of this interface will handle provider-specific details.
type OAuth2Provider interface {
	Refresher

	// Name returns the provider this implementation talks to.
	Name() domain.Provider

	// AuthCodeURL generates the authorization URL the user should be redirected to.
	AuthCodeURL(state string) (string, error)

	// ExchangeCode exchanges an authorization code for a token grant.
	ExchangeCode(ctx context.Context, code string) (*domain.TokenGrant, error)

	// FetchIdentity uses an access token to retrieve the minimal profile.
	FetchIdentity(ctx context.Context, accessToken string) (*domain.ProviderIdentity, error)
}

// ProviderConfig carries the client registration of one provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint and UserInfoURL override the provider defaults when set.
	Endpoint    oauth2.Endpoint
	UserInfoURL string

	// HTTPClient is used for every provider call. Nil means a client with
	// DefaultHTTPTimeout.
	HTTPClient *http.Client
}

// BaseProvider provides a common structure and partial implementation for OAuth2Provider.
// Specific providers embed it and add identity fetching and refresh.
type BaseProvider struct {
	name        domain.Provider
	oauth2      *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
	authOptions []oauth2.AuthCodeOption

	// fallbackLifetime is assumed when the token response carries no expiry.
	fallbackLifetime time.Duration
}

func newBaseProvider(
	name domain.Provider,
	cfg ProviderConfig,
	defaultEndpoint oauth2.Endpoint,
	defaultUserInfoURL string,
	authOptions ...oauth2.AuthCodeOption,
) (*BaseProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("%w: %s requires client id, secret and redirect url", ErrProviderMisconfigured, name)
	}

	endpoint := defaultEndpoint
	if cfg.Endpoint.AuthURL != "" {
		endpoint.AuthURL = cfg.Endpoint.AuthURL
	}
	if cfg.Endpoint.TokenURL != "" {
		endpoint.TokenURL = cfg.Endpoint.TokenURL
	}
	if cfg.Endpoint.AuthStyle != oauth2.AuthStyleAutoDetect {
		endpoint.AuthStyle = cfg.Endpoint.AuthStyle
	}

	userInfoURL := defaultUserInfoURL
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}

	return &BaseProvider{
		name: name,
		oauth2: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  client,
		authOptions: authOptions,
	}, nil
}

func (b *BaseProvider) Name() domain.Provider {
	return b.name
}

func (b *BaseProvider) AuthCodeURL(state string) (string, error) {
	if state == "" {
		return "", ErrInvalidAuthState
	}
	return b.oauth2.AuthCodeURL(state, b.authOptions...), nil
}

// ExchangeCode implements OAuth2Provider. Provider response bodies are logged
// at debug level and never returned to the caller.
func (b *BaseProvider) ExchangeCode(ctx context.Context, code string) (*domain.TokenGrant, error) {
	token, err := b.oauth2.Exchange(b.clientContext(ctx), code)
	if err != nil {
		b.logRetrieveError(ctx, "code exchange failed", err)
		return nil, fmt.Errorf("%w: %s", ErrExchangeCodeFailed, describeError(err))
	}

	return grantFromToken(token, b.fallbackLifetime), nil
}

// clientContext makes the oauth2 package use the bounded client.
func (b *BaseProvider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
}

// getJSON performs an authenticated GET and decodes the response into out.
func (b *BaseProvider) getJSON(ctx context.Context, url, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchUserInfoFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetchUserInfoFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Ctx(ctx).Debug().
			Str("provider", b.name.String()).
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("user info request failed")
		return fmt.Errorf("%w: status %d", ErrFetchUserInfoFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid response: %v", ErrFetchUserInfoFailed, err)
	}

	return nil
}

func (b *BaseProvider) logRetrieveError(ctx context.Context, msg string, err error) {
	event := log.Ctx(ctx).Debug().Str("provider", b.name.String()).Err(err)

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		event = event.Str("error_code", re.ErrorCode).Str("body", string(re.Body))
		if re.Response != nil {
			event = event.Int("status", re.Response.StatusCode)
		}
	}

	event.Msg(msg)
}

// describeError reduces a provider error to something safe to show in logs
// at info level and in wrapped errors: the oauth2 error code or HTTP status.
func describeError(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		if re.ErrorCode != "" {
			return re.ErrorCode
		}
		if re.Response != nil {
			return fmt.Sprintf("status %d", re.Response.StatusCode)
		}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "timeout"
	}
	return "request failed"
}

// grantFromToken converts an oauth2 token. A token without expiry is given
// the fallback lifetime.
func grantFromToken(token *oauth2.Token, fallback time.Duration) *domain.TokenGrant {
	grant := &domain.TokenGrant{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresIn:    fallback,
	}
	if !token.Expiry.IsZero() {
		grant.ExpiresIn = time.Until(token.Expiry)
	}
	return grant
}
