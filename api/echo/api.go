package echo

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	apimodels "go.pilab.hu/focusboard/api"
	"go.pilab.hu/focusboard/domain"
	apierrors "go.pilab.hu/focusboard/errors"
	"go.pilab.hu/focusboard/internal/federation"
	"go.pilab.hu/focusboard/internal/session"
	"go.pilab.hu/focusboard/middleware"
	"go.pilab.hu/focusboard/services"
)

// Config holds the HTTP level settings of the API.
type Config struct {
	Cookie session.CookieOptions

	// AppRedirectPath is where the browser lands after an OAuth callback.
	AppRedirectPath string

	// RateLimitRequests per RateLimitWindow apply to every session route.
	// Zero disables the general limiter.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// AuthRateLimit enables the stricter limiter on login and callbacks.
	AuthRateLimit bool

	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// API wires the auth endpoints to the services.
type API struct {
	sessions *services.SessionService
	connect  *services.ConnectService
	tokens   *services.TokenService
	config   Config
}

// NewAPI creates the API.
func NewAPI(
	sessions *services.SessionService,
	connect *services.ConnectService,
	tokens *services.TokenService,
	config Config,
) *API {
	if config.AppRedirectPath == "" {
		config.AppRedirectPath = "/"
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}

	return &API{
		sessions: sessions,
		connect:  connect,
		tokens:   tokens,
		config:   config,
	}
}

// RegisterRoutes registers the auth, token, health and metrics routes.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", a.HealthHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.config.Gatherer, promhttp.HandlerOpts{})))

	common := []echo.MiddlewareFunc{
		middleware.RateLimit(a.config.RateLimitRequests, a.config.RateLimitWindow),
		middleware.Session(a.sessions, a.config.Cookie),
	}
	with := func(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		return append(append([]echo.MiddlewareFunc{}, common...), extra...)
	}

	var authLimit []echo.MiddlewareFunc
	if a.config.AuthRateLimit {
		authLimit = append(authLimit, middleware.AuthRateLimit())
	}

	e.POST("/auth/login", a.LoginHandler, with(authLimit...)...)
	e.POST("/auth/logout", a.LogoutHandler, with()...)
	e.GET("/auth/session", a.SessionHandler, with()...)
	e.GET("/auth/status/:provider", a.StatusHandler, with()...)

	e.GET("/auth/:provider/connect", a.ConnectHandler, with()...)
	e.GET("/auth/:provider/callback", a.CallbackHandler, with(authLimit...)...)
	e.POST("/auth/:provider/disconnect", a.DisconnectHandler, with(middleware.RequireAppLogin())...)

	e.GET("/api/:provider/token", a.TokenHandler, with(middleware.RequireProvider("provider"))...)
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, apimodels.HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC(),
	})
}

// LoginHandler verifies the application credentials and issues a new session cookie.
func (a *API) LoginHandler(c echo.Context) error {
	var req apimodels.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("malformed login request"))
	}
	if req.LoginName() == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, apierrors.NewInvalidRequest("login and password are required"))
	}

	ctx := c.Request().Context()
	sess, err := a.sessions.Login(ctx, req.LoginName(), req.Password, middleware.SessionFrom(c))
	if errors.Is(err, services.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, apierrors.NewInvalidCredentials())
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("login failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("login failed"))
	}

	middleware.SetSession(c, sess)
	session.SetCookie(c.Response(), sess.ID, a.sessions.TTL(), a.config.Cookie)

	return c.JSON(http.StatusOK, apimodels.SuccessResponse{Success: true, Login: sess.ApplicationLogin})
}

// LogoutHandler drops every provider token of the user and destroys the session.
func (a *API) LogoutHandler(c echo.Context) error {
	ctx := c.Request().Context()

	if err := a.sessions.Logout(ctx, middleware.SessionFrom(c)); err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("logout failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("logout failed"))
	}

	session.ClearCookie(c.Response(), a.config.Cookie)

	return c.JSON(http.StatusOK, apimodels.SuccessResponse{Success: true})
}

// SessionHandler describes the current session.
func (a *API) SessionHandler(c echo.Context) error {
	sess := middleware.SessionFrom(c)

	resp := apimodels.SessionResponse{
		Authenticated: sess.IsAuthenticated(),
		Login:         sess.ApplicationLogin,
		Providers:     []domain.Provider{},
	}
	for _, p := range domain.Providers {
		if _, ok := sess.Identity(p); ok {
			resp.Providers = append(resp.Providers, p)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// ConnectHandler redirects the browser to the provider consent screen.
func (a *API) ConnectHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param("provider")))
	}

	ctx := c.Request().Context()
	authURL, err := a.connect.BeginConnect(ctx, middleware.SessionFrom(c), provider)
	switch {
	case err == nil:
		return c.Redirect(http.StatusFound, authURL)
	case errors.Is(err, services.ErrAppLoginRequired):
		return c.JSON(http.StatusUnauthorized, apierrors.NewAppLoginRequired())
	case errors.Is(err, federation.ErrProviderNotFound):
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(provider.String()))
	default:
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("failed to start provider authorization")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to start authorization"))
	}
}

// CallbackHandler completes the provider authorization and sends the browser
// back to the application with the outcome in the query string.
func (a *API) CallbackHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param("provider")))
	}

	_, err = a.connect.HandleCallback(c.Request().Context(), middleware.SessionFrom(c), provider, services.CallbackParams{
		State: c.QueryParam("state"),
		Code:  c.QueryParam("code"),
		Error: c.QueryParam("error"),
	})

	return c.Redirect(http.StatusFound, a.callbackRedirect(provider, err))
}

func (a *API) callbackRedirect(provider domain.Provider, err error) string {
	q := url.Values{}
	q.Set("service", provider.String())
	if err == nil {
		q.Set("auth", "success")
	} else {
		q.Set("auth", "error")
		q.Set("reason", services.CallbackReason(err))
	}

	return a.config.AppRedirectPath + "?" + q.Encode()
}

// DisconnectHandler removes one provider connection.
func (a *API) DisconnectHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param("provider")))
	}

	ctx := c.Request().Context()
	if err := a.connect.Disconnect(ctx, middleware.SessionFrom(c), provider); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("disconnect failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("failed to disconnect"))
	}

	return c.JSON(http.StatusOK, apimodels.SuccessResponse{Success: true})
}

// StatusHandler reports whether a provider is connected for the session.
func (a *API) StatusHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param("provider")))
	}

	ctx := c.Request().Context()
	status, err := a.connect.Status(ctx, middleware.SessionFrom(c), provider)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("status check failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("status unavailable"))
	}

	return c.JSON(http.StatusOK, status)
}

// TokenHandler makes sure a valid access token is available for the
// provider, refreshing it when needed. Provider-scoped proxy routes sit
// behind the same guard and call TokenService directly.
func (a *API) TokenHandler(c echo.Context) error {
	provider, err := domain.ParseProvider(c.Param("provider"))
	if err != nil {
		return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param("provider")))
	}

	ctx := c.Request().Context()
	sess := middleware.SessionFrom(c)

	_, err = a.tokens.GetValidToken(ctx, sess.UserID, provider)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, apimodels.TokenStatusResponse{Ready: true})
	case errors.Is(err, services.ErrNoToken), errors.Is(err, services.ErrReauthRequired):
		return c.JSON(http.StatusUnauthorized, apierrors.NewProviderAuthRequired(provider.String()))
	case errors.Is(err, federation.ErrTransient):
		return c.JSON(http.StatusServiceUnavailable, apierrors.NewProviderUnavailable(provider.String()))
	default:
		log.Ctx(ctx).Error().Err(err).Str("provider", provider.String()).Msg("token lookup failed")
		return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("token lookup failed"))
	}
}
