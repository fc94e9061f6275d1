package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	apierrors "go.pilab.hu/focusboard/errors"
)

// Limits of the stricter limiter placed on login and OAuth callbacks.
const (
	AuthRateLimitRequests = 5
	AuthRateLimitWindow   = 5 * time.Minute
)

// RateLimit allows max requests per window and client IP, refilled evenly
// over the window.
func RateLimit(max int, window time.Duration) echo.MiddlewareFunc {
	if max <= 0 || window <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(max) / window.Seconds()),
		Burst:     max,
		ExpiresIn: window,
	})

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, apierrors.NewInvalidRequest("client identifier unavailable"))
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			log.Ctx(c.Request().Context()).Warn().
				Str("ip", identifier).
				Str("path", c.Path()).
				Msg("rate limit exceeded")
			return c.JSON(http.StatusTooManyRequests, apierrors.NewTooManyRequests())
		},
	})
}

// AuthRateLimit is RateLimit with the login limits.
func AuthRateLimit() echo.MiddlewareFunc {
	return RateLimit(AuthRateLimitRequests, AuthRateLimitWindow)
}
