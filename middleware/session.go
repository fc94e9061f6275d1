package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/focusboard/cache"
	"go.pilab.hu/focusboard/domain"
	apierrors "go.pilab.hu/focusboard/errors"
	"go.pilab.hu/focusboard/internal/session"
)

const sessionContextKey = "focusboard.session"

// SessionLoader resolves session ids taken from the cookie.
type SessionLoader interface {
	Load(ctx context.Context, id string) (*domain.Session, error)
	TTL() time.Duration
}

// Session puts the session named by the cookie into the echo context.
// Requests without a live session get a fresh anonymous one, which is not
// persisted until something is written to it.
func Session(loader SessionLoader, opts session.CookieOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()

			var sess *domain.Session
			if id := session.ReadCookie(req, opts); id != "" {
				loaded, err := loader.Load(ctx, id)
				switch {
				case err == nil:
					sess = loaded
				case errors.Is(err, domain.ErrSessionNotFound):
				default:
					log.Ctx(ctx).Error().Err(err).Msg("failed to load session")
					return c.JSON(http.StatusInternalServerError, apierrors.NewServerError("session store unavailable"))
				}
			}
			if sess == nil {
				sess = domain.NewSession(uuid.NewString(), time.Now(), loader.TTL())
			}

			logger := log.Ctx(ctx).With().Str("session_id", cache.Fingerprint(sess.ID)).Logger()
			c.SetRequest(req.WithContext(logger.WithContext(ctx)))
			c.Set(sessionContextKey, sess)

			return next(c)
		}
	}
}

// SessionFrom returns the session loaded by Session, or nil.
func SessionFrom(c echo.Context) *domain.Session {
	sess, _ := c.Get(sessionContextKey).(*domain.Session)
	return sess
}

// SetSession replaces the session of the request, for example after login.
func SetSession(c echo.Context, sess *domain.Session) {
	c.Set(sessionContextKey, sess)
}
