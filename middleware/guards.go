package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/focusboard/domain"
	apierrors "go.pilab.hu/focusboard/errors"
)

// Decision is the outcome of a guard predicate. Reason is set whenever
// Allowed is false.
type Decision struct {
	Allowed bool
	Reason  string
}

var allow = Decision{Allowed: true}

// RequiresAppLogin allows sessions bound to an application login.
func RequiresAppLogin(sess *domain.Session) Decision {
	if !sess.IsAuthenticated() {
		return Decision{Reason: apierrors.AppLoginRequired}
	}
	return allow
}

// RequiresProvider allows sessions that are logged in and have the provider
// identity attached.
func RequiresProvider(sess *domain.Session, provider domain.Provider) Decision {
	if d := RequiresAppLogin(sess); !d.Allowed {
		return d
	}
	if _, ok := sess.Identity(provider); !ok {
		return Decision{Reason: apierrors.ProviderAuthRequired + ":" + provider.String()}
	}
	return allow
}

// RequireAppLogin rejects requests whose session has no application login.
func RequireAppLogin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if d := RequiresAppLogin(SessionFrom(c)); !d.Allowed {
				return deny(c, d, apierrors.NewAppLoginRequired())
			}
			return next(c)
		}
	}
}

// RequireProvider guards provider-scoped routes. The provider is read from
// the route parameter param.
func RequireProvider(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provider, err := domain.ParseProvider(c.Param(param))
			if err != nil {
				return c.JSON(http.StatusNotFound, apierrors.NewUnknownProvider(c.Param(param)))
			}

			d := RequiresProvider(SessionFrom(c), provider)
			if !d.Allowed {
				body := apierrors.NewProviderAuthRequired(provider.String())
				if d.Reason == apierrors.AppLoginRequired {
					body = apierrors.NewAppLoginRequired()
				}
				return deny(c, d, body)
			}

			return next(c)
		}
	}
}

func deny(c echo.Context, d Decision, body *apierrors.APIError) error {
	log.Ctx(c.Request().Context()).Debug().
		Str("path", c.Path()).
		Str("reason", d.Reason).
		Msg("request rejected by guard")

	body.Code = d.Reason
	return c.JSON(http.StatusUnauthorized, body)
}
