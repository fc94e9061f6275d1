package session

import (
	"net/http"
	"time"
)

// DefaultCookieName names the session cookie.
const DefaultCookieName = "focusboard.sid"

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Name   string
	Domain string
	// Production switches to Secure + SameSite=None so the dashboard can call
	// the API cross-site over TLS. Development uses SameSite=Lax over plain HTTP.
	Production bool
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return DefaultCookieName
	}
	return o.Name
}

func (o CookieOptions) sameSite() http.SameSite {
	if o.Production {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// SetCookie issues the session cookie to the client.
func SetCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     opts.name(),
		Value:    sessionID,
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		Secure:   opts.Production,
		SameSite: opts.sameSite(),
	})
}

// ClearCookie removes the session cookie from the client.
func ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     opts.name(),
		Value:    "",
		Path:     "/",
		Domain:   opts.Domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   opts.Production,
		SameSite: opts.sameSite(),
	})
}

// ReadCookie returns the session id carried by the request, if any.
func ReadCookie(r *http.Request, opts CookieOptions) string {
	c, err := r.Cookie(opts.name())
	if err != nil {
		return ""
	}
	return c.Value
}
