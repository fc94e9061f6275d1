package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/internal/session"
)

func TestSetCookie(t *testing.T) {
	t.Run("development", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.SetCookie(rec, "sid-1", 24*time.Hour, session.CookieOptions{})

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		c := cookies[0]
		assert.Equal(t, session.DefaultCookieName, c.Name)
		assert.Equal(t, "sid-1", c.Value)
		assert.True(t, c.HttpOnly)
		assert.False(t, c.Secure)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
		assert.Equal(t, 86400, c.MaxAge)
	})

	t.Run("production", func(t *testing.T) {
		rec := httptest.NewRecorder()
		session.SetCookie(rec, "sid-1", time.Hour, session.CookieOptions{Production: true, Domain: "example.com"})

		c := rec.Result().Cookies()[0]
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteNoneMode, c.SameSite)
		assert.Equal(t, "example.com", c.Domain)
	})
}

func TestClearAndReadCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	session.ClearCookie(rec, session.CookieOptions{})
	c := rec.Result().Cookies()[0]
	assert.Equal(t, session.DefaultCookieName, c.Name)
	assert.Empty(t, c.Value)
	assert.Less(t, c.MaxAge, 0)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, session.ReadCookie(req, session.CookieOptions{}))

	req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "sid-2"})
	assert.Equal(t, "sid-2", session.ReadCookie(req, session.CookieOptions{}))
}
