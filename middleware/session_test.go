package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/session"
)

type stubLoader struct {
	sessions map[string]*domain.Session
	err      error
}

func (s stubLoader) Load(_ context.Context, id string) (*domain.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s stubLoader) TTL() time.Duration { return time.Hour }

func runSession(t *testing.T, loader SessionLoader, cookie string) (*httptest.ResponseRecorder, *domain.Session) {
	t.Helper()

	opts := session.CookieOptions{}
	e := echo.New()

	var seen *domain.Session
	e.GET("/", func(c echo.Context) error {
		seen = SessionFrom(c)
		return c.NoContent(http.StatusNoContent)
	}, Session(loader, opts))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: cookie})
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec, seen
}

func TestSession_LoadsFromCookie(t *testing.T) {
	stored := loggedInSession()
	loader := stubLoader{sessions: map[string]*domain.Session{stored.ID: stored}}

	rec, sess := runSession(t, loader, stored.ID)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Same(t, stored, sess)
}

func TestSession_AnonymousFallback(t *testing.T) {
	loader := stubLoader{sessions: map[string]*domain.Session{}}

	for _, cookie := range []string{"", "expired-id"} {
		rec, sess := runSession(t, loader, cookie)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.NotNil(t, sess)
		assert.False(t, sess.IsAuthenticated())
		assert.NotEqual(t, "expired-id", sess.ID)
		assert.Empty(t, rec.Header().Get("Set-Cookie"))
	}
}

func TestSession_StoreFailure(t *testing.T) {
	loader := stubLoader{err: errors.New("redis: connection refused")}

	rec, sess := runSession(t, loader, "some-id")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Nil(t, sess)
	assert.NotContains(t, rec.Body.String(), "redis")
}
