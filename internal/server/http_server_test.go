package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pilab.hu/focusboard/config"
	apierrors "go.pilab.hu/focusboard/errors"
	"go.pilab.hu/focusboard/internal/server"
	"go.pilab.hu/focusboard/log"
)

func testConfig(env string) *config.ServerConfig {
	return &config.ServerConfig{AppEnv: env, HTTPPort: "3000"}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierrors.APIError {
	t.Helper()

	var body apierrors.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewHTTPServer(t *testing.T) {
	srv := server.NewHTTPServer(testConfig(config.EnvDevelopment), log.NewZerologAdapter(zerolog.Nop()), nil)

	assert.Equal(t, ":3000", srv.Addr)
	assert.NotZero(t, srv.ReadTimeout)
	assert.NotZero(t, srv.WriteTimeout)
	assert.NotNil(t, srv.Handler)
}

func TestNewEcho_ErrorRendering(t *testing.T) {
	e := server.NewEcho(testConfig(config.EnvProduction), log.NewZerologAdapter(zerolog.Nop()), nil)

	e.GET("/panic", func(c echo.Context) error {
		panic("boom")
	})
	e.GET("/api-error", func(c echo.Context) error {
		return apierrors.NewServerError("store offline")
	})
	e.GET("/bad", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad input")
	})

	t.Run("unknown route", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Not Found", decodeError(t, rec).Message)
		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
	})

	t.Run("panic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, apierrors.ServerError, decodeError(t, rec).Code)
	})

	t.Run("api error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api-error", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "store offline", decodeError(t, rec).Message)
	})

	t.Run("http error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/bad", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad input", decodeError(t, rec).Message)
	})
}
