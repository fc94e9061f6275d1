package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	echoapi "go.pilab.hu/focusboard/api/echo"
	"go.pilab.hu/focusboard/config"
	apierrors "go.pilab.hu/focusboard/errors"
	"go.pilab.hu/focusboard/log"
	"go.pilab.hu/focusboard/middleware"
)

// NewEcho builds the echo instance with the shared middleware chain and the API routes.
func NewEcho(cfg *config.ServerConfig, appLogger log.Logger, api *echoapi.API) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.HTTPErrorHandler = errorHandler(appLogger)

	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(appLogger))
	e.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	if api == nil {
		appLogger.Error(context.Background(), "API not provided, no routes registered", nil)
	} else {
		api.RegisterRoutes(e)
	}

	return e
}

// NewHTTPServer creates the HTTP server serving the API.
func NewHTTPServer(cfg *config.ServerConfig, appLogger log.Logger, api *echoapi.API) *http.Server {
	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      NewEcho(cfg, appLogger, api),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// errorHandler renders errors that escaped the handlers as APIError bodies.
func errorHandler(appLogger log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := apierrors.NewServerError("internal server error")

		var apiErr *apierrors.APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
			body = apiErr
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = &apierrors.APIError{Message: fmt.Sprint(httpErr.Message)}
			if status == http.StatusTooManyRequests {
				body = apierrors.NewTooManyRequests()
			}
		}

		if status >= http.StatusInternalServerError {
			appLogger.Error(c.Request().Context(), "request failed", err, map[string]interface{}{
				"path": c.Request().URL.Path,
			})
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}
