package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"go.pilab.hu/focusboard/log"
)

const tracerName = "go.pilab.hu/focusboard/middleware"

// RequestLogger starts a span per request, attaches a request scoped zerolog
// logger to the request context and logs the outcome through logger.
func RequestLogger(logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			ctx, span := otel.Tracer(tracerName).Start(req.Context(), req.Method+" "+c.Path())
			defer span.End()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			reqLogger := zlog.Ctx(ctx).With().Str("request_id", requestID).Logger()
			ctx = reqLogger.WithContext(ctx)
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			if err != nil {
				// Let echo write the error response so the final status is known.
				c.Error(err)
				span.RecordError(err)
			}

			fields := map[string]interface{}{
				"request_id": requestID,
				"method":     req.Method,
				"path":       c.Path(),
				"status":     c.Response().Status,
				"latency":    time.Since(start).String(),
				"ip":         c.RealIP(),
				"user_agent": req.UserAgent(),
			}
			if err != nil {
				logger.Error(ctx, "HTTP request", err, fields)
			} else {
				logger.Info(ctx, "HTTP request", fields)
			}

			return nil
		}
	}
}
