package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rakeshthakkuri/skin-disease-S/internal/platform/auth"
)

// pollPaths are polled by orchestrators and scrapers; successful hits log
// at debug.
var pollPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
	"/metrics":   true,
}

// Logger writes one line per request. 4xx responses log at warn and 5xx or
// unmapped errors at error.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			status := c.Response().Status
			var evt *zerolog.Event
			switch he, isHTTP := err.(*echo.HTTPError); {
			case err == nil && pollPaths[req.URL.Path]:
				evt = logger.Debug()
			case err == nil:
				evt = logger.Info()
			case isHTTP && he.Code < 500:
				status = he.Code
				evt = logger.Warn().Err(err)
			default:
				if isHTTP {
					status = he.Code
				} else {
					status = 500
				}
				evt = logger.Error().Err(err)
			}

			rid, _ := c.Get("request_id").(string)
			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Str("user_id", auth.UserIDFromContext(req.Context())).
				Msg("request")

			return err
		}
	}
}
