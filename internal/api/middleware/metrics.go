package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/api/metrics"
)

// Metrics records request count and latency per route template. Unmatched
// routes share the "unmatched" label to keep cardinality bounded.
//
// The HTTP error handler runs after the middleware chain, so for failed
// requests the response code is not written yet; statusOf resolves it the
// same way the error handler will.
func Metrics(statusOf func(error) int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			code := c.Response().Status
			if err != nil {
				code = statusOf(err)
			}

			metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(code)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}
