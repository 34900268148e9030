package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bizdesk/backoffice/internal/api/handler"
	"github.com/bizdesk/backoffice/internal/api/metrics"
	"github.com/bizdesk/backoffice/internal/core/domain"
)

// ErrorOptions tunes how domain errors are rendered.
type ErrorOptions struct {
	// HideForbidden renders Forbidden as NotFound so callers cannot tell a
	// hidden entity from a missing one.
	HideForbidden bool
}

type resolved struct {
	status int
	code   string
	msg    string
	// reason is the rejection label recorded in metrics, if any.
	reason string
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error kinds to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<kind>"}.
func NewHTTPErrorHandler(log zerolog.Logger, opts ErrorOptions) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		r := resolveError(err, opts)
		if r.reason != "" {
			metrics.OrderRejectionsTotal.WithLabelValues(r.reason).Inc()
		}
		if r.status == http.StatusInternalServerError {
			// Unexpected error: log the real cause, return a generic message.
			log.Error().
				Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(r.status)
			return
		}
		_ = c.JSON(r.status, handler.ErrorResponse{Error: r.msg, Code: r.code})
	}
}

// StatusCode returns the HTTP status the error handler will render for err.
func StatusCode(opts ErrorOptions) func(error) int {
	return func(err error) int { return resolveError(err, opts).status }
}

func resolveError(err error, opts ErrorOptions) resolved {
	// Echo's own errors (bind failures, 404 from router, auth middleware, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return resolved{status: he.Code, code: httpCode(he.Code), msg: fmt.Sprintf("%v", he.Message)}
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return resolved{status: http.StatusBadRequest, code: "validation_error", msg: err.Error()}
	case errors.Is(err, domain.ErrInsufficientStock):
		return resolved{status: http.StatusConflict, code: "insufficient_stock", msg: err.Error(), reason: "insufficient_stock"}
	case errors.Is(err, domain.ErrInvalidTransition):
		return resolved{status: http.StatusUnprocessableEntity, code: "invalid_transition", msg: err.Error(), reason: "invalid_transition"}
	case errors.Is(err, domain.ErrForbidden):
		if opts.HideForbidden {
			return resolved{status: http.StatusNotFound, code: "not_found", msg: "not found", reason: "forbidden"}
		}
		return resolved{status: http.StatusForbidden, code: "forbidden", msg: "access forbidden", reason: "forbidden"}
	case errors.Is(err, domain.ErrNotFound):
		return resolved{status: http.StatusNotFound, code: "not_found", msg: err.Error()}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return resolved{status: http.StatusUnauthorized, code: "unauthorized", msg: "invalid credentials"}
	case errors.Is(err, domain.ErrUserExists):
		return resolved{status: http.StatusConflict, code: "conflict", msg: "user already exists"}
	case errors.Is(err, domain.ErrDuplicateSKU):
		return resolved{status: http.StatusConflict, code: "conflict", msg: "sku already exists"}
	}

	return resolved{status: http.StatusInternalServerError, code: "internal", msg: "internal server error"}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	}
	if status >= 500 {
		return "internal"
	}
	return "error"
}
