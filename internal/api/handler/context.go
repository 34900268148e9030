package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/api/middleware"
	"github.com/bizdesk/backoffice/internal/core/domain"
)

// ctxActor builds the acting identity from the claims injected by the Auth
// middleware and fails fast before any service call when they are absent.
func ctxActor(c echo.Context) (*domain.Actor, error) {
	id, _ := c.Get(middleware.ContextUserID).(string)
	role, _ := c.Get(middleware.ContextRole).(string)
	if id == "" || !domain.Role(role).Valid() {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	email, _ := c.Get(middleware.ContextEmail).(string)
	return &domain.Actor{ID: id, Role: domain.Role(role), Email: email}, nil
}

// bindAndValidate decodes the request into req and runs the struct validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}
