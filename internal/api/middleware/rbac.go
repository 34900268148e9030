package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"

	"github.com/bizdesk/backoffice/internal/core/domain"
)

// RBAC gates a whole route on the caller's role. Per-record visibility is
// decided by the services, so passing RBAC only means the route is open to
// the role.
func RBAC(allowed ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(ContextRole).(string)
			if !slices.Contains(allowed, domain.Role(role)) {
				return echo.NewHTTPError(http.StatusForbidden, "role not permitted on this route")
			}
			return next(c)
		}
	}
}

// StaffOnly admits admins and employees.
func StaffOnly() echo.MiddlewareFunc {
	return RBAC(domain.RoleAdmin, domain.RoleEmployee)
}

// AdminOnly admits admins.
func AdminOnly() echo.MiddlewareFunc {
	return RBAC(domain.RoleAdmin)
}
