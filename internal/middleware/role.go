package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// Roles carried in the "role" claim.
const (
	RoleWorker   = "WORKER"   // extraction workers pushing snapshots
	RoleOperator = "OPERATOR" // ops tooling: reads, publish sweeps
)

// RequireRole answers 403 unless the role stored by JWTAuth is in roles.
// It must run after JWTAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if role, _ := c.Get(CtxRole).(string); role == "" || !slices.Contains(roles, role) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "required_role": roles})
			}
			return next(c)
		}
	}
}
