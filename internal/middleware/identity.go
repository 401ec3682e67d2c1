package middleware

import "github.com/labstack/echo/v4"

// Subject returns the token subject set by JWTAuth, or "anon" on
// unauthenticated routes.
func Subject(c echo.Context) string {
	if s, ok := c.Get(CtxSubject).(string); ok && s != "" {
		return s
	}
	return "anon"
}
