package middleware // middleware provides shared request processing for handlers

import (
    "net/http" // http package defines standard HTTP status codes
    "strings"

    "github.com/labstack/echo/v4" // echo provides middleware chaining and context
)

// RequireRole returns a middleware that lets the request through only when
// the authenticated user's role is one of roles (compared case
// insensitively).  Users carrying the isAdmin claim pass any check that
// allows the Admin role.  It assumes JWTAuth ran first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[strings.ToLower(r)] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            role, _ := c.Get(CtxRole).(string)
            isAdmin, _ := c.Get(CtxIsAdmin).(bool)
            if allowed[strings.ToLower(role)] || (isAdmin && allowed["admin"]) {
                return next(c)
            }
            return c.JSON(http.StatusForbidden, echo.Map{"message": "Forbidden."})
        }
    }
}
