package middleware

// identity.go turns the claims JWTAuth stored in the Echo context back into
// a caller identity for handlers and for cache/rate-limit keys.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/finiti-glossary/internal/glossary"
)

// Identity returns the authenticated caller.  The zero Caller is returned
// for anonymous requests.
func Identity(c echo.Context) glossary.Caller {
    id, _ := c.Get(CtxUserID).(string)
    role, _ := c.Get(CtxRole).(string)
    isAdmin, _ := c.Get(CtxIsAdmin).(bool)
    return glossary.Caller{ID: id, Role: role, IsAdmin: isAdmin}
}

// userID returns the caller id for keys, or "guest" when nobody is
// authenticated.
func userID(c echo.Context) string {
    if id, _ := c.Get(CtxUserID).(string); id != "" {
        return id
    }
    return "guest"
}
