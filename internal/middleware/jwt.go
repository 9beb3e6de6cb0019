package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/finiti-glossary/internal/utils"
)

// Context keys set by JWTAuth.
const (
    CtxUserID   = "user_id"
    CtxUsername = "username"
    CtxEmail    = "email"
    CtxRole     = "role"
    CtxIsAdmin  = "is_admin"
)

// TokenParser verifies an access token.  *utils.TokenIssuer satisfies it.
type TokenParser interface {
    Parse(raw string) (*utils.Claims, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects its claims into the request context.  Handlers read them
// back with c.Get(CtxUserID) and friends, or through Identity.
func JWTAuth(parser TokenParser) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Missing bearer token."})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims, err := parser.Parse(raw)
            if err != nil || claims.ID == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"message": "Invalid token."})
            }

            c.Set(CtxUserID, claims.ID)
            c.Set(CtxUsername, claims.Username)
            c.Set(CtxEmail, claims.Subject)
            c.Set(CtxRole, claims.Role)
            c.Set(CtxIsAdmin, claims.IsAdmin)
            return next(c)
        }
    }
}
