// Package middleware provides reusable HTTP middleware for the patrol
// API: bearer-token authentication, role enforcement, response caching
// and rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// JWTAuth returns an Echo middleware that validates a Bearer access
// token and injects the subject and roles claims into the request
// context.  Tokens are issued by the identity service; this service
// only verifies them with the shared secret.  Handlers can read the
// authenticated user via c.Get("user_id") and c.Get("roles").
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return unauthorized(c, "missing bearer token")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				// Only HMAC; reject tokens signed any other way.
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return unauthorized(c, "invalid token")
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return unauthorized(c, "invalid claims")
			}

			c.Set("user_id", claims["sub"])
			c.Set("roles", rolesFromClaims(claims))
			return next(c)
		}
	}
}

// rolesFromClaims normalises the roles claim.  The identity service
// issues a "roles" array; older tokens carry a single "role" string.
func rolesFromClaims(claims jwt.MapClaims) []string {
	if v, ok := claims["roles"].([]interface{}); ok {
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if s, ok := claims["role"].(string); ok && s != "" {
		return []string{s}
	}
	return nil
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": echo.Map{"code": "UNAUTHORIZED", "message": msg},
	})
}
