package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns a middleware that enforces that the
// authenticated user carries at least one of the given roles.  Patrol
// endpoints accept educators and admins; students never reach them.
// It assumes JWTAuth already stored the roles slice in the context.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v, ok := c.Get("roles").([]string)
			if ok {
				for _, r := range v {
					if allowed[r] {
						return next(c)
					}
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{
				"error": echo.Map{"code": "FORBIDDEN", "message": "insufficient role"},
			})
		}
	}
}
