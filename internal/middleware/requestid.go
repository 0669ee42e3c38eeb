package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TraceIDKey is the context key under which the per-request trace id is
// stored.  Error payloads echo it back so a support request can be
// matched to the server logs.
const TraceIDKey = "trace_id"

// RequestID tags every request with a trace id, honouring an incoming
// X-Request-ID header so ids survive the gateway hop.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(TraceIDKey, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)
			return next(c)
		}
	}
}
