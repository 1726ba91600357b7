package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const corsAllowHeaders = "authorization, x-client-info, apikey, content-type, x-api-key"

// CORS answers every preflight with 200 and decorates all responses.
// An empty origin list allows any origin.
func CORS(origins []string) echo.MiddlewareFunc {
	allowed := map[string]bool{}
	for _, o := range origins {
		allowed[strings.TrimSpace(o)] = true
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			origin := c.Request().Header.Get(echo.HeaderOrigin)

			switch {
			case len(allowed) == 0 || allowed["*"]:
				h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			case allowed[origin]:
				h.Set(echo.HeaderAccessControlAllowOrigin, origin)
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
			}
			h.Set(echo.HeaderAccessControlAllowHeaders, corsAllowHeaders)
			h.Set(echo.HeaderAccessControlAllowMethods, "GET, POST, OPTIONS")

			if c.Request().Method == http.MethodOptions {
				return c.String(http.StatusOK, "ok")
			}
			return next(c)
		}
	}
}
