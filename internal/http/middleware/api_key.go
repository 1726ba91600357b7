package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
)

const ctxAPIKey = "api_key"

// APIKeyFromCtx returns the key accepted by APIKeyMiddleware.
func APIKeyFromCtx(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxAPIKey).(string)
	return v, ok && v != ""
}

// APIKeyMiddleware authenticates requests using the X-API-Key header (or a
// Bearer token) against the configured keys. No configured keys disables auth.
func APIKeyMiddleware(keys []string) echo.MiddlewareFunc {
	allowed := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			allowed = append(allowed, []byte(k))
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(allowed) == 0 {
				return next(c)
			}

			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				key = strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer "))
			}
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "missing api key"})
			}

			for _, a := range allowed {
				if subtle.ConstantTimeCompare(a, []byte(key)) == 1 {
					c.Set(ctxAPIKey, key)
					return next(c)
				}
			}
			return c.JSON(http.StatusUnauthorized, map[string]any{"success": false, "error": "invalid api key"})
		}
	}
}
