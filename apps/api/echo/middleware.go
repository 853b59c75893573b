package echoapi

import (
	"net/http"
	"strings"

	guuid "github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const headerUserAPIKey = "X-User-API-Key"

var (
	allowedMethods = strings.Join([]string{http.MethodPost, http.MethodOptions}, ", ")
	allowedHeaders = strings.Join([]string{echo.HeaderContentType, echo.HeaderAuthorization, headerUserAPIKey}, ", ")
)

func uuid() string {
	return guuid.NewString()
}

// allowOrigin picks the Access-Control-Allow-Origin value for a request Origin.
// An empty result means the origin is not allowed.
func allowOrigin(origins []string, origin string) string {
	if len(origins) == 0 {
		return "*"
	}
	for _, o := range origins {
		if o == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(o, origin) {
			return origin
		}
	}
	if len(origins) == 1 {
		return origins[0]
	}
	return ""
}

// cors puts the CORS headers on every response, errors included, and answers every OPTIONS request
// with an empty 200. It runs before routing so no handler, auth or body parsing is involved in preflights.
func cors(origins []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			h := ctx.Response().Header()
			allowed := allowOrigin(origins, ctx.Request().Header.Get(echo.HeaderOrigin))
			if allowed != "" {
				h.Set(echo.HeaderAccessControlAllowOrigin, allowed)
			}
			if allowed != "*" {
				h.Add(echo.HeaderVary, echo.HeaderOrigin)
			}
			h.Set(echo.HeaderAccessControlAllowMethods, allowedMethods)
			h.Set(echo.HeaderAccessControlAllowHeaders, allowedHeaders)

			if ctx.Request().Method == http.MethodOptions {
				return ctx.NoContent(http.StatusOK)
			}
			return next(ctx)
		}
	}
}
