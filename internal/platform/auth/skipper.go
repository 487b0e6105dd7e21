package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass token parsing entirely. Public API routes still run the
// middleware so an optional token can personalise the response.
var publicPaths = map[string]bool{
	"/health":      true,
	"/health/db":   true,
	"/health/deps": true,
}

// Skipper returns true for infrastructure endpoints.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path bypasses the auth middleware.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
