package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	serrors "github.com/mythologiq/hearthlink-core/errors"
	"github.com/mythologiq/hearthlink-core/services"
)

// claimsContextKey is the echo context key holding the validated *services.Claims.
const claimsContextKey = "_auth_claims"

// Authn validates the bearer access credential on every request and stashes
// the verified claims in the request context. Every failure mode yields the
// same bare 401 so the boundary never acts as a revocation-state oracle.
func Authn(auth *services.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get("Authorization"))
			if !ok {
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
			}

			claims, err := auth.Validate(c.Request().Context(), token)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, serrors.NewUnauthorized("authentication required"))
			}

			c.Set(claimsContextKey, claims)
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), parts[1] != ""
}

// ClaimsFromContext retrieves the validated claims stashed by Authn.
func ClaimsFromContext(c echo.Context) (*services.Claims, bool) {
	claims, ok := c.Get(claimsContextKey).(*services.Claims)
	return claims, ok
}
