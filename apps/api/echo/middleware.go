package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kumoedu/kumo/core/user"
)

// requireRoles gates an endpoint on role membership.
// An empty role set only requires authentication, any role passes.
func requireRoles(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if len(roles) == 0 {
				return next(ctx)
			}
			for _, role := range roles {
				if claims.Role == role {
					return next(ctx)
				}
			}
			return errHTTPForbidden
		}
	}
}

// adminMiddleware restricts an endpoint to admins.
func adminMiddleware() echo.MiddlewareFunc {
	return requireRoles(user.RoleAdmin)
}
