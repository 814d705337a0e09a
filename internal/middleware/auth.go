package middleware

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"rukun-service/internal/authz"
	"rukun-service/pkg/logger"
)

const (
	LoginPath       = "/auth/login"
	AdminAreaPath   = "/api/admin"
	SuperAreaPrefix = "/api/superadmin"
)

// AdminArea gates the tenant-admin route group. It only enforces "some valid
// session exists"; handlers still run their own fine-grained role and
// ownership checks.
func AdminArea(guard *authz.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := guard.Resolve(c)
			if claims == nil {
				return redirectToLogin(c)
			}
			return next(c)
		}
	}
}

// SuperAdminArea gates the super-admin route group. A valid session with the
// wrong role is softly downgraded into the ordinary admin area rather than
// shown an error.
func SuperAdminArea(guard *authz.Guard) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := guard.Resolve(c)
			if claims == nil {
				return redirectToLogin(c)
			}
			if !claims.Role.CanCrossUnits() {
				logger.FromContext(c).Warn("non-super session on super-admin area",
					zap.Uint("admin_id", claims.AdminID),
					zap.String("path", c.Request().URL.Path))
				return c.Redirect(http.StatusSeeOther, AdminAreaPath)
			}
			return next(c)
		}
	}
}

// redirectToLogin preserves the intended destination for a post-login
// redirect.
func redirectToLogin(c echo.Context) error {
	target := LoginPath + "?redirect=" + url.QueryEscape(c.Request().URL.RequestURI())
	return c.Redirect(http.StatusSeeOther, target)
}
