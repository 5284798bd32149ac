package middleware

import (
	"storefront/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextのroleがADMINか確認する。TokenVersionGuardの後ろに置く
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || role == "" {
				return unauthorized(c)
			}
			if !model.Role(role).IsAdmin() {
				return forbidden(c, "admin only")
			}
			return next(c)
		}
	}
}
