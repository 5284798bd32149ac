package middleware

import (
	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

// JWTのtvとDBのtoken_versionが一致するか確認。停止ユーザーも弾く
func TokenVersionGuard(userRepo repository.UserRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			//AuthJWTが入れた値
			userID, ok := c.Get(CtxUserIDKey).(int64)
			if !ok || userID <= 0 {
				return unauthorized(c)
			}
			tv, ok := c.Get(CtxTokenVersionKey).(int)
			if !ok || tv < 0 {
				return unauthorized(c)
			}

			user, err := userRepo.FindByID(c.Request().Context(), userID)
			if err != nil || user == nil {
				return unauthorized(c)
			}

			//logout-all後の古いトークン
			if user.TokenVersion != tv {
				return unauthorized(c)
			}
			if !user.IsActive {
				return forbidden(c, "forbidden")
			}

			//ロールはDBの値を正にする（降格を即時反映）
			c.Set(CtxUserRoleKey, string(user.Role))

			return next(c)
		}
	}
}
