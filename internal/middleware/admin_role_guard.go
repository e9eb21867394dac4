package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

//contextに入っているユーザーが管理者かどうかを確認します。

func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawAdmin := c.Get(CtxIsAdminKey)
			isAdmin, ok := rawAdmin.(bool)
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("Unauthorized"))
			}

			//一般ユーザーは拒否、管理者だけ許可
			if !isAdmin {
				return c.JSON(http.StatusUnauthorized, errorJSON("Unauthorized"))
			}

			return next(c)
		}
	}
}
