package middlewares

import (
	"realtime_messaging_service/pkg/logger"
	t_token "realtime_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	//QueryToken token in query name, browsers cannot set headers on a websocket upgrade
	QueryToken = "auth"

	//CookieToken token in cookie name
	CookieToken = "auth_token"

	//TokenUserID get user form token, set c.locals name
	TokenUserID = "UserID"
)

// JWTMiddleware validates JWT from query, cookie, or Authorization header
func JWTMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			claims *t_token.Claims
			err    error
		)

		tokenStr := c.Query(QueryToken)
		// 如果查詢參數中沒有 token，則嘗試從 Cookie 中獲取
		if tokenStr == "" {
			tokenStr = c.Cookies(CookieToken)
		}

		switch {
		case tokenStr != "":
			claims, err = t_token.ParseJWT(tokenStr)
		case c.Get(fiber.HeaderAuthorization) != "":
			claims, err = t_token.ParseBearer(c.Get(fiber.HeaderAuthorization))
		default:
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing token",
			})
		}

		if err != nil {
			logger.Log.Debug("reject token", zap.String("path", c.Path()), zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}

		c.Locals(TokenUserID, claims.UserID)
		return c.Next()
	}
}

// UserID user put in Locals by JWTMiddleware
func UserID(c *fiber.Ctx) (string, bool) {
	id, ok := c.Locals(TokenUserID).(string)
	return id, ok && id != ""
}
