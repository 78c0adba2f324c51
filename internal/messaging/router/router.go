package router

import (
	"context"

	"realtime_messaging_service/internal/messaging/app"
	"realtime_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes 註冊 messaging 路由; attachments may be nil when object storage is off
func RegisterRoutes(r *fiber.App, ws *app.MessagingWebsocketHandler, attachments *app.AttachmentHandler) {
	r.Get("/", app.ConnectCheck)

	secured := r.Group("/", middlewares.JWTMiddleware())
	secured.Post("/debug", app.DebugLogFlag)

	secured.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	secured.Get("/ws", websocket.New(func(c *websocket.Conn) {
		// 每條連線一個 Service
		ws.HandleConnection(context.Background(), c)
	}))

	if attachments != nil {
		secured.Post("/attachments", attachments.Upload)
		secured.Get("/attachments/url", attachments.URL)
		secured.Delete("/attachments", attachments.Delete)
	}
}
