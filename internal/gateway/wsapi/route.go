// Copyright (c) 2025 Justin Cranford

package wsapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Register mounts the privileged WebSocket endpoint at path, upgrading
// only requests that carry the websocket upgrade header.
func (s *Server) Register(app *fiber.App, path string) {
	app.Use(path, func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get(path, websocket.New(s.Upgrade))
}
