package handlers

import (
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/anjiri1684/skillcoin/websocket"
	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const wsUserLocal = "ws_user_id"

// UpgradeCheck admits only authenticated websocket upgrade requests.
func (h *Handler) UpgradeCheck(c *fiber.Ctx) error {
	if !fiberws.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id := middleware.CallerID(c)
	if id == "" || h.hub == nil {
		return fiber.ErrUnauthorized
	}
	c.Locals(wsUserLocal, id)
	return c.Next()
}

// ServeWs keeps the connection registered with the hub until the client
// goes away. Clients only receive; inbound frames are discarded.
func (h *Handler) ServeWs(conn *fiberws.Conn) {
	userID, _ := conn.Locals(wsUserLocal).(string)
	client := &websocket.Client{UserID: userID, Conn: conn}
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
