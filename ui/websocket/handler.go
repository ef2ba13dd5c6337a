package websocket

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// connTransport serializes writes; websocket.Conn allows one writer at a time.
type connTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *connTransport) Send(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *connTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteMessage(websocket.CloseMessage, []byte{})
	return t.conn.Close()
}

// RegisterRoutes mounts the real-time channel at /ws.
func RegisterRoutes(app fiber.Router, hub *Hub) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		sessionID := hub.Connect(&connTransport{conn: conn})
		defer hub.Disconnect(sessionID)

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.WithError(err).Debugf("[HUB] Read error on session %s", sessionID)
				}
				return
			}

			if messageType != websocket.TextMessage {
				logrus.Debugf("[HUB] Unsupported frame type %d on session %s", messageType, sessionID)
				continue
			}
			hub.HandleMessage(context.Background(), sessionID, message)
		}
	}))
}
