package websocket

import (
	"bytes"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Subscribers only ever send pings, so inbound frames stay small.
const maxInboundFrame = 4096

// Client is one feed subscriber. Row changes flow out through Send; the only
// traffic accepted from the subscriber is ping.
type Client struct {
	ID      string
	Advisor string
	Conn    *websocket.Conn
	Manager *Manager
	Send    chan []byte
}

func NewClient(id, advisor string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:      id,
		Advisor: advisor,
		Conn:    conn,
		Manager: manager,
		Send:    make(chan []byte, 256),
	}
}

func (c *Client) readPump() {
	defer func() {
		c.Manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxInboundFrame)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Manager.logger.Debug("subscriber read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		msgs, err := ParseFrame(frame)
		if err != nil {
			c.Manager.logger.Debug("malformed subscriber frame", zap.String("client_id", c.ID), zap.Error(err))
		}
		for _, msg := range msgs {
			if msg.Type != TypePing {
				c.Manager.logger.Debug("ignoring subscriber message",
					zap.String("client_id", c.ID),
					zap.String("type", string(msg.Type)),
				)
				continue
			}
			if !c.Manager.dispatch(&ClientMessage{Client: c, Message: msg}) {
				return
			}
		}
	}
}

// writePump drains Send. Whatever is queued when a write starts goes out in
// one frame, newline separated.
func (c *Client) writePump() {
	keepalive := time.NewTicker(c.Manager.pingPeriod)
	defer func() {
		keepalive.Stop()
		c.Conn.Close()
	}()

	var frame bytes.Buffer
	for {
		select {
		case first, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			frame.Reset()
			frame.Write(first)
			for queued := len(c.Send); queued > 0; queued-- {
				frame.WriteByte('\n')
				frame.Write(<-c.Send)
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame.Bytes()); err != nil {
				c.Manager.logger.Debug("subscriber write failed", zap.String("client_id", c.ID), zap.Error(err))
				return
			}

		case <-keepalive.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
