package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

// Client is one live authenticated connection. The identity fields are
// set at handshake and never change; room membership lives in the hub.
type Client struct {
	ID        string
	UserID    string
	UserName  string
	UserEmail string

	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	cfg config.WebSocketConfig
}

// NewClient wraps an upgraded connection with its authenticated identity.
func NewClient(id string, identity domain.UserRef, h *Hub, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 256
	}
	return &Client{
		ID:        id,
		UserID:    identity.ID,
		UserName:  identity.Name,
		UserEmail: identity.Email,
		Hub:       h,
		Conn:      conn,
		Send:      make(chan []byte, buffer),
		cfg:       cfg,
	}
}

// Ref returns the client's public identity.
func (c *Client) Ref() domain.UserRef {
	return domain.UserRef{ID: c.UserID, Name: c.UserName, Email: c.UserEmail}
}

// ReadPump reads frames sequentially off the connection and feeds them
// to onFrame. When the transport closes or errors, onDisconnect runs
// exactly once and the connection is torn down.
func (c *Client) ReadPump(onFrame func(*Client, []byte), onDisconnect func(*Client)) {
	defer func() {
		onDisconnect(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			break
		}

		onFrame(c, message)
	}
}

// WritePump drains the send buffer onto the transport and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendFrame marshals a frame into the client's send buffer. A full
// buffer drops the frame; delivery is best-effort.
func (c *Client) SendFrame(frame interface{}) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
		l := log.L()
		l.Warn().Str(log.FieldConnID, c.ID).Str(log.FieldUserID, c.UserID).Msg("send buffer full, frame dropped")
	}
	return nil
}
