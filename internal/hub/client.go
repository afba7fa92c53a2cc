package hub

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AdityaGahukar/PingWave/internal/config"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/pkg/log"
)

// ErrSendBufferFull is returned by Push when the connection cannot keep
// up. The handle is presumed dead; its read pump will tear it down.
var ErrSendBufferFull = errors.New("client send buffer full")

// Client is one authenticated WebSocket connection. It satisfies
// registry.Handle. A client is created only after the handshake token
// has been validated, so it always belongs to a known user.
type Client struct {
	id        string
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	createdAt time.Time
	cfg       config.WebSocketConfig
}

// NewClient wraps an upgraded connection for the given user.
func NewClient(id, userID string, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		id:        id,
		userID:    userID,
		conn:      conn,
		send:      make(chan []byte, cfg.SendBufferSize),
		createdAt: time.Now(),
		cfg:       cfg,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// UserID returns the owning user's id.
func (c *Client) UserID() string { return c.userID }

// CreatedAt returns when the connection was established.
func (c *Client) CreatedAt() time.Time { return c.createdAt }

// Push queues an event for delivery. It never blocks: when the send
// buffer is full the event is dropped and ErrSendBufferFull returned.
func (c *Client) Push(event string, payload interface{}) error {
	data, err := json.Marshal(domain.Event{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// ReadPump consumes the connection until it drops, keeping the read
// deadline fresh from pongs. onClose runs exactly once, after the
// connection is gone; the handler uses it to deregister the client.
func (c *Client) ReadPump(onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		// Clients only listen on this channel; inbound frames are
		// drained to service control messages.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Debug().Err(err).Str(log.FieldConnID, c.id).Msg("websocket read error")
			}
			return
		}
	}
}

// WritePump drains the send buffer onto the wire and keeps the
// connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
