package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AdityaGahukar/PingWave/internal/auth"
	"github.com/AdityaGahukar/PingWave/internal/config"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/hub"
	"github.com/AdityaGahukar/PingWave/internal/presence"
	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/response"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler handles the authenticated WebSocket handshake.
type WSHandler struct {
	validator   *auth.Validator
	broadcaster *presence.Broadcaster
	wsCfg       config.WebSocketConfig
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(validator *auth.Validator, broadcaster *presence.Broadcaster, wsCfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		validator:   validator,
		broadcaster: broadcaster,
		wsCfg:       wsCfg,
	}
}

// RegisterRoutes registers the WebSocket endpoint.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket authenticates the session cookie and, only then,
// upgrades the connection and registers the handle. A failed token
// never produces a registry entry: rejection happens before upgrade.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	token, _ := c.Cookie(auth.CookieName)
	user, err := h.validator.Validate(ctx, token)
	if err != nil {
		reason := domain.HandshakeInvalidToken
		switch {
		case errors.Is(err, auth.ErrNoToken):
			reason = domain.HandshakeNoToken
		case errors.Is(err, auth.ErrUserGone):
			reason = domain.HandshakeUserNotFound
		case errors.Is(err, auth.ErrInvalidToken):
			reason = domain.HandshakeInvalidToken
		default:
			l.Error().Err(err).Msg("handshake token validation failed")
		}

		l.Warn().Str("reason", reason).Msg("websocket handshake rejected")
		response.Unauthorized(c, reason)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), user.ID, conn, h.wsCfg)

	h.broadcaster.Connected(client)

	go client.WritePump()
	go client.ReadPump(func(cl *hub.Client) {
		h.broadcaster.Disconnected(cl)
	})
}
