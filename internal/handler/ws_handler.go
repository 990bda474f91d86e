package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hxbeeb/excalidraw/internal/audit"
	"github.com/hxbeeb/excalidraw/internal/auth"
	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/internal/hub"
	"github.com/hxbeeb/excalidraw/internal/service"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

// WSHandler upgrades HTTP requests to hub connections and routes
// inbound frames to the room service.
type WSHandler struct {
	hub      *hub.Hub
	tokens   *auth.TokenManager
	rooms    service.RoomService
	cfg      config.WebSocketConfig
	upgrader websocket.Upgrader
}

// NewWSHandler creates the websocket entry point.
func NewWSHandler(h *hub.Hub, tokens *auth.TokenManager, rooms service.RoomService, cfg config.WebSocketConfig) *WSHandler {
	return &WSHandler{
		hub:    h,
		tokens: tokens,
		rooms:  rooms,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handle authenticates and upgrades a connection. An absent or invalid
// credential closes the socket with a policy-violation close code
// before any application frame is exchanged.
func (h *WSHandler) Handle(c *gin.Context) {
	token := extractToken(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		deadline := time.Now().Add(h.cfg.WriteWait)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"), deadline)
		conn.Close()
		audit.Log(c.Request.Context(), audit.ActionAuthFailed, "", "websocket authentication failed")
		return
	}

	identity := domain.UserRef{ID: claims.ID, Name: claims.Name, Email: claims.Email}
	client := hub.NewClient(uuid.New().String(), identity, h.hub, conn, h.cfg)
	h.hub.Register(client)

	connLogger := log.L().With().
		Str(log.FieldConnID, client.ID).
		Str(log.FieldUserID, client.UserID).
		Str(log.FieldUserName, client.UserName).
		Logger()
	ctx := log.WithLogger(context.Background(), connLogger)

	go client.WritePump()

	client.SendFrame(&domain.WelcomeFrame{
		Type:      domain.FrameWelcome,
		Message:   "Connected to collaboration server",
		Timestamp: domain.Timestamp(),
	})
	audit.Log(ctx, audit.ActionConnect, client.UserID, "websocket connected")

	client.ReadPump(
		func(cl *hub.Client, raw []byte) { h.route(ctx, cl, raw) },
		func(cl *hub.Client) { h.rooms.HandleDisconnect(ctx, cl) },
	)
}

// route dispatches one inbound frame. The operation set is closed: an
// unknown or unparsable frame gets a generic acknowledgment and the
// connection stays open.
func (h *WSHandler) route(ctx context.Context, c *hub.Client, raw []byte) {
	var base domain.BaseFrame
	if err := json.Unmarshal(raw, &base); err != nil {
		h.acknowledge(c)
		return
	}

	switch base.Type {
	case domain.FrameJoinRoom:
		var frame domain.JoinRoomFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleJoinRoom(ctx, c, frame)

	case domain.FrameLeaveRoom:
		var frame domain.LeaveRoomFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleLeaveRoom(ctx, c, frame)

	case domain.FrameSendMessage:
		var frame domain.SendMessageFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleSendMessage(ctx, c, frame)

	case domain.FrameCreateRoom:
		var frame domain.CreateRoomFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleCreateRoom(ctx, c, frame)

	case domain.FrameGetChatHistory:
		var frame domain.ChatHistoryRequestFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleChatHistory(ctx, c, frame)

	case domain.FrameDrawingAction:
		var frame domain.DrawingActionFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleDrawingAction(ctx, c, frame)

	case domain.FrameClearCanvas:
		var frame domain.ClearCanvasFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleClearCanvas(ctx, c, frame)

	case domain.FrameClearAll:
		var frame domain.ClearAllFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleClearAll(ctx, c, frame)

	case domain.FrameClearMessages:
		var frame domain.ClearMessagesFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleClearMessages(ctx, c, frame)

	case domain.FrameUserJoined:
		var frame domain.UserJoinedFrame
		if !h.decode(c, raw, &frame) {
			return
		}
		h.rooms.HandleUserJoined(ctx, c, frame)

	default:
		l := log.Ctx(ctx)
		l.Debug().Str(log.FieldFrameType, base.Type).Msg("unknown frame type")
		h.acknowledge(c)
	}
}

func (h *WSHandler) decode(c *hub.Client, raw []byte, dst interface{}) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		h.acknowledge(c)
		return false
	}
	return true
}

func (h *WSHandler) acknowledge(c *hub.Client) {
	c.SendFrame(&domain.ResponseFrame{
		Type:      domain.FrameResponse,
		Message:   "Message received",
		Timestamp: domain.Timestamp(),
	})
}

// extractToken reads the credential from the `token` query parameter,
// falling back to the Authorization header.
func extractToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
