package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/hxbeeb/excalidraw/internal/auth"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/internal/middleware"
	"github.com/hxbeeb/excalidraw/internal/repository"
	"github.com/hxbeeb/excalidraw/internal/service"
	"github.com/hxbeeb/excalidraw/pkg/log"
	"github.com/hxbeeb/excalidraw/pkg/response"
)

const maxChatHistoryLimit = 500

// HTTPHandler serves the REST surface: accounts, room lookup and the
// bulk history endpoints clients use for replay.
type HTTPHandler struct {
	accounts service.AccountService
	store    repository.Store
	tokens   *auth.TokenManager
}

// NewHTTPHandler creates the REST handler.
func NewHTTPHandler(accounts service.AccountService, store repository.Store, tokens *auth.TokenManager) *HTTPHandler {
	return &HTTPHandler{accounts: accounts, store: store, tokens: tokens}
}

// RegisterRoutes mounts all REST routes plus the websocket entry point.
func (h *HTTPHandler) RegisterRoutes(r *gin.Engine, ws *WSHandler) {
	r.GET("/health", h.Health)
	r.GET("/ws", ws.Handle)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/signup", h.Signup)
			authGroup.POST("/login", h.Login)
		}

		rooms := v1.Group("/rooms")
		rooms.Use(middleware.Auth(h.tokens))
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("/:slug", h.GetRoom)
			rooms.GET("/:slug/chats", h.GetChatHistory)
			rooms.GET("/:slug/drawings", h.GetDrawingHistory)
		}
	}
}

// Health reports liveness.
func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// Signup registers a new account.
func (h *HTTPHandler) Signup(c *gin.Context) {
	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.accounts.Signup(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			response.Conflict(c, "email already registered")
			return
		}
		l := log.L()
		l.Error().Err(err).Msg("signup failed")
		response.InternalError(c, "failed to create account")
		return
	}

	response.Created(c, result)
}

// Login exchanges credentials for a bearer token.
func (h *HTTPHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.accounts.Login(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		l := log.L()
		l.Error().Err(err).Msg("login failed")
		response.InternalError(c, "failed to log in")
		return
	}

	response.Success(c, result)
}

// CreateRoom persists a new room with the caller as admin.
func (h *HTTPHandler) CreateRoom(c *gin.Context) {
	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.RoomName, middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRoom) {
			response.Conflict(c, "room already exists")
			return
		}
		l := log.L()
		l.Error().Err(err).Msg("room creation failed")
		response.InternalError(c, "failed to create room")
		return
	}

	response.Created(c, room)
}

// GetRoom returns a room record by slug.
func (h *HTTPHandler) GetRoom(c *gin.Context) {
	room, ok := h.findRoom(c)
	if !ok {
		return
	}
	response.Success(c, room)
}

// GetChatHistory returns up to `limit` messages in ascending creation
// order.
func (h *HTTPHandler) GetChatHistory(c *gin.Context) {
	room, ok := h.findRoom(c)
	if !ok {
		return
	}

	var query struct {
		Limit int `form:"limit,default=50"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if query.Limit <= 0 || query.Limit > maxChatHistoryLimit {
		query.Limit = 50
	}

	messages, err := h.store.ListChatMessages(c.Request.Context(), room.ID, query.Limit)
	if err != nil {
		l := log.L()
		l.Error().Str(log.FieldRoom, room.Slug).Err(err).Msg("chat history lookup failed")
		response.InternalError(c, "failed to load chat history")
		return
	}

	views := make([]domain.ChatMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, m.ToView())
	}
	response.Success(c, gin.H{"room": room.Slug, "messages": views})
}

// GetDrawingHistory returns the room's full replay log in creation
// order, for clients that need to rebuild the canvas from scratch.
func (h *HTTPHandler) GetDrawingHistory(c *gin.Context) {
	room, ok := h.findRoom(c)
	if !ok {
		return
	}

	actions, err := h.store.ListDrawingActions(c.Request.Context(), room.ID)
	if err != nil {
		l := log.L()
		l.Error().Str(log.FieldRoom, room.Slug).Err(err).Msg("drawing history lookup failed")
		response.InternalError(c, "failed to load drawing history")
		return
	}

	views := make([]domain.DrawingActionView, 0, len(actions))
	for _, a := range actions {
		views = append(views, a.ToView())
	}
	response.Success(c, gin.H{"room": room.Slug, "actions": views})
}

func (h *HTTPHandler) findRoom(c *gin.Context) (*domain.Room, bool) {
	slug := c.Param("slug")
	room, err := h.store.FindRoomBySlug(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
		} else {
			l := log.L()
			l.Error().Str(log.FieldRoom, slug).Err(err).Msg("room lookup failed")
			response.InternalError(c, "failed to load room")
		}
		return nil, false
	}
	return room, true
}
