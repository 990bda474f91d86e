package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hxbeeb/excalidraw/internal/audit"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/internal/hub"
	"github.com/hxbeeb/excalidraw/internal/presence"
	"github.com/hxbeeb/excalidraw/internal/repository"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

const defaultChatHistoryLimit = 50

// RoomService executes the room hub operations on behalf of a live
// connection. Every handler validates, talks to the store under a
// bounded context, and only then fans out to room members: a frame is
// never broadcast unless its durable effect succeeded.
type RoomService interface {
	HandleJoinRoom(ctx context.Context, c *hub.Client, frame domain.JoinRoomFrame)
	HandleLeaveRoom(ctx context.Context, c *hub.Client, frame domain.LeaveRoomFrame)
	HandleSendMessage(ctx context.Context, c *hub.Client, frame domain.SendMessageFrame)
	HandleCreateRoom(ctx context.Context, c *hub.Client, frame domain.CreateRoomFrame)
	HandleChatHistory(ctx context.Context, c *hub.Client, frame domain.ChatHistoryRequestFrame)
	HandleDrawingAction(ctx context.Context, c *hub.Client, frame domain.DrawingActionFrame)
	HandleClearCanvas(ctx context.Context, c *hub.Client, frame domain.ClearCanvasFrame)
	HandleClearAll(ctx context.Context, c *hub.Client, frame domain.ClearAllFrame)
	HandleClearMessages(ctx context.Context, c *hub.Client, frame domain.ClearMessagesFrame)
	HandleUserJoined(ctx context.Context, c *hub.Client, frame domain.UserJoinedFrame)
	HandleDisconnect(ctx context.Context, c *hub.Client)
}

type roomService struct {
	hub       *hub.Hub
	store     repository.Store
	presence  presence.Tracker
	opTimeout time.Duration
}

// NewRoomService wires the hub operations to their collaborators.
func NewRoomService(h *hub.Hub, store repository.Store, tracker presence.Tracker, opTimeout time.Duration) RoomService {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &roomService{
		hub:       h,
		store:     store,
		presence:  tracker,
		opTimeout: opTimeout,
	}
}

// storeCtx bounds a single store call so a stalled backend surfaces as
// STORAGE_ERROR instead of wedging the connection's read loop.
func (s *roomService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// findRoom resolves a slug to its durable room, reporting failures to
// the caller only.
func (s *roomService) findRoom(ctx context.Context, c *hub.Client, slug string) (*domain.Room, bool) {
	if slug == "" {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "roomName is required"))
		return nil, false
	}

	opCtx, cancel := s.storeCtx(ctx)
	defer cancel()

	room, err := s.store.FindRoomBySlug(opCtx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeNotFound, "room not found"))
		} else {
			s.storageError(c, slug, "find room", err)
		}
		return nil, false
	}
	return room, true
}

// requireMember enforces the membership precondition shared by most
// room-scoped operations.
func (s *roomService) requireMember(c *hub.Client, room string) bool {
	if !s.hub.IsMember(c, room) {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeNotInRoom, "you are not a member of this room"))
		return false
	}
	return true
}

func (s *roomService) storageError(c *hub.Client, room, op string, err error) {
	l := log.L()
	l.Error().Str(log.FieldRoom, room).Str(log.FieldConnID, c.ID).Err(err).Msgf("storage failure during %s", op)
	c.SendFrame(domain.NewErrorFrame(domain.ErrCodeStorageError, "storage operation failed"))
}

// HandleJoinRoom adds the room to the caller's membership set and
// answers with the room record, recent chat history and the caller's
// admin flag, followed by the current roster.
func (s *roomService) HandleJoinRoom(ctx context.Context, c *hub.Client, frame domain.JoinRoomFrame) {
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	messages, err := s.store.ListChatMessages(opCtx, room.ID, defaultChatHistoryLimit)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "list chat history", err)
		return
	}

	if !s.hub.JoinRoom(c, room.Slug) {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeUnauthorized, "connection is not registered"))
		return
	}
	if err := s.presence.Register(ctx, room.Slug); err != nil {
		l := log.L()
		l.Warn().Str(log.FieldRoom, room.Slug).Err(err).Msg("presence register failed")
	}

	isAdmin := room.AdminID == c.UserID
	c.SendFrame(&domain.ResponseFrame{
		Type:        domain.FrameResponse,
		Message:     "Room joined successfully",
		Room:        room,
		ChatHistory: chatViews(messages),
		IsAdmin:     &isAdmin,
		Timestamp:   domain.Timestamp(),
	})
	s.sendRoster(c, room.Slug)

	audit.LogWithDetail(ctx, audit.ActionJoinRoom, c.UserID, room.Slug, "user joined room")
}

// HandleLeaveRoom removes the room from the caller's membership set.
// No acknowledgment is sent.
func (s *roomService) HandleLeaveRoom(ctx context.Context, c *hub.Client, frame domain.LeaveRoomFrame) {
	if frame.RoomName == "" {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "roomName is required"))
		return
	}

	s.hub.LeaveRoom(c, frame.RoomName)
	s.roomEmptied(ctx, frame.RoomName)

	s.hub.Broadcast(frame.RoomName, &domain.UserLeftFrame{
		Type:      domain.FrameUserLeft,
		RoomName:  frame.RoomName,
		UserID:    c.UserID,
		Timestamp: domain.Timestamp(),
	}, c.ID)

	audit.LogWithDetail(ctx, audit.ActionLeaveRoom, c.UserID, frame.RoomName, "user left room")
}

// HandleSendMessage persists a chat message and, only on success,
// broadcasts it to every member of the room including the sender.
func (s *roomService) HandleSendMessage(ctx context.Context, c *hub.Client, frame domain.SendMessageFrame) {
	if frame.Message == "" {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "message must not be empty"))
		return
	}
	if !s.requireMember(c, frame.RoomName) {
		return
	}
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	msg, err := s.store.CreateChatMessage(opCtx, room.ID, c.UserID, frame.Message)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "persist chat message", err)
		return
	}

	s.hub.Broadcast(room.Slug, &domain.MessageFrame{
		Type:      domain.FrameMessage,
		RoomName:  room.Slug,
		Message:   msg.Message,
		UserID:    c.UserID,
		UserName:  c.UserName,
		UserEmail: c.UserEmail,
		MessageID: msg.ID,
		Timestamp: domain.Timestamp(),
	}, "")

	audit.LogWithDetail(ctx, audit.ActionSendMessage, c.UserID, room.Slug, "chat message sent")
}

// HandleCreateRoom persists a new room with the caller as admin and
// joins the caller to it.
func (s *roomService) HandleCreateRoom(ctx context.Context, c *hub.Client, frame domain.CreateRoomFrame) {
	if frame.RoomName == "" {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "roomName is required"))
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	room, err := s.store.CreateRoom(opCtx, frame.RoomName, c.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateRoom) {
			c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "room already exists"))
		} else {
			s.storageError(c, frame.RoomName, "create room", err)
		}
		return
	}

	if !s.hub.JoinRoom(c, room.Slug) {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeUnauthorized, "connection is not registered"))
		return
	}
	if err := s.presence.Register(ctx, room.Slug); err != nil {
		l := log.L()
		l.Warn().Str(log.FieldRoom, room.Slug).Err(err).Msg("presence register failed")
	}

	isAdmin := true
	c.SendFrame(&domain.ResponseFrame{
		Type:      domain.FrameResponse,
		Message:   "Room created successfully",
		Room:      room,
		IsAdmin:   &isAdmin,
		Timestamp: domain.Timestamp(),
	})

	audit.LogWithDetail(ctx, audit.ActionCreateRoom, c.UserID, room.Slug, "room created")
}

// HandleChatHistory returns up to limit messages in ascending creation
// order.
func (s *roomService) HandleChatHistory(ctx context.Context, c *hub.Client, frame domain.ChatHistoryRequestFrame) {
	if !s.requireMember(c, frame.RoomName) {
		return
	}
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}

	limit := frame.Limit
	if limit <= 0 {
		limit = defaultChatHistoryLimit
	}

	opCtx, cancel := s.storeCtx(ctx)
	messages, err := s.store.ListChatMessages(opCtx, room.ID, limit)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "list chat history", err)
		return
	}

	c.SendFrame(&domain.ChatHistoryFrame{
		Type:      domain.FrameChatHistory,
		RoomName:  room.Slug,
		Messages:  chatViews(messages),
		Timestamp: domain.Timestamp(),
	})
}

// HandleDrawingAction appends a stroke fragment to the room's replay
// log and broadcasts it to every member except the sender, who already
// has the stroke locally.
func (s *roomService) HandleDrawingAction(ctx context.Context, c *hub.Client, frame domain.DrawingActionFrame) {
	if err := domain.ValidateActionKind(frame.Action.Type); err != nil {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, err.Error()))
		return
	}
	if !s.requireMember(c, frame.RoomName) {
		return
	}
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	_, err := s.store.CreateDrawingAction(opCtx, room.ID, c.UserID, frame.Action)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "persist drawing action", err)
		return
	}

	s.hub.Broadcast(room.Slug, &domain.DrawingBroadcastFrame{
		Type:     domain.FrameDrawingAction,
		RoomName: room.Slug,
		Action: domain.ActionBroadcast{
			ActionPayload: frame.Action,
			UserID:        c.UserID,
			UserName:      c.UserName,
		},
		Timestamp: domain.Timestamp(),
	}, c.ID)
}

// HandleClearCanvas deletes every drawing action for the room, then
// tells everyone but the sender to wipe their canvas.
func (s *roomService) HandleClearCanvas(ctx context.Context, c *hub.Client, frame domain.ClearCanvasFrame) {
	if !s.requireMember(c, frame.RoomName) {
		return
	}
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	err := s.store.DeleteDrawingActions(opCtx, room.ID)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "clear canvas", err)
		return
	}

	s.hub.Broadcast(room.Slug, &domain.ClearFrame{
		Type:      domain.FrameClearCanvas,
		RoomName:  room.Slug,
		UserID:    c.UserID,
		Timestamp: domain.Timestamp(),
	}, c.ID)

	audit.LogWithDetail(ctx, audit.ActionClearCanvas, c.UserID, room.Slug, "canvas cleared")
}

// HandleClearAll is admin-only: it deletes the room's drawing actions
// and chat messages, then resets every member's view including the
// caller's.
func (s *roomService) HandleClearAll(ctx context.Context, c *hub.Client, frame domain.ClearAllFrame) {
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}
	if room.AdminID != c.UserID {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeForbidden, "only the room admin can clear the room"))
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.DeleteDrawingActions(opCtx, room.ID); err != nil {
		s.storageError(c, room.Slug, "clear drawings", err)
		return
	}
	if err := s.store.DeleteChatMessages(opCtx, room.ID); err != nil {
		s.storageError(c, room.Slug, "clear messages", err)
		return
	}

	s.hub.Broadcast(room.Slug, &domain.ClearFrame{
		Type:      domain.FrameClearAll,
		RoomName:  room.Slug,
		UserID:    c.UserID,
		Timestamp: domain.Timestamp(),
	}, "")

	audit.LogWithDetail(ctx, audit.ActionClearAll, c.UserID, room.Slug, "room cleared")
}

// HandleClearMessages is admin-only: it deletes the room's chat
// messages and notifies every member.
func (s *roomService) HandleClearMessages(ctx context.Context, c *hub.Client, frame domain.ClearMessagesFrame) {
	room, ok := s.findRoom(ctx, c, frame.RoomName)
	if !ok {
		return
	}
	if room.AdminID != c.UserID {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeForbidden, "only the room admin can clear messages"))
		return
	}

	opCtx, cancel := s.storeCtx(ctx)
	err := s.store.DeleteChatMessages(opCtx, room.ID)
	cancel()
	if err != nil {
		s.storageError(c, room.Slug, "clear messages", err)
		return
	}

	s.hub.Broadcast(room.Slug, &domain.ClearFrame{
		Type:      domain.FrameClearMessages,
		RoomName:  room.Slug,
		UserID:    c.UserID,
		Timestamp: domain.Timestamp(),
	}, "")

	audit.LogWithDetail(ctx, audit.ActionClearMessages, c.UserID, room.Slug, "chat messages cleared")
}

// HandleUserJoined announces the caller's presence to the other room
// members and sends the caller the deduplicated roster.
func (s *roomService) HandleUserJoined(ctx context.Context, c *hub.Client, frame domain.UserJoinedFrame) {
	if frame.RoomName == "" {
		c.SendFrame(domain.NewErrorFrame(domain.ErrCodeBadRequest, "roomName is required"))
		return
	}

	// Prefer the durable profile over the token claims so a renamed
	// user shows up under their current name.
	identity := c.Ref()
	opCtx, cancel := s.storeCtx(ctx)
	user, err := s.store.FindUserByID(opCtx, c.UserID)
	cancel()
	if err == nil {
		identity = user.Ref()
	}

	s.hub.Broadcast(frame.RoomName, &domain.UserJoinedBroadcastFrame{
		Type:      domain.FrameUserJoined,
		RoomName:  frame.RoomName,
		User:      identity,
		Timestamp: domain.Timestamp(),
	}, c.ID)

	s.sendRoster(c, frame.RoomName)
}

// HandleDisconnect runs once per connection teardown: it removes the
// connection from the registry and notifies every room it had joined.
func (s *roomService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	rooms := s.hub.Deregister(c)
	if rooms == nil {
		return
	}

	for _, room := range rooms {
		s.hub.Broadcast(room, &domain.UserLeftFrame{
			Type:      domain.FrameUserLeft,
			RoomName:  room,
			UserID:    c.UserID,
			Timestamp: domain.Timestamp(),
		}, "")
		s.roomEmptied(ctx, room)
	}

	audit.Log(ctx, audit.ActionDisconnect, c.UserID, "connection closed")
}

// sendRoster sends the caller the room's current members, one entry
// per user even when a user briefly has more than one connection.
func (s *roomService) sendRoster(c *hub.Client, room string) {
	members := s.hub.MembersOf(room)

	seen := make(map[string]struct{}, len(members))
	users := make([]domain.UserRef, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m.UserID]; ok {
			continue
		}
		seen[m.UserID] = struct{}{}
		users = append(users, m.Ref())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })

	c.SendFrame(&domain.RoomUsersFrame{
		Type:      domain.FrameRoomUsers,
		RoomName:  room,
		Users:     users,
		Timestamp: domain.Timestamp(),
	})
}

// roomEmptied withdraws the presence advertisement once the last local
// member is gone.
func (s *roomService) roomEmptied(ctx context.Context, room string) {
	if s.hub.MemberCount(room) > 0 {
		return
	}
	if err := s.presence.Deregister(ctx, room); err != nil {
		l := log.L()
		l.Warn().Str(log.FieldRoom, room).Err(err).Msg("presence deregister failed")
	}
}

func chatViews(messages []domain.ChatMessage) []domain.ChatMessageView {
	views := make([]domain.ChatMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, m.ToView())
	}
	return views
}
