package domain

import (
	"time"
)

// Frame types sent by clients. This is the closed operation set; the
// router dispatches with an exhaustive switch over these constants.
const (
	FrameJoinRoom       = "join-room"
	FrameLeaveRoom      = "leave-room"
	FrameSendMessage    = "send-message"
	FrameCreateRoom     = "create-room"
	FrameGetChatHistory = "get-chat-history"
	FrameDrawingAction  = "drawing-action"
	FrameClearCanvas    = "clear-canvas"
	FrameClearAll       = "clear-all"
	FrameClearMessages  = "clear-messages"
	FrameUserJoined     = "user-joined"
)

// Frame types sent by the server.
const (
	FrameWelcome     = "welcome"
	FrameResponse    = "response"
	FrameMessage     = "message"
	FrameChatHistory = "chat-history"
	FrameRoomUsers   = "room-users"
	FrameUserLeft    = "user-left"
	FrameError       = "error"
)

// Error codes carried in error frames.
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeNotInRoom     = "NOT_IN_ROOM"
	ErrCodeStorageError  = "STORAGE_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// BaseFrame carries only the type tag, used to pick the payload struct.
type BaseFrame struct {
	Type string `json:"type"`
}

// Client -> Server frames.

type JoinRoomFrame struct {
	RoomName string `json:"roomName"`
}

type LeaveRoomFrame struct {
	RoomName string `json:"roomName"`
}

type SendMessageFrame struct {
	RoomName string `json:"roomName"`
	Message  string `json:"message"`
}

type CreateRoomFrame struct {
	RoomName string `json:"roomName"`
}

type ChatHistoryRequestFrame struct {
	RoomName string `json:"roomName"`
	Limit    int    `json:"limit"`
}

// ActionPayload is the stroke fragment inside a drawing-action frame.
type ActionPayload struct {
	Type        string    `json:"type"`
	Points      PointList `json:"points"`
	Color       string    `json:"color"`
	StrokeWidth float64   `json:"strokeWidth"`
}

type DrawingActionFrame struct {
	RoomName string        `json:"roomName"`
	Action   ActionPayload `json:"action"`
}

type ClearCanvasFrame struct {
	RoomName string `json:"roomName"`
}

type ClearAllFrame struct {
	RoomName string `json:"roomName"`
}

type ClearMessagesFrame struct {
	RoomName string `json:"roomName"`
}

type UserJoinedFrame struct {
	RoomName string `json:"roomName"`
}

// Server -> Client frames. Every outbound frame carries an RFC3339 UTC
// timestamp.

type WelcomeFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ResponseFrame answers join-room and create-room, and serves as the
// generic acknowledgment for unintelligible frames.
type ResponseFrame struct {
	Type        string            `json:"type"`
	Message     string            `json:"message"`
	Room        *Room             `json:"room,omitempty"`
	ChatHistory []ChatMessageView `json:"chatHistory,omitempty"`
	IsAdmin     *bool             `json:"isAdmin,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

type MessageFrame struct {
	Type      string `json:"type"`
	RoomName  string `json:"roomName"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
	MessageID uint   `json:"messageId"`
	Timestamp string `json:"timestamp"`
}

type ChatHistoryFrame struct {
	Type      string            `json:"type"`
	RoomName  string            `json:"roomName"`
	Messages  []ChatMessageView `json:"messages"`
	Timestamp string            `json:"timestamp"`
}

// ActionBroadcast is the stroke fragment fanned out to room members,
// tagged with its author.
type ActionBroadcast struct {
	ActionPayload
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type DrawingBroadcastFrame struct {
	Type      string          `json:"type"`
	RoomName  string          `json:"roomName"`
	Action    ActionBroadcast `json:"action"`
	Timestamp string          `json:"timestamp"`
}

// ClearFrame is shared by clear-canvas, clear-all and clear-messages
// broadcasts; Type tells them apart.
type ClearFrame struct {
	Type      string `json:"type"`
	RoomName  string `json:"roomName"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type RoomUsersFrame struct {
	Type      string    `json:"type"`
	RoomName  string    `json:"roomName"`
	Users     []UserRef `json:"users"`
	Timestamp string    `json:"timestamp"`
}

type UserJoinedBroadcastFrame struct {
	Type      string  `json:"type"`
	RoomName  string  `json:"roomName"`
	User      UserRef `json:"user"`
	Timestamp string  `json:"timestamp"`
}

type UserLeftFrame struct {
	Type      string `json:"type"`
	RoomName  string `json:"roomName"`
	UserID    string `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type ErrorFrame struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewErrorFrame builds a typed error frame for the sender.
func NewErrorFrame(code, message string) *ErrorFrame {
	return &ErrorFrame{
		Type:      FrameError,
		Code:      code,
		Message:   message,
		Timestamp: Timestamp(),
	}
}

// Timestamp returns the RFC3339 UTC timestamp carried by outbound frames.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
