package repository

import (
	"context"
	"errors"

	"github.com/hxbeeb/excalidraw/internal/domain"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrDuplicateRoom  = errors.New("room already exists")
	ErrDuplicateEmail = errors.New("email already registered")
)

// Store is the durable gateway the hub depends on. Listing operations
// return rows in ascending creation order; each call is one unit of
// atomicity, no cross-call transactions.
type Store interface {
	FindRoomBySlug(ctx context.Context, slug string) (*domain.Room, error)
	CreateRoom(ctx context.Context, slug, adminID string) (*domain.Room, error)

	ListChatMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error)
	CreateChatMessage(ctx context.Context, roomID, userID, text string) (*domain.ChatMessage, error)
	DeleteChatMessages(ctx context.Context, roomID string) error

	ListDrawingActions(ctx context.Context, roomID string) ([]domain.DrawingAction, error)
	CreateDrawingAction(ctx context.Context, roomID, userID string, action domain.ActionPayload) (*domain.DrawingAction, error)
	DeleteDrawingActions(ctx context.Context, roomID string) error

	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, user *domain.User) error
}
