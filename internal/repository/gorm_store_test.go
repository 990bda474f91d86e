package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hxbeeb/excalidraw/internal/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&domain.UserModel{},
		&domain.RoomModel{},
		&domain.ChatMessageModel{},
		&domain.DrawingActionModel{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewGormStore(db)
}

func seedUser(t *testing.T, s *GormStore, name, email string) *domain.User {
	t.Helper()
	user := &domain.User{Name: name, Email: email, PasswordHash: "x"}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestCreateAndFindRoom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateRoom(ctx, "demo", "admin-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	if created.Slug != "demo" || created.AdminID != "admin-1" {
		t.Errorf("created = %+v, want slug demo admin admin-1", created)
	}

	found, err := s.FindRoomBySlug(ctx, "demo")
	if err != nil {
		t.Fatalf("FindRoomBySlug: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("found.ID = %q, want %q", found.ID, created.ID)
	}
}

func TestFindRoomMissing(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.FindRoomBySlug(context.Background(), "nope"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("FindRoomBySlug = %v, want ErrRoomNotFound", err)
	}
}

func TestCreateRoomDuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateRoom(ctx, "demo", "admin-1"); err != nil {
		t.Fatalf("first CreateRoom: %v", err)
	}
	if _, err := s.CreateRoom(ctx, "demo", "admin-2"); !errors.Is(err, ErrDuplicateRoom) {
		t.Errorf("second CreateRoom = %v, want ErrDuplicateRoom", err)
	}
}

func TestChatMessagesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")
	room, err := s.CreateRoom(ctx, "demo", user.ID)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	for i := 1; i <= 3; i++ {
		msg, err := s.CreateChatMessage(ctx, room.ID, user.ID, fmt.Sprintf("msg-%d", i))
		if err != nil {
			t.Fatalf("CreateChatMessage: %v", err)
		}
		if msg.ID == 0 {
			t.Error("message id not assigned")
		}
		if msg.Author.Name != "Alice" {
			t.Errorf("author = %+v, want Alice", msg.Author)
		}
	}

	messages, err := s.ListChatMessages(ctx, room.ID, 50)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(messages))
	}
	for i, m := range messages {
		if want := fmt.Sprintf("msg-%d", i+1); m.Message != want {
			t.Errorf("messages[%d] = %q, want %q (ascending order)", i, m.Message, want)
		}
		if m.Author.ID != user.ID {
			t.Errorf("messages[%d].Author.ID = %q, want %q", i, m.Author.ID, user.ID)
		}
	}
}

func TestCreateChatMessageMissingAuthor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	room, err := s.CreateRoom(ctx, "demo", "admin-1")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	// No user row for the author: the insert must still succeed, the
	// author ref just stays empty.
	msg, err := s.CreateChatMessage(ctx, room.ID, "ghost-user", "hello")
	if err != nil {
		t.Fatalf("CreateChatMessage: %v", err)
	}
	if msg.ID == 0 {
		t.Error("message id not assigned")
	}
	if msg.Author.ID != "" {
		t.Errorf("author = %+v, want empty ref", msg.Author)
	}

	stored, err := s.ListChatMessages(ctx, room.ID, 50)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(stored) != 1 || stored[0].Message != "hello" {
		t.Errorf("stored = %+v, want the persisted message", stored)
	}
}

func TestListChatMessagesReturnsNewestWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")
	room, err := s.CreateRoom(ctx, "demo", user.ID)
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := s.CreateChatMessage(ctx, room.ID, user.ID, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("CreateChatMessage: %v", err)
		}
	}

	messages, err := s.ListChatMessages(ctx, room.ID, 2)
	if err != nil {
		t.Fatalf("ListChatMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[0].Message != "msg-4" || messages[1].Message != "msg-5" {
		t.Errorf("window = [%q %q], want [msg-4 msg-5]", messages[0].Message, messages[1].Message)
	}
}

func TestDeleteChatMessagesRemovesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")
	room, _ := s.CreateRoom(ctx, "demo", user.ID)
	other, _ := s.CreateRoom(ctx, "other", user.ID)

	for i := 0; i < 3; i++ {
		s.CreateChatMessage(ctx, room.ID, user.ID, "in-demo")
	}
	s.CreateChatMessage(ctx, other.ID, user.ID, "in-other")

	if err := s.DeleteChatMessages(ctx, room.ID); err != nil {
		t.Fatalf("DeleteChatMessages: %v", err)
	}

	cleared, _ := s.ListChatMessages(ctx, room.ID, 50)
	if len(cleared) != 0 {
		t.Errorf("%d messages remain after delete, want 0", len(cleared))
	}
	kept, _ := s.ListChatMessages(ctx, other.ID, 50)
	if len(kept) != 1 {
		t.Errorf("delete leaked into another room, %d messages remain, want 1", len(kept))
	}
}

func TestDrawingActionsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")
	room, _ := s.CreateRoom(ctx, "demo", user.ID)

	payloads := []domain.ActionPayload{
		{Type: domain.ActionStart, Points: domain.PointList{{X: 1, Y: 1}}, Color: "#000", StrokeWidth: 1},
		{Type: domain.ActionDraw, Points: domain.PointList{{X: 2, Y: 2}, {X: 3, Y: 3}}, Color: "#000", StrokeWidth: 1},
		{Type: domain.ActionEnd, Points: domain.PointList{}, Color: "#000", StrokeWidth: 1},
	}
	for _, p := range payloads {
		if _, err := s.CreateDrawingAction(ctx, room.ID, user.ID, p); err != nil {
			t.Fatalf("CreateDrawingAction: %v", err)
		}
	}

	actions, err := s.ListDrawingActions(ctx, room.ID)
	if err != nil {
		t.Fatalf("ListDrawingActions: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	if actions[0].Kind != domain.ActionStart || actions[2].Kind != domain.ActionEnd {
		t.Errorf("replay order = [%s %s %s], want [start draw end]", actions[0].Kind, actions[1].Kind, actions[2].Kind)
	}
	if len(actions[1].Points) != 2 || actions[1].Points[1].X != 3 {
		t.Errorf("points round trip failed: %+v", actions[1].Points)
	}
	if actions[0].Author.Name != "Alice" {
		t.Errorf("author = %+v, want Alice", actions[0].Author)
	}
}

func TestDeleteDrawingActionsRemovesAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")
	room, _ := s.CreateRoom(ctx, "demo", user.ID)

	for i := 0; i < 4; i++ {
		s.CreateDrawingAction(ctx, room.ID, user.ID, domain.ActionPayload{Type: domain.ActionDraw})
	}

	if err := s.DeleteDrawingActions(ctx, room.ID); err != nil {
		t.Fatalf("DeleteDrawingActions: %v", err)
	}

	actions, _ := s.ListDrawingActions(ctx, room.ID)
	if len(actions) != 0 {
		t.Errorf("%d actions remain after delete, want 0", len(actions))
	}
}

func TestUserLookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "Alice", "alice@example.com")

	byID, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("FindUserByID: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Errorf("byID.Email = %q", byID.Email)
	}

	byEmail, err := s.FindUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Errorf("byEmail.ID = %q, want %q", byEmail.ID, user.ID)
	}

	if _, err := s.FindUserByID(ctx, "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("FindUserByID(missing) = %v, want ErrUserNotFound", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedUser(t, s, "Alice", "alice@example.com")

	dup := &domain.User{Name: "Other", Email: "alice@example.com", PasswordHash: "x"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("CreateUser duplicate = %v, want ErrDuplicateEmail", err)
	}
}
