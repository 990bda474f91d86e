package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hxbeeb/excalidraw/internal/auth"
	"github.com/hxbeeb/excalidraw/internal/config"
	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/internal/hub"
	"github.com/hxbeeb/excalidraw/internal/presence"
	"github.com/hxbeeb/excalidraw/internal/repository"
	"github.com/hxbeeb/excalidraw/internal/service"
)

type restFixture struct {
	router *gin.Engine
	store  *repository.GormStore
	tokens *auth.TokenManager
}

func newRESTFixture(t *testing.T) *restFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	store := repository.NewGormStore(db)
	tokens := auth.NewTokenManager("test-secret", time.Hour, "excalidraw")
	h := hub.NewHub()
	rooms := service.NewRoomService(h, store, presence.Noop{}, time.Second)
	accounts := service.NewAccountService(store, tokens)

	router := gin.New()
	httpHandler := NewHTTPHandler(accounts, store, tokens)
	wsHandler := NewWSHandler(h, tokens, rooms, config.WebSocketConfig{SendBuffer: 16})
	httpHandler.RegisterRoutes(router, wsHandler)

	return &restFixture{router: router, store: store, tokens: tokens}
}

func (f *restFixture) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *restFixture) signup(t *testing.T, email, name string) (string, string) {
	t.Helper()

	w := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": email, "password": "correct-horse", "name": name,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
			User  struct {
				ID string `json:"id"`
			} `json:"user"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup: %v", err)
	}
	return resp.Data.Token, resp.Data.User.ID
}

func TestHealth(t *testing.T) {
	f := newRESTFixture(t)

	w := f.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", w.Code)
	}
}

func TestSignupAndLogin(t *testing.T) {
	f := newRESTFixture(t)

	token, userID := f.signup(t, "alice@example.com", "Alice")
	if token == "" || userID == "" {
		t.Fatal("signup returned empty token or user id")
	}

	w := f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusOK {
		t.Errorf("login status = %d, body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"email": "alice@example.com", "password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong-password login status = %d, want 401", w.Code)
	}
}

func TestSignupDuplicateEmailConflict(t *testing.T) {
	f := newRESTFixture(t)
	f.signup(t, "alice@example.com", "Alice")

	w := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": "alice@example.com", "password": "correct-horse", "name": "Other",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", w.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	f := newRESTFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/auth/signup", "", gin.H{
		"email": "not-an-email", "password": "short", "name": "",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid signup status = %d, want 400", w.Code)
	}
}

func TestCreateRoomRequiresAuth(t *testing.T) {
	f := newRESTFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/rooms", "", gin.H{"roomName": "demo"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated create status = %d, want 401", w.Code)
	}
}

func TestCreateAndGetRoom(t *testing.T) {
	f := newRESTFixture(t)
	token, userID := f.signup(t, "alice@example.com", "Alice")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{"roomName": "demo"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room status = %d, body %s", w.Code, w.Body.String())
	}

	var created struct {
		Data domain.Room `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created room: %v", err)
	}
	if created.Data.AdminID != userID {
		t.Errorf("room admin = %q, want caller %q", created.Data.AdminID, userID)
	}

	w = f.do(t, http.MethodGet, "/api/v1/rooms/demo", token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("get room status = %d, body %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{"roomName": "demo"})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate room status = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodGet, "/api/v1/rooms/missing", token, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing room status = %d, want 404", w.Code)
	}
}

func TestChatHistoryEndpoint(t *testing.T) {
	f := newRESTFixture(t)
	token, userID := f.signup(t, "alice@example.com", "Alice")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{"roomName": "demo"})
	var created struct {
		Data domain.Room `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	for i := 1; i <= 3; i++ {
		if _, err := f.store.CreateChatMessage(context.Background(), created.Data.ID, userID, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	w = f.do(t, http.MethodGet, "/api/v1/rooms/demo/chats?limit=2", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("chats status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Messages []domain.ChatMessageView `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode chats: %v", err)
	}
	if len(resp.Data.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(resp.Data.Messages))
	}
	if resp.Data.Messages[0].Message != "msg-2" || resp.Data.Messages[1].Message != "msg-3" {
		t.Errorf("window = [%q %q], want [msg-2 msg-3]",
			resp.Data.Messages[0].Message, resp.Data.Messages[1].Message)
	}
}

func TestDrawingHistoryEndpoint(t *testing.T) {
	f := newRESTFixture(t)
	token, userID := f.signup(t, "alice@example.com", "Alice")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", token, gin.H{"roomName": "demo"})
	var created struct {
		Data domain.Room `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &created)

	kinds := []string{domain.ActionStart, domain.ActionDraw, domain.ActionEnd}
	for _, kind := range kinds {
		if _, err := f.store.CreateDrawingAction(context.Background(), created.Data.ID, userID, domain.ActionPayload{
			Type: kind, Points: domain.PointList{{X: 1, Y: 1}}, Color: "#000", StrokeWidth: 1,
		}); err != nil {
			t.Fatalf("seed action: %v", err)
		}
	}

	w = f.do(t, http.MethodGet, "/api/v1/rooms/demo/drawings", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("drawings status = %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Actions []domain.DrawingActionView `json:"actions"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode drawings: %v", err)
	}
	if len(resp.Data.Actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(resp.Data.Actions))
	}
	for i, kind := range kinds {
		if resp.Data.Actions[i].Type != kind {
			t.Errorf("actions[%d].Type = %q, want %q (creation order)", i, resp.Data.Actions[i].Type, kind)
		}
	}
}
