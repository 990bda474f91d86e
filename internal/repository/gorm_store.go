package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/hxbeeb/excalidraw/internal/domain"
	"github.com/hxbeeb/excalidraw/pkg/log"
)

// GormStore implements Store using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// FindRoomBySlug retrieves a room by its slug. Slugs are case-sensitive.
func (s *GormStore) FindRoomBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	var model domain.RoomModel
	result := s.db.WithContext(ctx).First(&model, "slug = ?", slug)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// CreateRoom persists a new room with the given admin.
func (s *GormStore) CreateRoom(ctx context.Context, slug, adminID string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	model := &domain.RoomModel{
		ID:      uuid.New().String(),
		Slug:    slug,
		AdminID: adminID,
	}
	result := s.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return nil, ErrDuplicateRoom
		}
		l.Error().Err(result.Error).Str(log.FieldRoom, slug).Msg("failed to create room in db")
		return nil, result.Error
	}

	l.Debug().Str("room_id", model.ID).Str(log.FieldRoom, slug).Msg("room created in db")
	return model.ToDomain(), nil
}

// ListChatMessages returns the most recent limit messages for a room
// in ascending creation order, with author info attached.
func (s *GormStore) ListChatMessages(ctx context.Context, roomID string, limit int) ([]domain.ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}

	// Take the newest rows, then flip back to ascending order.
	var models []domain.ChatMessageModel
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	messages := make([]domain.ChatMessage, len(models))
	for i, model := range models {
		messages[len(models)-1-i] = *model.ToDomain()
	}

	if err := s.attachAuthors(ctx, messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// CreateChatMessage persists one chat message and returns it with the
// store-assigned id and author info.
func (s *GormStore) CreateChatMessage(ctx context.Context, roomID, userID, text string) (*domain.ChatMessage, error) {
	l := log.Ctx(ctx)

	model := &domain.ChatMessageModel{
		RoomID:  roomID,
		UserID:  userID,
		Message: text,
	}
	result := s.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str("room_id", roomID).Msg("failed to create chat message in db")
		return nil, result.Error
	}

	msg := model.ToDomain()
	// The row is already committed; a failed author lookup must not turn
	// a persisted message into a reported storage failure. The caller
	// fills in its own identity when broadcasting.
	if author, err := s.FindUserByID(ctx, userID); err == nil {
		msg.Author = author.Ref()
	} else {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Msg("author lookup failed after message insert")
	}
	return msg, nil
}

// DeleteChatMessages removes every chat message of a room.
func (s *GormStore) DeleteChatMessages(ctx context.Context, roomID string) error {
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&domain.ChatMessageModel{})
	if result.Error != nil {
		return result.Error
	}
	l := log.Ctx(ctx)
	l.Debug().Str("room_id", roomID).Int64("rows", result.RowsAffected).Msg("chat messages cleared")
	return nil
}

// ListDrawingActions returns the full replay log of a room in ascending
// creation order.
func (s *GormStore) ListDrawingActions(ctx context.Context, roomID string) ([]domain.DrawingAction, error) {
	var models []domain.DrawingActionModel
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	actions := make([]domain.DrawingAction, len(models))
	for i, model := range models {
		actions[i] = *model.ToDomain()
	}

	if err := s.attachActionAuthors(ctx, actions); err != nil {
		return nil, err
	}
	return actions, nil
}

// CreateDrawingAction persists one stroke fragment.
func (s *GormStore) CreateDrawingAction(ctx context.Context, roomID, userID string, action domain.ActionPayload) (*domain.DrawingAction, error) {
	l := log.Ctx(ctx)

	model := &domain.DrawingActionModel{
		RoomID:      roomID,
		UserID:      userID,
		Kind:        action.Type,
		Points:      action.Points,
		Color:       action.Color,
		StrokeWidth: action.StrokeWidth,
	}
	result := s.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Str("room_id", roomID).Msg("failed to create drawing action in db")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// DeleteDrawingActions removes every drawing action of a room.
func (s *GormStore) DeleteDrawingActions(ctx context.Context, roomID string) error {
	result := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Delete(&domain.DrawingActionModel{})
	if result.Error != nil {
		return result.Error
	}
	l := log.Ctx(ctx)
	l.Debug().Str("room_id", roomID).Int64("rows", result.RowsAffected).Msg("drawing actions cleared")
	return nil
}

// FindUserByID retrieves a user by id.
func (s *GormStore) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var model domain.UserModel
	result := s.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// FindUserByEmail retrieves a user by the identity claim key.
func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var model domain.UserModel
	result := s.db.WithContext(ctx).First(&model, "email = ?", email)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// CreateUser persists a new account.
func (s *GormStore) CreateUser(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}

	model := domain.UserToModel(user)
	result := s.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return ErrDuplicateEmail
		}
		return result.Error
	}

	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

// attachAuthors batch-loads the author refs for a message list.
func (s *GormStore) attachAuthors(ctx context.Context, messages []domain.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}

	ids := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, m := range messages {
		if _, ok := seen[m.UserID]; !ok {
			seen[m.UserID] = struct{}{}
			ids = append(ids, m.UserID)
		}
	}

	refs, err := s.userRefs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range messages {
		messages[i].Author = refs[messages[i].UserID]
	}
	return nil
}

func (s *GormStore) attachActionAuthors(ctx context.Context, actions []domain.DrawingAction) error {
	if len(actions) == 0 {
		return nil
	}

	ids := make([]string, 0, len(actions))
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		if _, ok := seen[a.UserID]; !ok {
			seen[a.UserID] = struct{}{}
			ids = append(ids, a.UserID)
		}
	}

	refs, err := s.userRefs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range actions {
		actions[i].Author = refs[actions[i].UserID]
	}
	return nil
}

func (s *GormStore) userRefs(ctx context.Context, ids []string) (map[string]domain.UserRef, error) {
	var models []domain.UserModel
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	refs := make(map[string]domain.UserRef, len(models))
	for _, m := range models {
		refs[m.ID] = m.ToDomain().Ref()
	}
	return refs, nil
}

// isUniqueViolation matches unique-constraint errors across the three
// supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
