package domain

import (
	"time"
)

// ChatMessage is a durable chat entry. IDs are store-assigned and
// monotonic, so ascending id equals ascending creation time.
type ChatMessage struct {
	ID        uint
	RoomID    string
	UserID    string
	Message   string
	CreatedAt time.Time
	Author    UserRef
}

// ChatMessageView is the wire projection used in history frames.
type ChatMessageView struct {
	ID        uint      `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	User      UserRef   `json:"user"`
}

// ToView converts a ChatMessage to its wire projection.
func (m *ChatMessage) ToView() ChatMessageView {
	return ChatMessageView{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
		User:      m.Author,
	}
}

// ChatMessageModel is the GORM model for the chats table.
type ChatMessageModel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RoomID    string    `gorm:"type:varchar(36);index;not null"`
	UserID    string    `gorm:"type:varchar(36);index;not null"`
	Message   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for ChatMessageModel.
func (ChatMessageModel) TableName() string {
	return "chats"
}

// ToDomain converts ChatMessageModel to a domain ChatMessage without
// author info; the repository joins the author separately.
func (m *ChatMessageModel) ToDomain() *ChatMessage {
	return &ChatMessage{
		ID:        m.ID,
		RoomID:    m.RoomID,
		UserID:    m.UserID,
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}
