package domain

import (
	"time"

	"gorm.io/gorm"
)

// Room is a named collaboration space with exactly one admin.
// The slug is the human-chosen, case-sensitive unique key clients use
// on the wire; the admin is fixed at creation.
type Room struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	AdminID   string    `json:"adminId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateRoomRequest is the REST body for room creation.
type CreateRoomRequest struct {
	RoomName string `json:"roomName" binding:"required,min=1,max=100"`
}

// RoomModel is the GORM model for the rooms table.
type RoomModel struct {
	ID        string         `gorm:"type:varchar(36);primaryKey"`
	Slug      string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	AdminID   string         `gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:        m.ID,
		Slug:      m.Slug,
		AdminID:   m.AdminID,
		CreatedAt: m.CreatedAt,
	}
}

// RoomToModel converts domain Room to RoomModel.
func RoomToModel(r *Room) *RoomModel {
	return &RoomModel{
		ID:        r.ID,
		Slug:      r.Slug,
		AdminID:   r.AdminID,
		CreatedAt: r.CreatedAt,
	}
}
