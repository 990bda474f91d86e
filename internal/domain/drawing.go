package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Stroke action kinds. A stroke is replayed as start → draw* → end.
const (
	ActionStart = "start"
	ActionDraw  = "draw"
	ActionEnd   = "end"
)

// Point is a single 2D canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointList stores an ordered point sequence as a JSON text column so
// the same model works on postgres, mysql and sqlite.
type PointList []Point

// Scan implements sql.Scanner.
func (p *PointList) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return errors.New("PointList: unsupported scan type")
	}
}

// Value implements driver.Valuer.
func (p PointList) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// GormDataType returns the GORM data type hint.
func (PointList) GormDataType() string {
	return "text"
}

// DrawingAction is one durable entry of a room's replay log.
type DrawingAction struct {
	ID          uint
	RoomID      string
	UserID      string
	Kind        string
	Points      PointList
	Color       string
	StrokeWidth float64
	CreatedAt   time.Time
	Author      UserRef
}

// DrawingActionView is the wire projection used by the replay endpoint.
type DrawingActionView struct {
	ID          uint      `json:"id"`
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName"`
	Type        string    `json:"type"`
	Points      PointList `json:"points"`
	Color       string    `json:"color"`
	StrokeWidth float64   `json:"strokeWidth"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ToView converts a DrawingAction to its wire projection.
func (a *DrawingAction) ToView() DrawingActionView {
	return DrawingActionView{
		ID:          a.ID,
		RoomID:      a.RoomID,
		UserID:      a.UserID,
		UserName:    a.Author.Name,
		Type:        a.Kind,
		Points:      a.Points,
		Color:       a.Color,
		StrokeWidth: a.StrokeWidth,
		CreatedAt:   a.CreatedAt,
	}
}

// ValidateActionKind reports whether kind is a known stroke action.
func ValidateActionKind(kind string) error {
	switch kind {
	case ActionStart, ActionDraw, ActionEnd:
		return nil
	default:
		return fmt.Errorf("unknown drawing action kind %q", kind)
	}
}

// DrawingActionModel is the GORM model for the drawing_actions table.
type DrawingActionModel struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	RoomID      string    `gorm:"type:varchar(36);index;not null"`
	UserID      string    `gorm:"type:varchar(36);index;not null"`
	Kind        string    `gorm:"type:varchar(10);not null"`
	Points      PointList `gorm:"type:text"`
	Color       string    `gorm:"type:varchar(30)"`
	StrokeWidth float64
	CreatedAt   time.Time `gorm:"autoCreateTime;index"`
}

// TableName specifies the table name for DrawingActionModel.
func (DrawingActionModel) TableName() string {
	return "drawing_actions"
}

// ToDomain converts DrawingActionModel to a domain DrawingAction
// without author info.
func (m *DrawingActionModel) ToDomain() *DrawingAction {
	return &DrawingAction{
		ID:          m.ID,
		RoomID:      m.RoomID,
		UserID:      m.UserID,
		Kind:        m.Kind,
		Points:      m.Points,
		Color:       m.Color,
		StrokeWidth: m.StrokeWidth,
		CreatedAt:   m.CreatedAt,
	}
}
