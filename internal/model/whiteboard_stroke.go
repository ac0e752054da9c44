package model

import (
	"time"
)

// Stroke 화이트보드 선분 또는 지우기 표시 (선분마다 스타일 포함)
type Stroke struct {
	ID        string     `gorm:"type:varchar(36);primaryKey" json:"id" bson:"_id"`
	RoomID    string     `gorm:"type:varchar(36);not null;index:idx_room_created" json:"room_id" bson:"room_id"`
	SenderID  int64      `gorm:"not null" json:"sender_id" bson:"sender_id"`
	Type      StrokeType `gorm:"type:varchar(10);not null;default:'draw'" json:"type" bson:"type"`
	X0        float64    `json:"x0" bson:"x0"`
	Y0        float64    `json:"y0" bson:"y0"`
	X1        float64    `json:"x1" bson:"x1"`
	Y1        float64    `json:"y1" bson:"y1"`
	Color     string     `gorm:"type:varchar(7)" json:"color,omitempty" bson:"color,omitempty"`
	Width     float64    `json:"width,omitempty" bson:"width,omitempty"`
	CreatedAt time.Time  `gorm:"index:idx_room_created;index" json:"created_at" bson:"created_at"`
}

func (Stroke) TableName() string {
	return "whiteboard_strokes"
}

// IsClear 보드를 지우는 레코드인지 확인
func (s *Stroke) IsClear() bool {
	return s.Type == StrokeClear
}
