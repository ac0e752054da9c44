package model

import (
	"time"
)

// Room 스터디룸 (짧은 참여 코드로 접근)
type Room struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(12);uniqueIndex;not null" json:"code"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	CreatorID int64     `gorm:"not null" json:"creator_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// Relations
	Members []RoomMember `gorm:"foreignKey:RoomID" json:"members,omitempty"`
}

func (Room) TableName() string {
	return "rooms"
}

// RoomMember 코드로 참여한 사용자
type RoomMember struct {
	RoomID   string    `gorm:"type:varchar(36);primaryKey" json:"room_id"`
	UserID   int64     `gorm:"primaryKey" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (RoomMember) TableName() string {
	return "room_members"
}

// Task 공유 할 일 (방 멤버 누구나 수정 가능)
type Task struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	RoomID    string    `gorm:"type:varchar(36);not null;index:idx_room_tasks_room_created" json:"room_id"`
	CreatorID int64     `gorm:"not null" json:"creator_id"`
	Title     string    `gorm:"type:varchar(200);not null" json:"title"`
	Completed bool      `gorm:"default:false" json:"completed"`
	CreatedAt time.Time `gorm:"index:idx_room_tasks_room_created" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Task) TableName() string {
	return "room_tasks"
}

// Member 접속 사용자 정보 (인증 서비스 기준)
type Member struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// PresenceRecord 방 멤버 상태 ((RoomID, UserID) 기준)
type PresenceRecord struct {
	RoomID      string         `json:"room_id"`
	UserID      int64          `json:"user_id"`
	DisplayName string         `json:"display_name"`
	Status      PresenceStatus `json:"status"`
	LastSeen    time.Time      `json:"last_seen"`
}

// ChatMessage 채팅 메시지 (저장하지 않음)
type ChatMessage struct {
	ID         string    `json:"id"`
	SenderID   int64     `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	SentAt     time.Time `json:"sent_at"`
}

// EmoteEvent 떠다니는 이모지 (저장하지 않음)
type EmoteEvent struct {
	ID       string `json:"id"`
	Emoji    string `json:"emoji"`
	SenderID int64  `json:"sender_id"`
}
