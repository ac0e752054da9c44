package model

// PresenceStatus 멤버 현재 상태
type PresenceStatus string

const (
	StatusIdle     PresenceStatus = "idle"
	StatusFocusing PresenceStatus = "focusing"
	StatusDone     PresenceStatus = "done"
)

func (s PresenceStatus) String() string {
	return string(s)
}

// Valid 알려진 상태인지 확인
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusFocusing, StatusDone:
		return true
	}
	return false
}

// StrokeType 화이트보드 레코드 종류
type StrokeType string

const (
	StrokeDraw  StrokeType = "draw"
	StrokeClear StrokeType = "clear"
)

func (t StrokeType) String() string {
	return string(t)
}

const (
	// TempTaskPrefix 서버가 id를 부여하기 전의 임시 행
	TempTaskPrefix = "tmp-"

	// MaxTaskTitleLength 글자 수 기준
	MaxTaskTitleLength = 200

	// DefaultChatMaxLength rune 기준
	DefaultChatMaxLength = 500

	// MaxEmojiLength rune 기준 (ZWJ 시퀀스 포함)
	MaxEmojiLength = 16
)
