package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State 방 소켓 연결 상태
type State int

const (
	StateConnected State = iota // 구독 완료, 상태 미공개
	StateTracked                // 상태 공개됨
	StateClosed
)

// String 상태를 문자열로 반환
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateTracked:
		return "tracked"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session 방 소켓 세션 (Thread-Safe)
type Session struct {
	id          string
	RoomID      string
	userID      int64
	nickname    string
	ConnectedAt time.Time

	mu       sync.RWMutex
	state    State
	lastPing time.Time
	sent     uint64
	dropped  uint64

	// 송신 프레임 (write pump가 소비)
	Outbound chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
}

// New 새 세션 생성
func New(roomID string, userID int64, nickname string, bufferSize int) *Session {
	if bufferSize < 1 {
		bufferSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	return &Session{
		id:          uuid.NewString(),
		RoomID:      roomID,
		userID:      userID,
		nickname:    nickname,
		ConnectedAt: now,
		state:       StateConnected,
		lastPing:    now,
		Outbound:    make(chan []byte, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) UserID() int64    { return s.userID }
func (s *Session) Nickname() string { return s.nickname }

// Context 세션 컨텍스트 반환 (Close 시 취소)
func (s *Session) Context() context.Context {
	return s.ctx
}

// Send 프레임 큐잉 (블록하지 않음)
func (s *Session) Send(frame []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return false
	}
	select {
	case s.Outbound <- frame:
		s.sent++
		return true
	default:
		s.dropped++
		return false
	}
}

// SetState 상태 전환 (Closed 이후에는 변경 불가)
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	s.state = state
}

func (s *Session) GetState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state
}

// MarkPing 클라이언트 하트비트 기록
func (s *Session) MarkPing() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPing = time.Now()
}

func (s *Session) LastPing() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastPing
}

// GetStats 전송/드롭된 프레임 수 조회
func (s *Session) GetStats() (sent, dropped uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sent, s.dropped
}

// Duration 연결 후 경과 시간
func (s *Session) Duration() time.Duration {
	return time.Since(s.ConnectedAt)
}

// Close 세션 종료 (중복 호출 안전)
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}

	s.state = StateClosed
	s.cancel()
	close(s.Outbound)
}

func (s *Session) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.state == StateClosed
}
