package presence

import (
	"context"
	"sync"
	"time"

	"studyroom-backend/internal/model"
)

// MemoryStore 단일 인스턴스용 저장소 (Redis 미설정 시 사용)
type MemoryStore struct {
	mu    sync.RWMutex
	rooms map[string]map[int64]model.PresenceRecord
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		rooms: make(map[string]map[int64]model.PresenceRecord),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *MemoryStore) Set(_ context.Context, rec model.PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[rec.RoomID]
	if !ok {
		room = make(map[int64]model.PresenceRecord)
		s.rooms[rec.RoomID] = room
	}
	room[rec.UserID] = rec
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, roomID string, userID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.rooms[roomID][userID]; ok {
		rec.LastSeen = at
		s.rooms[roomID][userID] = rec
	}
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, roomID string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms[roomID], userID)
	if len(s.rooms[roomID]) == 0 {
		delete(s.rooms, roomID)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, roomID string) ([]model.PresenceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-s.ttl)
	recs := make([]model.PresenceRecord, 0, len(s.rooms[roomID]))
	for _, rec := range s.rooms[roomID] {
		if rec.LastSeen.Before(cutoff) {
			continue
		}
		recs = append(recs, rec)
	}
	sortRecords(recs)
	return recs, nil
}

func (s *MemoryStore) Prune(_ context.Context, roomID string, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, rec := range s.rooms[roomID] {
		if rec.LastSeen.Before(before) {
			delete(s.rooms[roomID], id)
			n++
		}
	}
	if len(s.rooms[roomID]) == 0 {
		delete(s.rooms, roomID)
	}
	return n, nil
}
