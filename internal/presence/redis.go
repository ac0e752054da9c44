package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
)

// RedisStore 방마다 해시 하나, 멤버마다 필드 하나
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time

	afterRead func() // 테스트 훅 (Touch 읽기와 쓰기 사이)
}

// NewRedisStore 생성자 (ttl: 하트비트 없이 레코드가 유지되는 시간)
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func roomKey(roomID string) string {
	return fmt.Sprintf("presence:room:%s", roomID)
}

func field(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// Set 상태 저장 및 방 키 TTL 연장
func (s *RedisStore) Set(ctx context.Context, rec model.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	key := roomKey(rec.RoomID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, field(rec.UserID), data)
	// 비어 있는 방은 자동 만료
	pipe.Expire(ctx, key, 2*s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// touchRetries 방에 쓰기가 몰릴 때 Touch 재시도 횟수
const touchRetries = 10

// Touch LastSeen 갱신 (추적 중이 아닌 멤버는 무시)
// 읽기와 쓰기 사이에 방 키가 바뀌면 처음부터 다시 시도
func (s *RedisStore) Touch(ctx context.Context, roomID string, userID int64, at time.Time) error {
	key := roomKey(roomID)
	f := field(userID)

	update := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, f).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}

		var rec model.PresenceRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return err
		}
		rec.LastSeen = at
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if s.afterRead != nil {
			s.afterRead()
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, f, data)
			pipe.Expire(ctx, key, 2*s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < touchRetries; i++ {
		err := s.client.Watch(ctx, update, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("touch %s/%d: %w", roomID, userID, redis.TxFailedErr)
}

// Remove 멤버 상태 삭제
func (s *RedisStore) Remove(ctx context.Context, roomID string, userID int64) error {
	return s.client.HDel(ctx, roomKey(roomID), field(userID)).Err()
}

// List 살아 있는 멤버 조회
func (s *RedisStore) List(ctx context.Context, roomID string) ([]model.PresenceRecord, error) {
	all, err := s.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	cutoff := s.now().Add(-s.ttl)
	recs := make([]model.PresenceRecord, 0, len(all))
	for f, raw := range all {
		var rec model.PresenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			log.Warn().Err(err).Str("room", roomID).Str("field", f).Msg("dropping unreadable presence record")
			continue
		}
		if rec.LastSeen.Before(cutoff) {
			continue
		}
		recs = append(recs, rec)
	}
	sortRecords(recs)
	return recs, nil
}

// Prune 기준 시각 이전 레코드 삭제
func (s *RedisStore) Prune(ctx context.Context, roomID string, before time.Time) (int, error) {
	key := roomKey(roomID)
	all, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	var stale []string
	for f, raw := range all {
		var rec model.PresenceRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.LastSeen.Before(before) {
			stale = append(stale, f)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := s.client.HDel(ctx, key, stale...).Result()
	return int(n), err
}
