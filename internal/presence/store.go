// Package presence 방별 접속 멤버와 상태 저장소
//
// 레코드는 (방, 사용자) 기준이며, LastSeen이 TTL보다 오래된 레코드는
// List에서 제외되고 Prune으로 삭제된다.
package presence

import (
	"context"
	"sort"
	"time"

	"studyroom-backend/internal/model"
)

// Store 모든 서버 인스턴스가 공유하는 상태 저장소
type Store interface {
	Set(ctx context.Context, rec model.PresenceRecord) error
	Touch(ctx context.Context, roomID string, userID int64, at time.Time) error
	Remove(ctx context.Context, roomID string, userID int64) error
	List(ctx context.Context, roomID string) ([]model.PresenceRecord, error)
	Prune(ctx context.Context, roomID string, before time.Time) (int, error)
}

// sortRecords 표시 이름, 사용자 id 순 정렬 (모든 구독자가 같은 순서를 보도록)
func sortRecords(recs []model.PresenceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DisplayName != recs[j].DisplayName {
			return recs[i].DisplayName < recs[j].DisplayName
		}
		return recs[i].UserID < recs[j].UserID
	})
}
