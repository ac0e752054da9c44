package whiteboard

import (
	"context"
	"time"

	"gorm.io/gorm"

	"studyroom-backend/internal/model"
)

// GormLog whiteboard_strokes table
type GormLog struct {
	db *gorm.DB
}

func NewGormLog(db *gorm.DB) *GormLog {
	return &GormLog{db: db}
}

func (l *GormLog) Append(ctx context.Context, s *model.Stroke) error {
	return l.db.WithContext(ctx).Create(s).Error
}

func (l *GormLog) Recent(ctx context.Context, roomID string, since time.Time, limit int) ([]model.Stroke, error) {
	strokes := make([]model.Stroke, 0)
	err := l.db.WithContext(ctx).
		Where("room_id = ? AND created_at > ?", roomID, since).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&strokes).Error
	if err != nil {
		return nil, err
	}
	reverse(strokes)
	return strokes, nil
}

func (l *GormLog) DeleteRoomBefore(ctx context.Context, roomID string, before time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("room_id = ? AND created_at < ?", roomID, before).
		Delete(&model.Stroke{})
	return res.RowsAffected, res.Error
}

func (l *GormLog) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := l.db.WithContext(ctx).
		Where("created_at < ?", before).
		Delete(&model.Stroke{})
	return res.RowsAffected, res.Error
}

// CountBefore strokes Prune would delete
func (l *GormLog) CountBefore(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := l.db.WithContext(ctx).Model(&model.Stroke{}).Where("created_at < ?", before).Count(&n).Error
	return n, err
}
