package tasks

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"studyroom-backend/internal/model"
)

// Repository task persistence
type Repository interface {
	ListByRoom(ctx context.Context, roomID string) ([]model.Task, error)
	Get(ctx context.Context, roomID, id string) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) error
	UpdateCompleted(ctx context.Context, roomID, id string, completed bool) (*model.Task, error)
	Delete(ctx context.Context, roomID, id string) error
}

// GormRepository room_tasks on gorm
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) ListByRoom(ctx context.Context, roomID string) ([]model.Task, error) {
	tasks := make([]model.Task, 0)
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *GormRepository) Get(ctx context.Context, roomID, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, id).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *GormRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *GormRepository) UpdateCompleted(ctx context.Context, roomID, id string, completed bool) (*model.Task, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("room_id = ? AND id = ?", roomID, id).
		Update("completed", completed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTaskNotFound
	}
	return r.Get(ctx, roomID, id)
}

func (r *GormRepository) Delete(ctx context.Context, roomID, id string) error {
	res := r.db.WithContext(ctx).Where("room_id = ? AND id = ?", roomID, id).Delete(&model.Task{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}
