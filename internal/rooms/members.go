package rooms

import (
	"context"

	"gorm.io/gorm/clause"

	"studyroom-backend/internal/model"
)

// Join records membership. Joining twice is fine.
func (d *Directory) Join(ctx context.Context, room *model.Room, userID int64) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.RoomMember{RoomID: room.ID, UserID: userID}).Error
}

// IsMember whether the user joined the room
func (d *Directory) IsMember(ctx context.Context, roomID string, userID int64) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&model.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	return count > 0, err
}

// Members everyone who ever joined, oldest first
func (d *Directory) Members(ctx context.Context, roomID string) ([]model.RoomMember, error) {
	var members []model.RoomMember
	err := d.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}
