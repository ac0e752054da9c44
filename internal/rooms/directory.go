// Package rooms creates study rooms and resolves join codes.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"studyroom-backend/internal/cache"
	"studyroom-backend/internal/model"
)

const (
	// CodeAlphabet has no 0/O or 1/I so codes survive being read aloud
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	CodeLength   = 6

	maxNameLength   = 100
	maxCodeAttempts = 5
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrInvalidName  = errors.New("room name must be 1-100 characters")
	ErrCodeSpace    = errors.New("could not allocate a unique room code")
)

// Directory room lookup by code, cached in Redis when available
type Directory struct {
	db      *gorm.DB
	cache   *cache.RedisClient
	ttl     time.Duration
	group   singleflight.Group
	newCode func() string
}

// NewDirectory rc may be nil, in which case every lookup hits the database
func NewDirectory(db *gorm.DB, rc *cache.RedisClient, ttl time.Duration) (*Directory, error) {
	gen, err := nanoid.CustomASCII(CodeAlphabet, CodeLength)
	if err != nil {
		return nil, fmt.Errorf("code generator: %w", err)
	}
	return &Directory{db: db, cache: rc, ttl: ttl, newCode: gen}, nil
}

func cacheKey(code string) string {
	return "room:code:" + code
}

// NormalizeCode codes are case-insensitive
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return false
		}
	}
	return true
}

// Create makes a room with a fresh code. The creator becomes its first member.
func (d *Directory) Create(ctx context.Context, name string, creatorID int64) (*model.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		return nil, ErrInvalidName
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		room := &model.Room{
			ID:        uuid.NewString(),
			Code:      d.newCode(),
			Name:      name,
			CreatorID: creatorID,
		}

		err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var taken int64
			if err := tx.Model(&model.Room{}).Where("code = ?", room.Code).Count(&taken).Error; err != nil {
				return err
			}
			if taken > 0 {
				return gorm.ErrDuplicatedKey
			}
			if err := tx.Create(room).Error; err != nil {
				return err
			}
			return tx.Create(&model.RoomMember{RoomID: room.ID, UserID: creatorID}).Error
		})
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Debug().Str("code", room.Code).Int("attempt", attempt+1).Msg("room code collision")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}

		log.Info().Str("room", room.ID).Str("code", room.Code).Int64("creator", creatorID).Msg("room created")
		return room, nil
	}
	return nil, ErrCodeSpace
}

// FindByCode resolves a join code. Concurrent misses for the same code share one query.
func (d *Directory) FindByCode(ctx context.Context, code string) (*model.Room, error) {
	code = NormalizeCode(code)
	if !validCode(code) {
		return nil, ErrRoomNotFound
	}

	if d.cache != nil {
		var room model.Room
		err := d.cache.GetJSON(ctx, cacheKey(code), &room)
		if err == nil {
			return &room, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn().Err(err).Str("code", code).Msg("room cache read failed")
		}
	}

	v, err, _ := d.group.Do(code, func() (interface{}, error) {
		var room model.Room
		err := d.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("find room: %w", err)
		}

		if d.cache != nil {
			if err := d.cache.SetJSON(ctx, cacheKey(code), room, d.ttl); err != nil {
				log.Warn().Err(err).Str("code", code).Msg("room cache write failed")
			}
		}
		return room, nil
	})
	if err != nil {
		return nil, err
	}

	room := v.(model.Room)
	return &room, nil
}
