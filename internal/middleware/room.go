package middleware

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/model"
	"studyroom-backend/internal/rooms"
)

// LocalRoom 조회된 *model.Room을 담는 Locals 키
const LocalRoom = "room"

// RoomDirectory 방 조회 및 멤버십
type RoomDirectory interface {
	FindByCode(ctx context.Context, code string) (*model.Room, error)
	IsMember(ctx context.Context, roomID string, userID int64) (bool, error)
	Join(ctx context.Context, room *model.Room, userID int64) error
}

// RoomMiddleware 방 권한 미들웨어
type RoomMiddleware struct {
	directory RoomDirectory
}

// NewRoomMiddleware RoomMiddleware 생성
func NewRoomMiddleware(directory RoomDirectory) *RoomMiddleware {
	return &RoomMiddleware{directory: directory}
}

// ResolveRoom URL의 :code로 방 조회
func (m *RoomMiddleware) ResolveRoom() fiber.Handler {
	return func(c *fiber.Ctx) error {
		room, err := m.directory.FindByCode(c.UserContext(), c.Params("code"))
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "room not found",
			})
		}
		if err != nil {
			log.Error().Err(err).Str("code", c.Params("code")).Msg("room lookup failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "room lookup failed",
			})
		}

		c.Locals(LocalRoom, room)
		return c.Next()
	}
}

// RequireMembership 방 멤버 필수
func (m *RoomMiddleware) RequireMembership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}

		room, ok := c.Locals(LocalRoom).(*model.Room)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "room not found",
			})
		}

		member, err := m.directory.IsMember(c.UserContext(), room.ID, claims.UserID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "membership check failed",
			})
		}
		if !member {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a room member",
			})
		}

		return c.Next()
	}
}

// JoinOnEntry 방 소켓 접속 시 멤버십 기록
func (m *RoomMiddleware) JoinOnEntry() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := auth.GetClaimsFromContext(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "unauthorized",
			})
		}
		room, ok := c.Locals(LocalRoom).(*model.Room)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "room not found",
			})
		}

		if err := m.directory.Join(c.UserContext(), room, claims.UserID); err != nil {
			log.Error().Err(err).Str("room", room.ID).Int64("user", claims.UserID).Msg("join failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to join room",
			})
		}
		return c.Next()
	}
}

// GetRoom ResolveRoom이 저장한 방 조회
func GetRoom(c *fiber.Ctx) (*model.Room, bool) {
	room, ok := c.Locals(LocalRoom).(*model.Room)
	return room, ok
}
