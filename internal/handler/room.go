package handler

import (
	"github.com/gofiber/fiber/v2"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/middleware"
	"studyroom-backend/internal/rooms"
)

// RoomHandler 방 관리 핸들러
type RoomHandler struct {
	directory *rooms.Directory
}

func NewRoomHandler(directory *rooms.Directory) *RoomHandler {
	return &RoomHandler{directory: directory}
}

// CreateRoomRequest 방 생성 요청 (POST /api/rooms)
type CreateRoomRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// CreateRoom 방 생성 (요청자가 소유자)
func (h *RoomHandler) CreateRoom(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}

	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, rooms.ErrInvalidName.Error())
	}

	room, err := h.directory.Create(c.UserContext(), req.Name, claims.UserID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// GetRoom :code로 조회한 방 반환
func (h *RoomHandler) GetRoom(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}
	return c.JSON(room)
}

// JoinRoom 방 참여
func (h *RoomHandler) JoinRoom(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	if err := h.directory.Join(c.UserContext(), room, claims.UserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(room)
}

// ListMembers 방 멤버 목록 조회
func (h *RoomHandler) ListMembers(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	members, err := h.directory.Members(c.UserContext(), room.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"members": members})
}
