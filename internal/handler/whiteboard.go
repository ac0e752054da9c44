package handler

import (
	"github.com/gofiber/fiber/v2"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/middleware"
	"studyroom-backend/internal/model"
	"studyroom-backend/internal/rooms"
	"studyroom-backend/internal/whiteboard"
)

// WhiteboardHandler REST access to the stroke log. Strokes posted here reach every open board.
type WhiteboardHandler struct {
	board *whiteboard.Service
}

func NewWhiteboardHandler(board *whiteboard.Service) *WhiteboardHandler {
	return &WhiteboardHandler{board: board}
}

type ClearRequest struct {
	ID string `json:"id"`
}

// GetStrokes replay window, oldest first
func (h *WhiteboardHandler) GetStrokes(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	strokes, err := h.board.Recent(c.UserContext(), room.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"strokes": strokes})
}

// Draw POST /api/rooms/:code/strokes
func (h *WhiteboardHandler) Draw(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	var in model.Stroke
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}

	stroke, err := h.board.Draw(c.UserContext(), room.ID, claims.UserID, "", in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stroke)
}

// Clear POST /api/rooms/:code/strokes/clear
func (h *WhiteboardHandler) Clear(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	var req ClearRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	stroke, err := h.board.Clear(c.UserContext(), room.ID, claims.UserID, "", req.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(stroke)
}
