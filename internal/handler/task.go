package handler

import (
	"github.com/gofiber/fiber/v2"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/middleware"
	"studyroom-backend/internal/rooms"
	"studyroom-backend/internal/tasks"
)

// TaskHandler 공유 할 일 핸들러
type TaskHandler struct {
	tasks *tasks.Service
}

func NewTaskHandler(svc *tasks.Service) *TaskHandler {
	return &TaskHandler{tasks: svc}
}

type CreateTaskRequest struct {
	Title string `json:"title" validate:"required"`
}

type UpdateTaskRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// ListTasks 할 일 목록 조회 (GET /api/rooms/:code/tasks)
func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	list, err := h.tasks.List(c.UserContext(), room.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tasks": list})
}

// CreateTask 할 일 생성 (POST /api/rooms/:code/tasks)
func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	claims, err := auth.GetClaimsFromContext(c)
	if err != nil {
		return fiber.ErrUnauthorized
	}
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, tasks.ErrInvalidTitle.Error())
	}

	task, err := h.tasks.Create(c.UserContext(), room.ID, claims.UserID, req.Title)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(task)
}

// UpdateTask 할 일 완료 상태 변경 (PATCH /api/rooms/:code/tasks/:taskId)
func (h *TaskHandler) UpdateTask(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return badRequest(c, "completed is required")
	}

	task, err := h.tasks.SetCompleted(c.UserContext(), room.ID, c.Params("taskId"), *req.Completed)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

// DeleteTask 할 일 삭제 (DELETE /api/rooms/:code/tasks/:taskId)
func (h *TaskHandler) DeleteTask(c *fiber.Ctx) error {
	room, ok := middleware.GetRoom(c)
	if !ok {
		return respondError(c, rooms.ErrRoomNotFound)
	}

	if err := h.tasks.Delete(c.UserContext(), room.ID, c.Params("taskId")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
