package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/channel"
	"studyroom-backend/internal/rooms"
	"studyroom-backend/internal/tasks"
	"studyroom-backend/internal/whiteboard"
)

var validate = validator.New()

// ErrorHandler 핸들러가 반환한 에러를 응답으로 변환하는 fiber 에러 핸들러
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	msg := err.Error()
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

// statusFor 도메인 에러를 HTTP 상태 코드로 변환
func statusFor(err error) int {
	switch {
	case errors.Is(err, rooms.ErrRoomNotFound), errors.Is(err, tasks.ErrTaskNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, rooms.ErrInvalidName),
		errors.Is(err, tasks.ErrInvalidTitle),
		errors.Is(err, whiteboard.ErrInvalidStroke),
		errors.Is(err, channel.ErrInvalidStatus),
		errors.Is(err, errUnknownType),
		errors.Is(err, errBadPayload):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// publicError 내부 에러는 클라이언트에 숨김
func publicError(err error) string {
	if statusFor(err) == fiber.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status == fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": publicError(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
