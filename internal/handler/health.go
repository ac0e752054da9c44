package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Dependency 선택적 외부 서비스 (실패하면 degraded로 표시)
type Dependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	db   *gorm.DB
	deps []Dependency
}

// NewHealthHandler HealthHandler 생성
func NewHealthHandler(db *gorm.DB, deps ...Dependency) *HealthHandler {
	return &HealthHandler{db: db, deps: deps}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

// Check 전체 상태 확인 (DB + 설정된 외부 서비스)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck),
	}

	dbStart := time.Now()
	if err := h.pingDB(); err != nil {
		response.Status = "unhealthy"
		response.Checks["database"] = ComponentCheck{
			Status: "unhealthy",
			Error:  "database ping failed",
		}
	} else {
		response.Checks["database"] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(dbStart).String(),
		}
	}

	for _, dep := range h.deps {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		start := time.Now()
		err := dep.Ping(ctx)
		cancel()

		if err != nil {
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
			response.Checks[dep.Name] = ComponentCheck{
				Status: "degraded",
				Error:  dep.Name + " unreachable",
			}
			continue
		}
		response.Checks[dep.Name] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(response)
}

// Liveness 프로세스 생존 확인
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness DB 연결 확인
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if err := h.pingDB(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}

func (h *HealthHandler) pingDB() error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
