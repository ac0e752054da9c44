package server

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/channel"
	"studyroom-backend/internal/config"
	"studyroom-backend/internal/handler"
	"studyroom-backend/internal/middleware"
	"studyroom-backend/internal/rooms"
	"studyroom-backend/internal/tasks"
	"studyroom-backend/internal/whiteboard"
)

// Deps 라우트에 연결되는 서비스 묶음
type Deps struct {
	DB        *gorm.DB
	Directory *rooms.Directory
	Tasks     *tasks.Service
	Board     *whiteboard.Service
	Hub       *channel.Hub
	Health    []handler.Dependency
}

// Server Fiber 서버 래퍼
type Server struct {
	app               *fiber.App
	cfg               *config.Config
	jwtManager        *auth.JWTManager
	roomMiddleware    *middleware.RoomMiddleware
	healthHandler     *handler.HealthHandler
	roomHandler       *handler.RoomHandler
	taskHandler       *handler.TaskHandler
	whiteboardHandler *handler.WhiteboardHandler
	roomWSHandler     *handler.RoomWSHandler
}

// New 새 서버 인스턴스 생성 (서빙 전에 SetupMiddleware, SetupRoutes 순서로 호출)
func New(cfg *config.Config, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "Study Room Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket 그룹은 프로세스 메모리에 있음
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          handler.ErrorHandler,
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)

	return &Server{
		app:               app,
		cfg:               cfg,
		jwtManager:        jwtManager,
		roomMiddleware:    middleware.NewRoomMiddleware(deps.Directory),
		healthHandler:     handler.NewHealthHandler(deps.DB, deps.Health...),
		roomHandler:       handler.NewRoomHandler(deps.Directory),
		taskHandler:       handler.NewTaskHandler(deps.Tasks),
		whiteboardHandler: handler.NewWhiteboardHandler(deps.Board),
		roomWSHandler:     handler.NewRoomWSHandler(deps.Hub, deps.Tasks, deps.Board, cfg.WebSocket, cfg.Room.ChatMaxLength),
	}
}

// SetupMiddleware 미들웨어 설정 (recover, 접근 로그, CORS)
func (s *Server) SetupMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c *fiber.Ctx) bool {
			// 헬스체크 요청은 로그 생략
			return c.Path() == "/health/live" || c.Path() == "/health/ready"
		},
	}))

	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, PATCH, DELETE, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정 (HTTP + WebSocket)
func (s *Server) SetupRoutes() {
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// 방 생성만 특정 방에 속하지 않는 쓰기 요청
	createLimiter := limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	api := s.app.Group("/api/rooms", auth.AuthMiddleware(s.jwtManager))
	api.Post("", createLimiter, s.roomHandler.CreateRoom)

	resolve := s.roomMiddleware.ResolveRoom()
	members := s.roomMiddleware.RequireMembership()

	api.Get("/:code", resolve, s.roomHandler.GetRoom)
	api.Post("/:code/join", resolve, s.roomHandler.JoinRoom)
	api.Get("/:code/members", resolve, members, s.roomHandler.ListMembers)

	api.Get("/:code/tasks", resolve, members, s.taskHandler.ListTasks)
	api.Post("/:code/tasks", resolve, members, s.taskHandler.CreateTask)
	api.Patch("/:code/tasks/:taskId", resolve, members, s.taskHandler.UpdateTask)
	api.Delete("/:code/tasks/:taskId", resolve, members, s.taskHandler.DeleteTask)

	api.Get("/:code/strokes/recent", resolve, members, s.whiteboardHandler.GetStrokes)
	api.Post("/:code/strokes", resolve, members, s.whiteboardHandler.Draw)
	api.Post("/:code/strokes/clear", resolve, members, s.whiteboardHandler.Clear)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	s.app.Get("/ws/rooms/:code",
		s.wsAuth,
		s.roomMiddleware.ResolveRoom(),
		s.roomMiddleware.JoinOnEntry(),
		websocket.New(s.roomWSHandler.HandleWebSocket, websocket.Config{
			HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
			ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
		}),
	)
}

// wsAuth 핸드셰이크 인증 (업그레이드 실패 시 브라우저는 본문을 받지 못하므로 상태 코드만 반환)
func (s *Server) wsAuth(c *fiber.Ctx) error {
	token, err := auth.TokenFromRequest(c)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	c.Locals(auth.LocalUserID, claims.UserID)
	c.Locals(auth.LocalNickname, claims.Nickname)
	c.Locals(auth.LocalClaims, claims)
	return c.Next()
}

// App 내부 fiber 앱 반환 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// JWT 라우트가 공유하는 토큰 관리자
func (s *Server) JWT() *auth.JWTManager {
	return s.jwtManager
}

// Start 서버 시작 (Shutdown 전까지 블록)
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.Server.Port).Msg("study room backend starting")
	return s.app.Listen(s.cfg.Server.Port)
}

// Listener 기존 리스너로 서버 시작
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown 서버 종료 (ctx 기한 안에서 연결 정리)
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
