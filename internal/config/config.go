package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// 화이트보드 획 저장소 백엔드
const (
	StrokeBackendPostgres = "postgres"
	StrokeBackendMongo    = "mongo"
)

// Config 애플리케이션 전체 설정
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Mongo     MongoConfig
	Room      RoomConfig
	Log       LogConfig
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// WebSocketConfig WebSocket 관련 설정
type WebSocketConfig struct {
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PongWait         time.Duration
	SendBufferSize   int
	MaxMessageSize   int64
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string
	AllowHeaders string
}

// AuthConfig 인증 설정 (토큰은 외부 인증 서비스가 발급)
type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
}

// DatabaseConfig 데이터베이스 설정 (postgres, 로컬 개발은 sqlite)
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
	TimeZone   string
}

// DSN postgres 연결 문자열
func (c DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" port=" + c.Port +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.DBName +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}

// RedisConfig Redis 설정 (Addr가 비어 있으면 단일 인스턴스 모드)
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled Redis 주소 설정 여부
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// MongoConfig 획 저장용 MongoDB 설정
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RoomConfig 스터디룸 동작 설정
type RoomConfig struct {
	ChatMaxLength         int
	WhiteboardWindow      time.Duration
	WhiteboardReplayLimit int
	StrokeBackend         string
	PresenceTTL           time.Duration
	PresenceHeartbeat     time.Duration
	CacheTTL              time.Duration
}

// LogConfig 로깅 설정
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load 환경 변수에서 설정 로드 (.env 지원)
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}

	jwtSecret := getRequiredEnv("JWT_SECRET")
	if jwtSecret == "change-this-secret-in-production" {
		log.Fatal().Msg("JWT_SECRET must be changed from the default value")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", ":8080"),
			ReadTimeout:     getDuration("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:   getInt("WS_READ_BUFFER_SIZE", 4*1024),
			WriteBufferSize:  getInt("WS_WRITE_BUFFER_SIZE", 4*1024),
			HandshakeTimeout: getDuration("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
			WriteTimeout:     getDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			PongWait:         getDuration("WS_PONG_WAIT", 60*time.Second),
			SendBufferSize:   getInt("WS_SEND_BUFFER_SIZE", 256),
			MaxMessageSize:   int64(getInt("WS_MAX_MESSAGE_SIZE", 16*1024)),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnv("CORS_ALLOW_ORIGINS", "*"),
			AllowHeaders: getEnv("CORS_ALLOW_HEADERS", "Origin, Content-Type, Accept, Authorization"),
		},
		Auth: AuthConfig{
			JWTSecret:         jwtSecret,
			AccessTokenExpiry: getDuration("ACCESS_TOKEN_EXPIRY", 1*time.Hour),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			SQLitePath: getEnv("DB_SQLITE_PATH", "studyroom.db"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "studyroom"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TimeZone:   getEnv("DB_TIMEZONE", "UTC"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
			Database:   getEnv("MONGO_DATABASE", "studyroom"),
			Collection: getEnv("MONGO_STROKE_COLLECTION", "whiteboard_strokes"),
		},
		Room: RoomConfig{
			ChatMaxLength:         getInt("CHAT_MAX_LENGTH", 500),
			WhiteboardWindow:      getDuration("WHITEBOARD_WINDOW", 30*time.Minute),
			WhiteboardReplayLimit: getInt("WHITEBOARD_REPLAY_LIMIT", 1000),
			StrokeBackend:         strings.ToLower(getEnv("STROKE_BACKEND", StrokeBackendPostgres)),
			PresenceTTL:           getDuration("PRESENCE_TTL", 60*time.Second),
			PresenceHeartbeat:     getDuration("PRESENCE_HEARTBEAT", 25*time.Second),
			CacheTTL:              getDuration("ROOM_CACHE_TTL", 10*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getBool("LOG_PRETTY", false),
		},
	}

	if cfg.Room.StrokeBackend != StrokeBackendPostgres && cfg.Room.StrokeBackend != StrokeBackendMongo {
		log.Fatal().Str("backend", cfg.Room.StrokeBackend).Msg("STROKE_BACKEND must be postgres or mongo")
	}

	return cfg
}

// getRequiredEnv 필수 환경 변수 조회 (없으면 Fatal)
func getRequiredEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		log.Fatal().Str("key", key).Msg("required environment variable is not set")
	}
	return value
}

// getEnv 환경 변수 조회 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getInt 정수형 환경 변수 조회
func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getDuration 시간 환경 변수 조회 (Go duration 또는 초 단위 숫자)
func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if !strings.ContainsAny(value, "smh") {
			if secs, err := strconv.Atoi(value); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
