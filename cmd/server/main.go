package main

import (
	"context"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"studyroom-backend/internal/cache"
	"studyroom-backend/internal/channel"
	"studyroom-backend/internal/config"
	"studyroom-backend/internal/database"
	"studyroom-backend/internal/handler"
	"studyroom-backend/internal/logger"
	"studyroom-backend/internal/presence"
	"studyroom-backend/internal/rooms"
	"studyroom-backend/internal/server"
	"studyroom-backend/internal/tasks"
	"studyroom-backend/internal/whiteboard"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Pretty)

	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	if err := database.Ping(db); err != nil {
		log.Fatal().Err(err).Msg("database ping failed")
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("database connected")

	var (
		redisClient *cache.RedisClient
		store       presence.Store
		relay       channel.Relay
		healthDeps  []handler.Dependency
	)
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		store = presence.NewRedisStore(redisClient.Client(), cfg.Room.PresenceTTL)
		relay = channel.NewRedisRelay(redisClient.Client())
		healthDeps = append(healthDeps, handler.Dependency{Name: "redis", Ping: redisClient.Health})
	} else {
		store = presence.NewMemoryStore(cfg.Room.PresenceTTL)
		relay = channel.NewLocalRelay()
		log.Warn().Msg("REDIS_ADDR not set, running in single-instance mode")
	}

	var (
		strokeLog   whiteboard.StrokeLog
		mongoClient *mongo.Client
	)
	switch cfg.Room.StrokeBackend {
	case config.StrokeBackendMongo:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		mongoClient, err = database.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			cancel()
			log.Fatal().Err(err).Msg("mongo connection failed")
		}
		coll := mongoClient.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		mongoLog := whiteboard.NewMongoLog(coll, cfg.Room.WhiteboardWindow)
		if err := mongoLog.EnsureIndexes(ctx); err != nil {
			cancel()
			log.Fatal().Err(err).Msg("mongo index creation failed")
		}
		cancel()
		strokeLog = mongoLog
		healthDeps = append(healthDeps, handler.Dependency{
			Name: "mongo",
			Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		})
		log.Info().Str("collection", cfg.Mongo.Collection).Msg("stroke log on mongo")
	default:
		strokeLog = whiteboard.NewGormLog(db)
	}

	hub, err := channel.NewHub(context.Background(), relay, store, channel.Options{
		PresenceTTL: cfg.Room.PresenceTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("relay subscription failed")
	}

	directory, err := rooms.NewDirectory(db, redisClient, cfg.Room.CacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("room directory init failed")
	}
	taskService := tasks.NewService(tasks.NewGormRepository(db), hub)
	board := whiteboard.NewService(strokeLog, hub, whiteboard.Options{
		Window:      cfg.Room.WhiteboardWindow,
		ReplayLimit: cfg.Room.WhiteboardReplayLimit,
	})

	srv := server.New(cfg, server.Deps{
		DB:        db,
		Directory: directory,
		Tasks:     taskService,
		Board:     board,
		Hub:       hub,
		Health:    healthDeps,
	})
	srv.SetupMiddleware()
	srv.SetupRoutes()

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	if cfg.Room.StrokeBackend != config.StrokeBackendMongo {
		go runStrokePruner(pruneCtx, board, cfg.Room.WhiteboardWindow)
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			// 의존 순서대로 정리하도록 작업 하나로 실행
			"studyroom": func(ctx context.Context) error {
				stopPrune()
				if err := srv.Shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("http shutdown")
				}
				if err := hub.Close(); err != nil {
					log.Error().Err(err).Msg("hub close")
				}
				if redisClient != nil {
					if err := redisClient.Close(); err != nil {
						log.Error().Err(err).Msg("redis close")
					}
				}
				if mongoClient != nil {
					if err := mongoClient.Disconnect(ctx); err != nil {
						log.Error().Err(err).Msg("mongo disconnect")
					}
				}
				return database.Close(db)
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("code", exitCode).Msg("server exited")
	os.Exit(exitCode)
}

// runStrokePruner 재생 구간보다 오래된 획 삭제 (Mongo는 TTL 인덱스로 만료)
func runStrokePruner(ctx context.Context, board *whiteboard.Service, window time.Duration) {
	interval := window / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := board.Prune(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("stroke prune failed")
				continue
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("pruned expired strokes")
			}
		}
	}
}
