// Command prune_strokes deletes whiteboard strokes older than the replay window.
// Only needed for the relational stroke log; the Mongo log expires records through its TTL index.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/config"
	"studyroom-backend/internal/database"
	"studyroom-backend/internal/logger"
	"studyroom-backend/internal/whiteboard"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.Log.Level, true)

	window := flag.Duration("window", cfg.Room.WhiteboardWindow, "keep strokes newer than this")
	dryRun := flag.Bool("dry-run", false, "count expired strokes without deleting them")
	flag.Parse()

	if cfg.Room.StrokeBackend == config.StrokeBackendMongo {
		log.Info().Msg("STROKE_BACKEND=mongo expires strokes by TTL index, nothing to do")
		return
	}

	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	before := time.Now().UTC().Add(-*window)
	strokeLog := whiteboard.NewGormLog(db)

	if *dryRun {
		n, err := strokeLog.CountBefore(ctx, before)
		if err != nil {
			log.Fatal().Err(err).Msg("count failed")
		}
		log.Info().Int64("expired", n).Time("before", before).Msg("dry run")
		return
	}

	n, err := strokeLog.Prune(ctx, before)
	if err != nil {
		log.Fatal().Err(err).Msg("prune failed")
	}
	log.Info().Int64("deleted", n).Time("before", before).Msg("strokes pruned")
}
