package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/logger"
	"studyroom-backend/internal/model"
	"studyroom-backend/internal/roomclient"
)

// roombot joins a room as a headless member, focuses, and logs what happens there
func main() {
	_ = godotenv.Load()

	server := flag.String("server", env("ROOM_SERVER_URL", "http://localhost:8080"), "backend base url")
	code := flag.String("code", os.Getenv("ROOM_CODE"), "room join code")
	status := flag.String("status", string(model.StatusFocusing), "status to announce after joining")
	greeting := flag.String("say", "", "chat message to send after joining")
	flag.Parse()

	logger.Init(env("LOG_LEVEL", "info"), true)

	if *code == "" {
		log.Fatal().Msg("room code required (-code or ROOM_CODE)")
	}
	token, err := accessToken()
	if err != nil {
		log.Fatal().Err(err).Msg("no access token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	sess, err := roomclient.Open(ctx, roomclient.Options{
		ServerURL: *server,
		Code:      *code,
		Token:     token,
		Notifier: roomclient.NotifierFunc(func(n roomclient.Notice) {
			log.Warn().Err(n.Err).Str("action", n.Action).Msg(n.Message)
		}),
	})
	if err != nil {
		cancel()
		log.Fatal().Err(err).Msg("join failed")
	}

	sess.Presence.OnSync(func(recs []model.PresenceRecord) {
		for _, r := range recs {
			log.Info().Int64("user", r.UserID).Str("name", r.DisplayName).Str("status", r.Status.String()).Msg("member")
		}
	})
	sess.Chat.OnChatReceived(func(m model.ChatMessage) {
		log.Info().Str("from", m.SenderName).Str("text", m.Text).Msg("chat")
	})
	sess.Tasks.OnChange(func(tasks []model.Task) {
		done := 0
		for _, t := range tasks {
			if t.Completed {
				done++
			}
		}
		log.Info().Int("tasks", len(tasks)).Int("done", done).Msg("task list changed")
	})

	if err := sess.Presence.UpdateStatus(ctx, model.PresenceStatus(*status)); err != nil {
		log.Warn().Err(err).Msg("status not updated")
	}
	if *greeting != "" {
		if _, err := sess.Chat.SendChat(ctx, *greeting); err != nil {
			log.Warn().Err(err).Msg("greeting not sent")
		}
	}
	canvas := roomclient.NewDisplayList()
	if _, err := sess.OpenWhiteboard(ctx, canvas); err != nil {
		log.Warn().Err(err).Msg("whiteboard unavailable")
	} else {
		log.Info().Int("segments", len(canvas.Segments())).Msg("whiteboard replayed")
	}
	cancel()

	go func() {
		<-sess.Done()
		log.Warn().Msg("connection closed by server")
		p, _ := os.FindProcess(os.Getpid())
		_ = p.Signal(os.Interrupt)
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		5*time.Second,
		map[string]gfshutdown.Operation{
			"session": func(ctx context.Context) error {
				return sess.Leave(ctx)
			},
		},
	)
	os.Exit(<-wait)
}

// accessToken ACCESS_TOKEN, or a token minted with the server's JWT_SECRET for local runs
func accessToken() (string, error) {
	if tok := os.Getenv("ACCESS_TOKEN"); tok != "" {
		return tok, nil
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", os.ErrNotExist
	}
	userID, err := strconv.ParseInt(env("BOT_USER_ID", "900001"), 10, 64)
	if err != nil {
		return "", err
	}
	return auth.NewJWTManager(secret, time.Hour).GenerateAccessToken(userID, env("BOT_NICKNAME", "roombot"))
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
