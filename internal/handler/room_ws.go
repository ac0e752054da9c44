package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/auth"
	"studyroom-backend/internal/channel"
	"studyroom-backend/internal/config"
	"studyroom-backend/internal/middleware"
	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
	"studyroom-backend/internal/session"
	"studyroom-backend/internal/tasks"
	"studyroom-backend/internal/whiteboard"
)

var (
	errUnknownType = errors.New("unknown message type")
	errBadPayload  = errors.New("invalid payload")
)

// RoomWSHandler 방 WebSocket 핸들러 (상태, 채팅, 이모지, 할 일, 화이트보드를 연결 하나로 처리)
type RoomWSHandler struct {
	hub       *channel.Hub
	tasks     *tasks.Service
	board     *whiteboard.Service
	cfg       config.WebSocketConfig
	chatMax   int
	opTimeout time.Duration
}

func NewRoomWSHandler(hub *channel.Hub, taskSvc *tasks.Service, board *whiteboard.Service, cfg config.WebSocketConfig, chatMax int) *RoomWSHandler {
	if chatMax <= 0 {
		chatMax = model.DefaultChatMaxLength
	}
	return &RoomWSHandler{
		hub:       hub,
		tasks:     taskSvc,
		board:     board,
		cfg:       cfg,
		chatMax:   chatMax,
		opTimeout: 10 * time.Second,
	}
}

// HandleWebSocket WebSocket 연결 처리 (클라이언트가 끊을 때까지)
func (h *RoomWSHandler) HandleWebSocket(c *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("room socket panic recovered")
		}
	}()

	room, ok1 := c.Locals(middleware.LocalRoom).(*model.Room)
	userID, ok2 := c.Locals(auth.LocalUserID).(int64)
	nickname, ok3 := c.Locals(auth.LocalNickname).(string)
	if !ok1 || !ok2 || !ok3 {
		_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"reply","error":"invalid session"}`))
		_ = c.Close()
		return
	}

	sess := session.New(room.ID, userID, nickname, h.cfg.SendBufferSize)

	// 방 브로드캐스트 대상이 되기 전에 joined 먼저 큐잉
	h.send(sess, protocol.TypeJoined, "", protocol.Joined{
		RoomID:   room.ID,
		RoomCode: room.Code,
		RoomName: room.Name,
		UserID:   userID,
		Nickname: nickname,
		ConnID:   sess.ID(),
	})
	group := h.hub.Join(room.ID, sess)

	logger := log.With().Str("room", room.ID).Int64("user", userID).Str("conn", sess.ID()).Logger()
	logger.Info().Msg("room socket connected")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.writePump(c, sess)
	}()

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		h.hub.Leave(ctx, room.ID, sess)
		cancel()

		sess.Close()
		wg.Wait()
		_ = c.Close()

		sent, dropped := sess.GetStats()
		logger.Info().
			Dur("duration", sess.Duration().Round(time.Second)).
			Uint64("sent", sent).
			Uint64("dropped", dropped).
			Msg("room socket closed")
	}()

	if h.cfg.MaxMessageSize > 0 {
		c.SetReadLimit(h.cfg.MaxMessageSize)
	}
	_ = c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("read failed")
			}
			return
		}
		_ = c.SetReadDeadline(time.Now().Add(h.cfg.PongWait))

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Debug().Err(err).Msg("malformed frame")
			continue
		}

		h.dispatch(group, sess, &env)
	}
}

// writePump 연결의 유일한 writer (Outbound가 닫히면 종료)
func (h *RoomWSHandler) writePump(c *websocket.Conn, sess *session.Session) {
	pingPeriod := h.cfg.PongWait * 9 / 10
	if pingPeriod <= 0 {
		pingPeriod = 50 * time.Second
	}
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sess.Outbound:
			_ = c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("conn", sess.ID()).Msg("write failed")
				// 읽기 루프 해제
				_ = c.Close()
				return
			}
		case <-ticker.C:
			_ = c.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

func decode(env *protocol.Envelope, v interface{}) error {
	if err := env.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func (h *RoomWSHandler) dispatch(group *channel.Group, sess *session.Session, env *protocol.Envelope) {
	ctx, cancel := context.WithTimeout(sess.Context(), h.opTimeout)
	defer cancel()

	var (
		result interface{}
		err    error
	)

	switch env.Type {
	case protocol.TypePing:
		sess.MarkPing()
		if err := group.Heartbeat(ctx, sess); err != nil {
			log.Warn().Err(err).Str("conn", sess.ID()).Msg("heartbeat failed")
		}
		h.send(sess, protocol.TypePong, env.Ref, nil)
		return

	case protocol.TypePresenceTrack:
		var req protocol.TrackRequest
		if err = decode(env, &req); err == nil {
			result, err = group.Track(ctx, sess, model.PresenceStatus(req.Status))
			if err == nil {
				sess.SetState(session.StateTracked)
			}
		}

	case protocol.TypePresenceUntrack:
		err = group.Untrack(ctx, sess)
		if err == nil {
			sess.SetState(session.StateConnected)
		}

	case protocol.TypeChatSend:
		h.relayChat(ctx, sess, env)
		return

	case protocol.TypeEmoteSend:
		h.relayEmote(ctx, sess, env)
		return

	case protocol.TypeTaskList:
		result, err = h.tasks.List(ctx, sess.RoomID)

	case protocol.TypeTaskAdd:
		var req protocol.TaskAddRequest
		if err = decode(env, &req); err == nil {
			result, err = h.tasks.Create(ctx, sess.RoomID, sess.UserID(), req.Title)
		}

	case protocol.TypeTaskToggle:
		var req protocol.TaskRefRequest
		if err = decode(env, &req); err == nil {
			if req.Completed != nil {
				result, err = h.tasks.SetCompleted(ctx, sess.RoomID, req.ID, *req.Completed)
			} else {
				result, err = h.tasks.Toggle(ctx, sess.RoomID, req.ID)
			}
		}

	case protocol.TypeTaskDelete:
		var req protocol.TaskRefRequest
		if err = decode(env, &req); err == nil {
			err = h.tasks.Delete(ctx, sess.RoomID, req.ID)
			result = protocol.TaskDeleted{ID: req.ID}
		}

	case protocol.TypeWhiteboardOpen:
		group.SetWhiteboard(sess, true)

	case protocol.TypeWhiteboardClose:
		group.SetWhiteboard(sess, false)

	case protocol.TypeStrokeRecent:
		result, err = h.board.Recent(ctx, sess.RoomID)

	case protocol.TypeStrokeDraw:
		var in model.Stroke
		if err = decode(env, &in); err == nil {
			result, err = h.board.Draw(ctx, sess.RoomID, sess.UserID(), sess.ID(), in)
		}

	case protocol.TypeStrokeClear:
		var in model.Stroke
		if err = decode(env, &in); err == nil {
			result, err = h.board.Clear(ctx, sess.RoomID, sess.UserID(), sess.ID(), in.ID)
		}

	default:
		err = fmt.Errorf("%w: %s", errUnknownType, env.Type)
	}

	if err != nil && statusFor(err) >= 500 {
		log.Error().Err(err).Str("room", sess.RoomID).Str("conn", sess.ID()).Str("type", env.Type).Msg("socket op failed")
	}
	if env.Ref == "" {
		return
	}
	h.reply(sess, env.Ref, result, err)
}

func (h *RoomWSHandler) relayChat(ctx context.Context, sess *session.Session, env *protocol.Envelope) {
	var msg model.ChatMessage
	if err := env.Decode(&msg); err != nil {
		return
	}
	text := model.ClampText(msg.Text, h.chatMax)
	if text == "" {
		return
	}

	out := model.ChatMessage{
		ID:         msg.ID,
		SenderID:   sess.UserID(),
		SenderName: sess.Nickname(),
		Text:       text,
		SentAt:     time.Now().UTC(),
	}
	if _, err := uuid.Parse(out.ID); err != nil {
		out.ID = uuid.NewString()
	}

	if err := h.hub.Broadcast(ctx, sess.RoomID, sess.ID(), channel.ScopeAll, protocol.TypeChat, out); err != nil {
		log.Warn().Err(err).Str("room", sess.RoomID).Msg("chat not relayed")
	}
}

func (h *RoomWSHandler) relayEmote(ctx context.Context, sess *session.Session, env *protocol.Envelope) {
	var ev model.EmoteEvent
	if err := env.Decode(&ev); err != nil {
		return
	}
	emoji := model.ClampText(ev.Emoji, model.MaxEmojiLength)
	if emoji == "" {
		return
	}

	out := model.EmoteEvent{ID: ev.ID, Emoji: emoji, SenderID: sess.UserID()}
	if _, err := uuid.Parse(out.ID); err != nil {
		out.ID = uuid.NewString()
	}

	if err := h.hub.Broadcast(ctx, sess.RoomID, sess.ID(), channel.ScopeAll, protocol.TypeEmote, out); err != nil {
		log.Warn().Err(err).Str("room", sess.RoomID).Msg("emote not relayed")
	}
}

func (h *RoomWSHandler) send(sess *session.Session, typ, ref string, payload interface{}) {
	frame, err := protocol.Encode(typ, ref, payload)
	if err != nil {
		log.Error().Err(err).Str("type", typ).Msg("encode frame")
		return
	}
	if !sess.Send(frame) {
		log.Warn().Str("conn", sess.ID()).Str("type", typ).Msg("send buffer full, dropping frame")
	}
}

func (h *RoomWSHandler) reply(sess *session.Session, ref string, payload interface{}, err error) {
	if err != nil {
		err = errors.New(publicError(err))
	}
	frame, encErr := protocol.Reply(ref, payload, err)
	if encErr != nil {
		log.Error().Err(encErr).Msg("encode reply")
		return
	}
	if !sess.Send(frame) {
		log.Warn().Str("conn", sess.ID()).Msg("send buffer full, dropping reply")
	}
}
