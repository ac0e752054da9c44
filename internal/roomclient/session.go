package roomclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/model"
)

// Options how to reach a room
type Options struct {
	// ServerURL http(s) or ws(s) base of the backend
	ServerURL     string
	Code          string
	Token         string
	Heartbeat     time.Duration
	ChatMaxLength int
	Notifier      Notifier
}

// Session every room component over one socket
type Session struct {
	conn     *Conn
	Presence *Presence
	Tasks    *TaskList
	Chat     *Broadcaster
	Member   model.Member
	RoomID   string

	mu     sync.Mutex
	board  *Whiteboard
	cancel context.CancelFunc
	left   bool
}

// RoomURL websocket url of a room on server
func RoomURL(server, code string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path += "/ws/rooms/" + url.PathEscape(strings.TrimSpace(code))
	return u.String(), nil
}

// Open joins the room: presence first, then the task list and chat
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}

	target, err := RoomURL(opts.ServerURL, opts.Code)
	if err != nil {
		return nil, err
	}
	conn, err := Dial(ctx, target, opts.Token)
	if err != nil {
		return nil, err
	}

	joined := conn.Joined()
	member := model.Member{UserID: joined.UserID, DisplayName: joined.Nickname}

	s := &Session{
		conn:     conn,
		Presence: NewPresence(wsPresence{conn}),
		Tasks:    NewTaskList(wsTasks{conn}, member.UserID, opts.Notifier),
		Member:   member,
		RoomID:   joined.RoomID,
	}

	if err := s.Presence.Join(ctx, joined.RoomID, member); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.Tasks.SubscribeChanges()
	if err := s.Tasks.ListInitial(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	s.Chat = NewBroadcaster(wsBroadcast{conn}, member, opts.ChatMaxLength)

	hbCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.Presence.RunHeartbeat(hbCtx, opts.Heartbeat)

	log.Info().Str("room", joined.RoomID).Str("code", joined.RoomCode).Int64("user", member.UserID).Msg("joined room")
	return s, nil
}

// OpenWhiteboard attaches canvas to the room's board and replays recent strokes
func (s *Session) OpenWhiteboard(ctx context.Context, canvas Canvas) (*Whiteboard, error) {
	s.mu.Lock()
	if s.board != nil {
		board := s.board
		s.mu.Unlock()
		return board, nil
	}
	board := NewWhiteboard(wsStrokes{s.conn}, canvas, s.Member.UserID)
	s.board = board
	s.mu.Unlock()

	if err := board.SubscribeRecent(ctx); err != nil {
		s.mu.Lock()
		s.board = nil
		s.mu.Unlock()
		_ = board.Close(ctx)
		return nil, err
	}
	return board, nil
}

// CloseWhiteboard detaches the board only
func (s *Session) CloseWhiteboard(ctx context.Context) error {
	s.mu.Lock()
	board := s.board
	s.board = nil
	s.mu.Unlock()
	if board == nil {
		return nil
	}
	return board.Close(ctx)
}

// Done closed when the socket drops
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// Leave tears every component down and closes the socket. Idempotent.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.left {
		s.mu.Unlock()
		return nil
	}
	s.left = true
	s.mu.Unlock()

	s.cancel()

	var errs []error
	if err := s.CloseWhiteboard(ctx); err != nil && !errors.Is(err, ErrClosed) {
		errs = append(errs, err)
	}
	s.Chat.Close()
	s.Tasks.Close()
	if err := s.Presence.Leave(ctx); err != nil && !errors.Is(err, ErrClosed) {
		errs = append(errs, err)
	}
	if err := s.conn.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
