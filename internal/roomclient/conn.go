// Package roomclient is the client side of a study room: presence, the shared task list,
// chat and emotes, and the whiteboard, all over a single room socket.
package roomclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"studyroom-backend/internal/protocol"
)

var (
	ErrClosed    = errors.New("room connection closed")
	ErrNotJoined = errors.New("server did not confirm the join")
)

// RemoteError an error reply from the server
type RemoteError struct {
	Op      string
	Message string
}

func (e *RemoteError) Error() string {
	return e.Op + ": " + e.Message
}

// Conn one room socket. Handlers registered with On run on the read goroutine
// and must not block on Request.
type Conn struct {
	ws      *websocket.Conn
	joined  protocol.Joined
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[string]chan protocol.Envelope
	handlers map[string]map[uint64]func(protocol.Envelope)
	nextID   uint64

	seq       atomic.Uint64
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens the room socket and waits for the joined frame
func Dial(ctx context.Context, url, token string) (*Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(deadline)
	}
	first, err := awaitJoined(ws)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	_ = ws.SetReadDeadline(time.Time{})

	c := &Conn{
		ws:       ws,
		pending:  make(map[string]chan protocol.Envelope),
		handlers: make(map[string]map[uint64]func(protocol.Envelope)),
		done:     make(chan struct{}),
	}
	if err := first.Decode(&c.joined); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("decode joined: %w", err)
	}

	go c.readLoop()
	return c, nil
}

// maxPreJoinFrames room traffic tolerated ahead of the joined frame
const maxPreJoinFrames = 64

// awaitJoined reads up to the joined frame, skipping room events that raced it
func awaitJoined(ws *websocket.Conn) (protocol.Envelope, error) {
	for i := 0; i < maxPreJoinFrames; i++ {
		var env protocol.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			return env, fmt.Errorf("read joined: %w", err)
		}
		if env.Error != "" {
			return env, &RemoteError{Op: "join", Message: env.Error}
		}
		if env.Type == protocol.TypeJoined {
			return env, nil
		}
	}
	return protocol.Envelope{}, ErrNotJoined
}

// Joined identity and room confirmed by the server
func (c *Conn) Joined() protocol.Joined {
	return c.joined
}

// Done closed once the connection is gone
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// On registers fn for frames of type typ. The returned func removes it.
func (c *Conn) On(typ string, fn func(protocol.Envelope)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.handlers[typ] == nil {
		c.handlers[typ] = make(map[uint64]func(protocol.Envelope))
	}
	c.handlers[typ][id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers[typ], id)
	}
}

// Push sends a frame without waiting for an answer
func (c *Conn) Push(ctx context.Context, typ string, payload interface{}) error {
	frame, err := protocol.Encode(typ, "", payload)
	if err != nil {
		return err
	}
	return c.write(ctx, frame)
}

// Request sends a frame and decodes the matching reply into out (which may be nil)
func (c *Conn) Request(ctx context.Context, typ string, payload, out interface{}) error {
	ref := strconv.FormatUint(c.seq.Add(1), 10)
	frame, err := protocol.Encode(typ, ref, payload)
	if err != nil {
		return err
	}

	ch := make(chan protocol.Envelope, 1)
	c.mu.Lock()
	c.pending[ref] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, ref)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, frame); err != nil {
		return err
	}

	select {
	case env := <-ch:
		if env.Error != "" {
			return &RemoteError{Op: typ, Message: env.Error}
		}
		if out == nil {
			return nil
		}
		if err := env.Decode(out); err != nil {
			return fmt.Errorf("decode %s reply: %w", typ, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

func (c *Conn) write(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *Conn) readLoop() {
	defer c.shutdown()

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("room", c.joined.RoomID).Msg("room socket read failed")
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Debug().Err(err).Msg("malformed frame from server")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Conn) dispatch(env protocol.Envelope) {
	c.mu.Lock()
	if env.Ref != "" {
		if ch, ok := c.pending[env.Ref]; ok {
			c.mu.Unlock()
			ch <- env
			return
		}
	}
	fns := make([]func(protocol.Envelope), 0, len(c.handlers[env.Type]))
	for _, fn := range c.handlers[env.Type] {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(env)
	}
}

func (c *Conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// Close sends a close frame and tears the socket down. Idempotent.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.shutdown()
	return nil
}
