package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

// serve runs srv on a loopback listener and returns its ws base url
func serve(t *testing.T, srv *Server) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = srv.Listener(ln) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return "ws://" + ln.Addr().String()
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, base, code, tok string) *wsClient {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(base+"/ws/rooms/"+code+"?token="+tok, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ, ref string, payload interface{}) {
	c.t.Helper()
	frame, err := protocol.Encode(typ, ref, payload)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

// until reads frames until one matches, returning it with everything skipped on the way
func (c *wsClient) until(match func(protocol.Envelope) bool) (protocol.Envelope, []protocol.Envelope) {
	c.t.Helper()

	var skipped []protocol.Envelope
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, raw, err := c.conn.ReadMessage()
		require.NoError(c.t, err)

		var env protocol.Envelope
		require.NoError(c.t, json.Unmarshal(raw, &env))
		if match(env) {
			return env, skipped
		}
		skipped = append(skipped, env)
	}
}

func (c *wsClient) next(typ string) protocol.Envelope {
	c.t.Helper()
	env, _ := c.until(func(e protocol.Envelope) bool { return e.Type == typ })
	return env
}

func (c *wsClient) reply(ref string) protocol.Envelope {
	c.t.Helper()
	env, _ := c.until(func(e protocol.Envelope) bool { return e.Type == protocol.TypeReply && e.Ref == ref })
	return env
}

func TestRoomSocket(t *testing.T) {
	srv := newTestServer(t)
	aliceTok := token(t, srv, 1, "alice")
	bobTok := token(t, srv, 2, "bob")
	room := createRoom(t, srv, aliceTok, "Study Hall")
	base := serve(t, srv)

	alice := dial(t, base, room.Code, aliceTok)
	var joined protocol.Joined
	require.NoError(t, alice.next(protocol.TypeJoined).Decode(&joined))
	assert.Equal(t, room.ID, joined.RoomID)
	assert.Equal(t, int64(1), joined.UserID)
	assert.NotEmpty(t, joined.ConnID)

	// codes are case-insensitive; bob becomes a member by connecting
	bob := dial(t, base, strings.ToLower(room.Code), bobTok)
	bob.next(protocol.TypeJoined)

	t.Run("presence sync reaches everyone", func(t *testing.T) {
		alice.send(protocol.TypePresenceTrack, "t1", protocol.TrackRequest{Status: "focusing"})
		ack := alice.reply("t1")
		assert.Empty(t, ack.Error)

		var recs []model.PresenceRecord
		require.NoError(t, bob.next(protocol.TypePresenceSync).Decode(&recs))
		require.Len(t, recs, 1)
		assert.Equal(t, "alice", recs[0].DisplayName)
		assert.Equal(t, model.StatusFocusing, recs[0].Status)

		bob.send(protocol.TypePresenceTrack, "t2", protocol.TrackRequest{Status: "away"})
		assert.Contains(t, bob.reply("t2").Error, "invalid presence status")
	})

	t.Run("chat is not echoed to its sender", func(t *testing.T) {
		alice.send(protocol.TypeChatSend, "", model.ChatMessage{Text: "  hello  "})
		alice.send(protocol.TypePing, "p1", nil)

		_, skipped := alice.until(func(e protocol.Envelope) bool { return e.Type == protocol.TypePong && e.Ref == "p1" })
		for _, env := range skipped {
			assert.NotEqual(t, protocol.TypeChat, env.Type)
		}

		var msg model.ChatMessage
		require.NoError(t, bob.next(protocol.TypeChat).Decode(&msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, int64(1), msg.SenderID)
		assert.Equal(t, "alice", msg.SenderName)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("strokes reach open boards only", func(t *testing.T) {
		bob.send(protocol.TypeWhiteboardOpen, "w1", nil)
		bob.reply("w1")

		alice.send(protocol.TypeStrokeDraw, "d1", model.Stroke{X0: 1, Y0: 2, X1: 3, Y1: 4, Color: "#112233", Width: 4})
		var stored model.Stroke
		require.NoError(t, alice.reply("d1").Decode(&stored))
		assert.NotEmpty(t, stored.ID)
		assert.Equal(t, room.ID, stored.RoomID)

		var live model.Stroke
		require.NoError(t, bob.next(protocol.TypeStroke).Decode(&live))
		assert.Equal(t, stored.ID, live.ID)

		bob.send(protocol.TypeStrokeRecent, "r1", nil)
		var recent []model.Stroke
		require.NoError(t, bob.reply("r1").Decode(&recent))
		require.Len(t, recent, 1)
		assert.Equal(t, stored.ID, recent[0].ID)
	})

	t.Run("task changes reach everyone", func(t *testing.T) {
		alice.send(protocol.TypeTaskAdd, "a1", protocol.TaskAddRequest{Title: "flashcards"})

		// the author sees its own insert too, ahead of the reply
		ack, skipped := alice.until(func(e protocol.Envelope) bool { return e.Type == protocol.TypeReply && e.Ref == "a1" })
		var created model.Task
		require.NoError(t, ack.Decode(&created))
		types := make([]string, 0, len(skipped))
		for _, env := range skipped {
			types = append(types, env.Type)
		}
		assert.Contains(t, types, protocol.TypeTaskInsert)

		var inserted model.Task
		require.NoError(t, bob.next(protocol.TypeTaskInsert).Decode(&inserted))
		assert.Equal(t, created.ID, inserted.ID)

		bob.send(protocol.TypeTaskToggle, "g1", protocol.TaskRefRequest{ID: created.ID})
		var toggled model.Task
		require.NoError(t, bob.reply("g1").Decode(&toggled))
		assert.True(t, toggled.Completed)

		bob.send(protocol.TypeTaskDelete, "x1", protocol.TaskRefRequest{ID: "missing"})
		assert.Equal(t, "task not found", bob.reply("x1").Error)
	})

	t.Run("unknown type is answered with an error", func(t *testing.T) {
		alice.send("nope", "u1", nil)
		assert.Equal(t, "unknown message type: nope", alice.reply("u1").Error)
	})
}

func TestRoomSocketRejectsBadToken(t *testing.T) {
	srv := newTestServer(t)
	aliceTok := token(t, srv, 1, "alice")
	room := createRoom(t, srv, aliceTok, "Locked")
	base := serve(t, srv)

	_, resp, err := websocket.DefaultDialer.Dial(base+"/ws/rooms/"+room.Code+"?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/ws/rooms/ZZZZZZ?token="+aliceTok, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomSocketJoinedIsFirstFrame(t *testing.T) {
	srv := newTestServer(t)
	aliceTok := token(t, srv, 1, "alice")
	bobTok := token(t, srv, 2, "bob")
	room := createRoom(t, srv, aliceTok, "Busy")
	base := serve(t, srv)

	alice := dial(t, base, room.Code, aliceTok)
	alice.next(protocol.TypeJoined)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			frame, _ := protocol.Encode(protocol.TypeChatSend, "", model.ChatMessage{Text: "busy"})
			if alice.conn.WriteMessage(websocket.TextMessage, frame) != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer func() {
		close(stop)
		<-done
	}()

	for i := 0; i < 10; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(base+"/ws/rooms/"+room.Code+"?token="+bobTok, nil)
		require.NoError(t, err)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var first protocol.Envelope
		require.NoError(t, conn.ReadJSON(&first))
		assert.Equal(t, protocol.TypeJoined, first.Type)
		_ = conn.Close()
	}
}
