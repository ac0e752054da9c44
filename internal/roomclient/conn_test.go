package roomclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyroom-backend/internal/model"
	"studyroom-backend/internal/protocol"
)

// fakeRoomServer upgrades and writes frames in order, then holds the socket open
func fakeRoomServer(t *testing.T, frames ...[]byte) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for _, f := range frames {
			if err := ws.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func encode(t *testing.T, typ string, payload interface{}) []byte {
	t.Helper()
	frame, err := protocol.Encode(typ, "", payload)
	require.NoError(t, err)
	return frame
}

func TestDialSkipsRoomTrafficBeforeJoined(t *testing.T) {
	url := fakeRoomServer(t,
		encode(t, protocol.TypeChat, model.ChatMessage{ID: "m-1", Text: "early"}),
		encode(t, protocol.TypeStroke, model.Stroke{ID: "s-1"}),
		encode(t, protocol.TypeJoined, protocol.Joined{RoomID: "r-1", UserID: 7, ConnID: "c-1"}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Dial(ctx, url, "tok")
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "r-1", conn.Joined().RoomID)
	assert.Equal(t, "c-1", conn.Joined().ConnID)
}

func TestDialJoinErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("server error", func(t *testing.T) {
		url := fakeRoomServer(t, []byte(`{"type":"reply","error":"invalid session"}`))
		_, err := Dial(ctx, url, "tok")
		var remote *RemoteError
		require.ErrorAs(t, err, &remote)
		assert.Equal(t, "invalid session", remote.Message)
	})

	t.Run("never joined", func(t *testing.T) {
		frames := make([][]byte, maxPreJoinFrames)
		for i := range frames {
			frames[i] = encode(t, protocol.TypeChat, model.ChatMessage{Text: "noise"})
		}
		_, err := Dial(ctx, fakeRoomServer(t, frames...), "tok")
		assert.ErrorIs(t, err, ErrNotJoined)
	})
}
