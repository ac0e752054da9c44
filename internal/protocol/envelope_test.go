package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplyWithErrorDropsPayload(t *testing.T) {
	raw, err := Reply("7", map[string]string{"x": "y"}, errors.New("room not found"))
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, TypeReply, env.Type)
	assert.Equal(t, "7", env.Ref)
	assert.Equal(t, "room not found", env.Error)
	assert.Empty(t, env.Payload)
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	raw, err := Encode(TypePong, "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong"}`, string(raw))
}

func TestDecodeEmptyPayload(t *testing.T) {
	env := Envelope{Type: TypeTaskList}
	var req TaskAddRequest
	assert.NoError(t, env.Decode(&req))
	assert.Empty(t, req.Title)
}

func TestDecodeReturnedFrame(t *testing.T) {
	frame := func() Envelope {
		raw, err := Encode(TypeJoined, "", Joined{RoomCode: "ABC123", UserID: 9})
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	}

	var joined Joined
	require.NoError(t, frame().Decode(&joined))
	assert.Equal(t, "ABC123", joined.RoomCode)
	assert.Equal(t, int64(9), joined.UserID)
}
