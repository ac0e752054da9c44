// Package protocol defines the JSON frames exchanged on the room socket.
package protocol

import (
	"encoding/json"
)

// Client to server
const (
	TypePresenceTrack   = "presence.track"
	TypePresenceUntrack = "presence.untrack"
	TypePing            = "ping"
	TypeChatSend        = "chat.send"
	TypeEmoteSend       = "emote.send"
	TypeTaskList        = "task.list"
	TypeTaskAdd         = "task.add"
	TypeTaskToggle      = "task.toggle"
	TypeTaskDelete      = "task.delete"
	TypeWhiteboardOpen  = "whiteboard.open"
	TypeWhiteboardClose = "whiteboard.close"
	TypeStrokeRecent    = "stroke.recent"
	TypeStrokeDraw      = "stroke.draw"
	TypeStrokeClear     = "stroke.clear"
)

// Server to client
const (
	TypeJoined       = "joined"
	TypeReply        = "reply"
	TypePong         = "pong"
	TypePresenceSync = "presence.sync"
	TypeChat         = "chat"
	TypeEmote        = "emote"
	TypeTaskInsert   = "task.insert"
	TypeTaskUpdate   = "task.update"
	TypeTaskDeleted  = "task.delete"
	TypeStroke       = "stroke"
)

// Envelope every frame on the socket. Ref pairs a request with its reply.
type Envelope struct {
	Type    string          `json:"type"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Decode unmarshals the payload into v
func (e Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Encode builds a frame
func Encode(typ, ref string, payload interface{}) ([]byte, error) {
	env := Envelope{Type: typ, Ref: ref}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Reply builds the answer to a request. A non-nil err sets the error field and drops the payload.
func Reply(ref string, payload interface{}, err error) ([]byte, error) {
	if err != nil {
		return json.Marshal(Envelope{Type: TypeReply, Ref: ref, Error: err.Error()})
	}
	return Encode(TypeReply, ref, payload)
}

// Joined first frame after the socket is accepted
type Joined struct {
	RoomID   string `json:"room_id"`
	RoomCode string `json:"room_code"`
	RoomName string `json:"room_name"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	ConnID   string `json:"conn_id"`
}

// TrackRequest presence.track payload. Identity fields come from the token.
type TrackRequest struct {
	Status string `json:"status"`
}

// TaskAddRequest task.add payload
type TaskAddRequest struct {
	Title string `json:"title"`
}

// TaskRefRequest task.toggle and task.delete payload. Completed, when set, is applied instead of flipping.
type TaskRefRequest struct {
	ID        string `json:"id"`
	Completed *bool  `json:"completed,omitempty"`
}

// TaskDeleted task.delete event payload
type TaskDeleted struct {
	ID string `json:"id"`
}
