package connection

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	KeyDevices   = "devices"
	KeyPositions = "positions"
	KeyEvents    = "events"
	KeyLogs      = "logs"
)

// Message is one server to client push: update kind to updated entities. An empty
// message is a keepalive.
type Message map[string][]any

func NewMessage(kind string, items ...any) Message {
	if len(items) == 0 {
		return Message{}
	}
	return Message{kind: items}
}

func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// controlMessage is the only client to server payload.
type controlMessage struct {
	Logs *bool `json:"logs"`
}

func parseControlMessage(data []byte) (controlMessage, error) {
	var msg controlMessage
	err := json.Unmarshal(data, &msg)
	return msg, err
}

// Socket is the subset of *websocket.Conn used by a live connection.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// Send writes one frame with a write deadline.
func Send(socket Socket, messageType int, data []byte, writeTimeout time.Duration) error {
	_ = socket.SetWriteDeadline(time.Now().Add(writeTimeout))
	return socket.WriteMessage(messageType, data)
}
