package connection

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type fakeSocket struct {
	mu        sync.Mutex
	written   [][]byte
	incoming  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	block     chan struct{}
	failWrite bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{incoming: make(chan []byte, 16), closed: make(chan struct{})}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case data := <-s.incoming:
		return websocket.TextMessage, data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-s.closed:
		}
	}
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	if s.failWrite {
		return errors.New("broken pipe")
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, append([]byte(nil), data...))
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error          { return nil }
func (s *fakeSocket) SetReadDeadline(time.Time) error           { return nil }
func (s *fakeSocket) SetReadLimit(int64)                        {}
func (s *fakeSocket) SetPongHandler(func(appData string) error) {}
func (s *fakeSocket) WriteControl(int, []byte, time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSocket) messages() []map[string][]json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]map[string][]json.RawMessage, 0, len(s.written))
	for _, data := range s.written {
		var msg map[string][]json.RawMessage
		_ = json.Unmarshal(data, &msg)
		result = append(result, msg)
	}
	return result
}

func (s *fakeSocket) waitFor(t *testing.T, n int) []map[string][]json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs := s.messages(); len(msgs) >= n {
			return msgs
		}
		time.Sleep(5 * time.Millisecond)
	}
	msgs := s.messages()
	t.Fatalf("expected %d messages, got %d", n, len(msgs))
	return msgs
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func ids(t *testing.T, raw []json.RawMessage) []int64 {
	t.Helper()
	var result []int64
	for _, r := range raw {
		var item struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(r, &item); err != nil {
			t.Fatal(err)
		}
		result = append(result, item.ID)
	}
	return result
}
