package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

type Options struct {
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	ReadLimit    int64
}

func DefaultOptions() Options {
	return Options{
		SendBuffer:   256,
		WriteTimeout: 10 * time.Second,
		PongTimeout:  60 * time.Second,
		ReadLimit:    4096,
	}
}

type pendingUpdate struct {
	kind       string
	item       any
	deviceID   int64
	positionID int64
}

// LiveConnection is one viewer's websocket. Updates arriving before the initial snapshot
// has been queued are held and replayed after it, minus positions the snapshot covers.
type LiveConnection struct {
	id        string
	viewer    model.ViewerID
	socket    Socket
	manager   *ConnectionManager
	snapshots database.SnapshotSource
	opts      Options

	send        chan []byte
	done        chan struct{}
	includeLogs atomic.Bool
	closeOnce   sync.Once

	mu     sync.Mutex
	ready  bool
	closed bool
	held   []pendingUpdate
}

func NewLiveConnection(viewer model.ViewerID, socket Socket, manager *ConnectionManager, snapshots database.SnapshotSource, opts Options) *LiveConnection {
	defaults := DefaultOptions()
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaults.WriteTimeout
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaults.PongTimeout
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaults.ReadLimit
	}
	return &LiveConnection{
		id:        uuid.NewString(),
		viewer:    viewer,
		socket:    socket,
		manager:   manager,
		snapshots: snapshots,
		opts:      opts,
		send:      make(chan []byte, opts.SendBuffer),
		done:      make(chan struct{}),
	}
}

func (c *LiveConnection) ID() string {
	return c.id
}

func (c *LiveConnection) Viewer() model.ViewerID {
	return c.viewer
}

func (c *LiveConnection) IncludeLogs() bool {
	return c.includeLogs.Load()
}

// Serve registers the connection, pushes the snapshot and reads control messages until
// the socket closes. It blocks for the lifetime of the connection.
func (c *LiveConnection) Serve(ctx context.Context) {
	logger.InfoF("[%s] WebSocket connected for viewer %d", c.id, c.viewer)
	defer c.Close()

	if !c.manager.AddListener(c.viewer, c) {
		logger.WarnF("[%s] Connection manager is closed, rejecting viewer %d", c.id, c.viewer)
		return
	}

	go c.writePump()

	if err := c.sendSnapshot(ctx); err != nil {
		logger.ErrorF("[%s] Failed to get initial positions for viewer %d, details: %v", c.id, c.viewer, err)
		return
	}

	c.readPump()
}

func (c *LiveConnection) sendSnapshot(ctx context.Context) error {
	positions, err := c.snapshots.LatestPositions(ctx, c.viewer)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	covered := make(map[int64]int64, len(positions))
	items := make([]any, 0, len(positions))
	for _, p := range positions {
		items = append(items, p)
		covered[p.DeviceID] = p.ID
	}
	logger.InfoF("[%s] Sending initial positions for viewer %d, count: %d", c.id, c.viewer, len(items))
	c.write(Message{KeyPositions: items})

	for _, u := range c.held {
		if u.kind == KeyPositions {
			if id, ok := covered[u.deviceID]; ok && u.positionID <= id {
				continue
			}
		}
		if u.kind == KeyLogs && !c.includeLogs.Load() {
			continue
		}
		c.write(NewMessage(u.kind, u.item))
	}
	c.held = nil
	c.ready = true
	return nil
}

func (c *LiveConnection) readPump() {
	c.socket.SetReadLimit(c.opts.ReadLimit)
	_ = c.socket.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
	})

	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				HandleReadError(c.id, err)
			}
			return
		}
		_ = c.socket.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
		c.handleText(data)
	}
}

func (c *LiveConnection) handleText(data []byte) {
	logger.DebugF("[%s] Received message from viewer %d: %s", c.id, c.viewer, data)
	msg, err := parseControlMessage(data)
	if err != nil {
		logger.WarnF("[%s] Socket JSON parsing error for viewer %d, details: %v", c.id, c.viewer, err)
		return
	}
	if msg.Logs == nil {
		return
	}
	c.includeLogs.Store(*msg.Logs)
	logger.InfoF("[%s] Updated logs preference for viewer %d, includeLogs: %v", c.id, c.viewer, *msg.Logs)
}

func (c *LiveConnection) writePump() {
	ticker := time.NewTicker(c.opts.PongTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := Send(c.socket, websocket.TextMessage, data, c.opts.WriteTimeout); err != nil {
				if !c.isClosed() && !IsNetClosedError(err) {
					logger.WarnF("[%s] Fail to send data, details: %v", c.id, err)
				}
				c.Close()
				return
			}
			logger.DebugF("[%s] Send %d bytes to viewer %d", c.id, len(data), c.viewer)
		case <-ticker.C:
			if err := Send(c.socket, websocket.PingMessage, nil, c.opts.WriteTimeout); err != nil {
				c.Close()
				return
			}
		}
	}
}

// write queues an encoded message. Callers hold c.mu.
func (c *LiveConnection) write(msg Message) {
	data, err := msg.Encode()
	if err != nil {
		logger.WarnF("[%s] Socket JSON formatting error for viewer %d, details: %v", c.id, c.viewer, err)
		return
	}
	select {
	case c.send <- data:
	default:
		logger.WarnF("[%s] Send buffer full, dropping update for viewer %d", c.id, c.viewer)
	}
}

func (c *LiveConnection) deliver(u pendingUpdate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		logger.DebugF("[%s] Attempted to send data to disconnected viewer %d", c.id, c.viewer)
		return
	}
	if !c.ready {
		if len(c.held) >= cap(c.send) {
			logger.WarnF("[%s] Too many updates before snapshot, dropping %s update", c.id, u.kind)
			return
		}
		c.held = append(c.held, u)
		return
	}
	c.write(NewMessage(u.kind, u.item))
}

func (c *LiveConnection) OnKeepalive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.ready {
		return
	}
	c.write(Message{})
}

func (c *LiveConnection) OnUpdateDevice(device *model.Device) {
	c.deliver(pendingUpdate{kind: KeyDevices, item: device, deviceID: device.ID})
}

func (c *LiveConnection) OnUpdatePosition(position *model.Position) {
	logger.DebugF("[%s] Updating position for viewer %d, deviceId: %d, positionId: %d, time: %v",
		c.id, c.viewer, position.DeviceID, position.ID, position.DeviceTime)
	c.deliver(pendingUpdate{kind: KeyPositions, item: position, deviceID: position.DeviceID, positionID: position.ID})
}

func (c *LiveConnection) OnUpdateEvent(event *model.Event) {
	c.deliver(pendingUpdate{kind: KeyEvents, item: event, deviceID: event.DeviceID})
}

func (c *LiveConnection) OnUpdateLog(record *model.LogRecord) {
	if !c.includeLogs.Load() {
		return
	}
	c.deliver(pendingUpdate{kind: KeyLogs, item: record, deviceID: record.DeviceID})
}

func (c *LiveConnection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close unregisters the connection and closes the socket. Safe to call repeatedly.
func (c *LiveConnection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.held = nil
		c.mu.Unlock()

		close(c.done)
		c.manager.RemoveListener(c.viewer, c)

		_ = c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		if err := c.socket.Close(); err != nil && !IsNetClosedError(err) {
			logger.WarnF("[%s] Error occured while closing connection, details: %v", c.id, err)
		}
		logger.InfoF("[%s] WebSocket closed for viewer %d", c.id, c.viewer)
	})
}
