// Package connection tracks the live connections of viewers and fans updates out to them.
package connection

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

// UpdateListener receives updates for one live connection. Implementations must not
// block: the manager calls them from ingestion goroutines.
type UpdateListener interface {
	ID() string
	OnKeepalive()
	OnUpdateDevice(device *model.Device)
	OnUpdatePosition(position *model.Position)
	OnUpdateEvent(event *model.Event)
	OnUpdateLog(record *model.LogRecord)
	Close()
}

// ConnectionManager maps viewers to their live connections.
type ConnectionManager struct {
	visibility database.Visibility

	mu        sync.RWMutex
	listeners map[model.ViewerID]map[string]UpdateListener
	closed    bool
}

func NewConnectionManager(visibility database.Visibility) *ConnectionManager {
	return &ConnectionManager{
		visibility: visibility,
		listeners:  make(map[model.ViewerID]map[string]UpdateListener),
	}
}

// AddListener registers listener under viewer. It returns false once the manager has
// been closed.
func (cm *ConnectionManager) AddListener(viewer model.ViewerID, listener UpdateListener) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.closed {
		return false
	}
	set, ok := cm.listeners[viewer]
	if !ok {
		set = make(map[string]UpdateListener)
		cm.listeners[viewer] = set
	}
	set[listener.ID()] = listener
	logger.DebugF("[%s] Listener added for viewer %d", listener.ID(), viewer)
	return true
}

// RemoveListener unregisters listener. Unknown pairs are ignored.
func (cm *ConnectionManager) RemoveListener(viewer model.ViewerID, listener UpdateListener) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	set, ok := cm.listeners[viewer]
	if !ok {
		return
	}
	if _, ok = set[listener.ID()]; !ok {
		return
	}
	delete(set, listener.ID())
	if len(set) == 0 {
		delete(cm.listeners, viewer)
	}
	logger.DebugF("[%s] Listener removed for viewer %d", listener.ID(), viewer)
}

// Count returns the number of registered connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	n := 0
	for _, set := range cm.listeners {
		n += len(set)
	}
	return n
}

func (cm *ConnectionManager) ViewerCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.listeners)
}

func (cm *ConnectionManager) listenersOf(viewers []model.ViewerID) []UpdateListener {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var result []UpdateListener
	seen := make(map[model.ViewerID]struct{}, len(viewers))
	for _, viewer := range viewers {
		if _, dup := seen[viewer]; dup {
			continue
		}
		seen[viewer] = struct{}{}
		for _, l := range cm.listeners[viewer] {
			result = append(result, l)
		}
	}
	return result
}

func (cm *ConnectionManager) allListeners() []UpdateListener {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	var result []UpdateListener
	for _, set := range cm.listeners {
		for _, l := range set {
			result = append(result, l)
		}
	}
	return result
}

func notify(listener UpdateListener, fn func(UpdateListener)) {
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorF("[%s] Listener panicked during dispatch: %v", listener.ID(), r)
		}
	}()
	fn(listener)
}

func (cm *ConnectionManager) broadcast(ctx context.Context, deviceID int64, kind string, fn func(UpdateListener)) {
	viewers, err := cm.visibility.ViewerIDs(ctx, deviceID)
	if err != nil {
		logger.ErrorF("Failed to resolve viewers of device %d for %s update, details: %v", deviceID, kind, err)
		return
	}
	for _, listener := range cm.listenersOf(viewers) {
		notify(listener, fn)
	}
}

func (cm *ConnectionManager) BroadcastDevice(ctx context.Context, device *model.Device) {
	cm.broadcast(ctx, device.ID, KeyDevices, func(l UpdateListener) { l.OnUpdateDevice(device) })
}

func (cm *ConnectionManager) BroadcastPosition(ctx context.Context, position *model.Position) {
	cm.broadcast(ctx, position.DeviceID, KeyPositions, func(l UpdateListener) { l.OnUpdatePosition(position) })
}

func (cm *ConnectionManager) BroadcastEvent(ctx context.Context, event *model.Event) {
	cm.broadcast(ctx, event.DeviceID, KeyEvents, func(l UpdateListener) { l.OnUpdateEvent(event) })
}

func (cm *ConnectionManager) BroadcastLog(ctx context.Context, record *model.LogRecord) {
	cm.broadcast(ctx, record.DeviceID, KeyLogs, func(l UpdateListener) { l.OnUpdateLog(record) })
}

// RefreshAll pings every registered connection.
func (cm *ConnectionManager) RefreshAll() {
	listeners := cm.allListeners()
	logger.DebugF("Sending keepalive to %d connections", len(listeners))
	for _, listener := range listeners {
		notify(listener, func(l UpdateListener) { l.OnKeepalive() })
	}
}

// Close drains the manager and closes every connection. Later AddListener calls fail.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return
	}
	cm.closed = true
	var listeners []UpdateListener
	for _, set := range cm.listeners {
		for _, l := range set {
			listeners = append(listeners, l)
		}
	}
	cm.listeners = make(map[model.ViewerID]map[string]UpdateListener)
	cm.mu.Unlock()

	logger.InfoF("Closing %d live connections", len(listeners))
	for _, listener := range listeners {
		notify(listener, func(l UpdateListener) { l.Close() })
	}
}

type ManagerCloseCallback struct {
	manager *ConnectionManager
}

func NewManagerCloseCallback(manager *ConnectionManager) *ManagerCloseCallback {
	return &ManagerCloseCallback{manager: manager}
}

func (mc *ManagerCloseCallback) Invoke(context.Context) error {
	mc.manager.Close()
	return nil
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF), IsNetClosedError(err):
		logger.InfoF("[%s] Client close connection", connID)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		logger.InfoF("[%s] Client close connection, details: %v", connID, err)
	case websocket.IsUnexpectedCloseError(err):
		logger.WarnF("[%s] Connection closed unexpectedly, details: %v", connID, err)
	default:
		logger.ErrorF("[%s] Error occured while reading message, details: %v", connID, err)
	}
}
