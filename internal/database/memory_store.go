package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
	"go.mongodb.org/mongo-driver/mongo"
)

// MemoryStore keeps devices, positions and permissions in process memory. It implements
// every storage boundary of DBStore.
type MemoryStore struct {
	mu          sync.RWMutex
	devices     map[int64]*model.Device
	positions   map[int64]*model.Position
	access      map[model.ViewerID]map[int64]struct{}
	updateErr   error
	updateCount int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		devices:   make(map[int64]*model.Device),
		positions: make(map[int64]*model.Position),
		access:    make(map[model.ViewerID]map[int64]struct{}),
	}
}

func (ms *MemoryStore) SaveDevice(device *model.Device) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	d := *device
	ms.devices[device.ID] = &d
}

func (ms *MemoryStore) SavePosition(position *model.Position) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	p := *position
	ms.positions[position.ID] = &p
}

func (ms *MemoryStore) Grant(viewer model.ViewerID, deviceID int64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.access[viewer] == nil {
		ms.access[viewer] = make(map[int64]struct{})
	}
	ms.access[viewer][deviceID] = struct{}{}
}

func (ms *MemoryStore) Revoke(viewer model.ViewerID, deviceID int64) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.access[viewer], deviceID)
}

// Device returns a copy of the stored device.
func (ms *MemoryStore) Device(id int64) (*model.Device, bool) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	d, ok := ms.devices[id]
	if !ok {
		return nil, false
	}
	copied := *d
	return &copied, true
}

// FailUpdates makes every following UpdateLatestPosition return err. nil restores normal
// behaviour.
func (ms *MemoryStore) FailUpdates(err error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.updateErr = err
}

// UpdateCount reports how many pointer updates were persisted.
func (ms *MemoryStore) UpdateCount() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.updateCount
}

func (ms *MemoryStore) UpdateLatestPosition(_ context.Context, deviceID int64, positionID int64) error {
	if deviceID <= 0 {
		return ErrInvalidDeviceID
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.updateErr != nil {
		return fmt.Errorf("database operation failed: %w", ms.updateErr)
	}
	device, ok := ms.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, deviceID)
	}
	device.PositionID = positionID
	ms.updateCount++
	return nil
}

func (ms *MemoryStore) LatestPositionID(_ context.Context, deviceID int64) (int64, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	device, ok := ms.devices[deviceID]
	if !ok || device.PositionID <= 0 {
		return 0, false, nil
	}
	return device.PositionID, true, nil
}

func (ms *MemoryStore) Position(_ context.Context, id int64) (*model.Position, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	p, ok := ms.positions[id]
	if !ok {
		return nil, fmt.Errorf("document does not exist: %w", mongo.ErrNoDocuments)
	}
	copied := *p
	return &copied, nil
}

func (ms *MemoryStore) LatestPositions(_ context.Context, viewer model.ViewerID) ([]*model.Position, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	positions := make([]*model.Position, 0, len(ms.access[viewer]))
	for deviceID := range ms.access[viewer] {
		device, ok := ms.devices[deviceID]
		if !ok || device.PositionID <= 0 {
			continue
		}
		if p, ok := ms.positions[device.PositionID]; ok {
			copied := *p
			positions = append(positions, &copied)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].DeviceID < positions[j].DeviceID })
	return positions, nil
}

func (ms *MemoryStore) ViewerIDs(_ context.Context, deviceID int64) ([]model.ViewerID, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	var viewers []model.ViewerID
	for viewer, devices := range ms.access {
		if _, ok := devices[deviceID]; ok {
			viewers = append(viewers, viewer)
		}
	}
	sort.Slice(viewers, func(i, j int) bool { return viewers[i] < viewers[j] })
	return viewers, nil
}
