// Package cache keeps the latest accepted position of every device and decides whether a
// newly processed position may replace it.
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

const lockStripes = 64

// LatestPositions maps device id to the id of its latest accepted position. Entries
// evicted from the LRU are reloaded from the persisted device pointer.
//
// IsLatest and UpdatePosition must be called while holding Lock for the device so that
// the decision and the update form one step.
type LatestPositions struct {
	devices database.DeviceStore
	entries *lru.Cache[int64, int64]
	locks   [lockStripes]sync.Mutex
}

func NewLatestPositions(size int, devices database.DeviceStore) (*LatestPositions, error) {
	entries, err := lru.New[int64, int64](size)
	if err != nil {
		return nil, fmt.Errorf("error occured while creating latest position cache: %w", err)
	}
	return &LatestPositions{devices: devices, entries: entries}, nil
}

// Lock serializes gate decisions for a device and returns the unlock function.
func (lp *LatestPositions) Lock(deviceID int64) func() {
	m := &lp.locks[uint64(deviceID)%lockStripes]
	m.Lock()
	return m.Unlock
}

func (lp *LatestPositions) latestID(ctx context.Context, deviceID int64) (int64, bool, error) {
	if id, ok := lp.entries.Get(deviceID); ok {
		return id, true, nil
	}
	id, ok, err := lp.devices.LatestPositionID(ctx, deviceID)
	if err != nil {
		return 0, false, fmt.Errorf("loading latest position of device %d: %w", deviceID, err)
	}
	if ok {
		lp.entries.Add(deviceID, id)
	}
	return id, ok, nil
}

// IsLatest reports whether position is strictly newer than the recorded latest position
// of its device. A device without a recorded position accepts anything.
func (lp *LatestPositions) IsLatest(ctx context.Context, position *model.Position) (bool, error) {
	id, ok, err := lp.latestID(ctx, position.DeviceID)
	if err != nil {
		return false, err
	}
	return !ok || position.ID > id, nil
}

func (lp *LatestPositions) UpdatePosition(position *model.Position) {
	lp.entries.Add(position.DeviceID, position.ID)
}

// LatestID returns the cached latest position id of a device.
func (lp *LatestPositions) LatestID(deviceID int64) (int64, bool) {
	return lp.entries.Peek(deviceID)
}
