// Package handler contains the pipeline stages that run after a position is stored.
package handler

import (
	"context"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/cache"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/database"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

type PositionBroadcaster interface {
	BroadcastPosition(ctx context.Context, position *model.Position)
}

// PostProcessHandler moves a device's latest-position pointer forward and publishes the
// position to live viewers. Stale and duplicate positions are dropped.
type PostProcessHandler struct {
	latest      *cache.LatestPositions
	devices     database.DeviceStore
	broadcaster PositionBroadcaster
}

func NewPostProcessHandler(latest *cache.LatestPositions, devices database.DeviceStore, broadcaster PositionBroadcaster) *PostProcessHandler {
	return &PostProcessHandler{latest: latest, devices: devices, broadcaster: broadcaster}
}

// OnPosition never fails the pipeline; callback is always invoked once with false.
func (h *PostProcessHandler) OnPosition(ctx context.Context, position *model.Position, callback func(filtered bool)) {
	defer func() {
		if callback != nil {
			callback(false)
		}
	}()

	unlock := h.latest.Lock(position.DeviceID)
	defer unlock()

	latest, err := h.latest.IsLatest(ctx, position)
	if err != nil {
		logger.WarnF("Failed to check latest position - deviceId: %d, positionId: %d, details: %v",
			position.DeviceID, position.ID, err)
		return
	}
	if !latest {
		logger.InfoF("Skipping position update - not latest position for device: %d, positionId: %d",
			position.DeviceID, position.ID)
		return
	}

	logger.InfoF("Processing new position - deviceId: %d, positionId: %d, time: %v",
		position.DeviceID, position.ID, position.DeviceTime)

	if err = h.devices.UpdateLatestPosition(ctx, position.DeviceID, position.ID); err != nil {
		logger.WarnF("Failed to update device - deviceId: %d, positionId: %d, details: %v",
			position.DeviceID, position.ID, err)
		return
	}

	h.latest.UpdatePosition(position)
	logger.DebugF("Broadcasting position update - deviceId: %d, positionId: %d", position.DeviceID, position.ID)
	h.broadcaster.BroadcastPosition(ctx, position)
}
