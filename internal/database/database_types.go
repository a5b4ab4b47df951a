package database

import (
	"context"
	"errors"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

const (
	DeviceCollectionName     = "devices"
	PositionCollectionName   = "positions"
	EventCollectionName      = "events"
	LogCollectionName        = "logs"
	UserDeviceCollectionName = "user_devices"
)

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidDeviceID = errors.New("device id must be positive")
)

// UserDevice grants a viewer access to a device.
type UserDevice struct {
	UserID   int64 `bson:"user_id"`
	DeviceID int64 `bson:"device_id"`
}

// DeviceStore persists the latest-position pointer of devices.
type DeviceStore interface {
	// UpdateLatestPosition sets only the position pointer of the device.
	UpdateLatestPosition(ctx context.Context, deviceID int64, positionID int64) error
	// LatestPositionID returns the persisted pointer; ok is false when the device
	// has none.
	LatestPositionID(ctx context.Context, deviceID int64) (positionID int64, ok bool, err error)
}

type PositionStore interface {
	Position(ctx context.Context, id int64) (*model.Position, error)
}

// SnapshotSource returns the latest position of every device visible to a viewer.
type SnapshotSource interface {
	LatestPositions(ctx context.Context, viewer model.ViewerID) ([]*model.Position, error)
}

// Visibility resolves which viewers may see a device.
type Visibility interface {
	ViewerIDs(ctx context.Context, deviceID int64) ([]model.ViewerID, error)
}
