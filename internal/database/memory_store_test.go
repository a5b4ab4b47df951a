package database

import (
	"context"
	"errors"
	"testing"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

func TestMemoryStoreLatestPositions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SaveDevice(&model.Device{ID: 1, Name: "truck"})
	store.SaveDevice(&model.Device{ID: 2, Name: "van"})
	store.SaveDevice(&model.Device{ID: 3, Name: "bike"})
	store.SavePosition(&model.Position{ID: 10, DeviceID: 1})
	store.SavePosition(&model.Position{ID: 20, DeviceID: 2})
	store.Grant(7, 1)
	store.Grant(7, 2)
	store.Grant(7, 3)

	if err := store.UpdateLatestPosition(ctx, 1, 10); err != nil {
		t.Fatalf("update device 1: %v", err)
	}
	if err := store.UpdateLatestPosition(ctx, 2, 20); err != nil {
		t.Fatalf("update device 2: %v", err)
	}

	positions, err := store.LatestPositions(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(positions) != 2 {
		t.Fatalf("expected 2 positions, got %d", len(positions))
	}
	if positions[0].ID != 10 || positions[1].ID != 20 {
		t.Errorf("unexpected positions %d, %d", positions[0].ID, positions[1].ID)
	}

	positions, _ = store.LatestPositions(ctx, 8)
	if positions == nil || len(positions) != 0 {
		t.Errorf("expected empty non-nil slice for viewer without devices, got %v", positions)
	}
}

func TestMemoryStoreUpdateLatestPosition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SaveDevice(&model.Device{ID: 1, Name: "truck", Status: "online"})

	if err := store.UpdateLatestPosition(ctx, 2, 5); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("expected ErrDeviceNotFound, got %v", err)
	}
	if err := store.UpdateLatestPosition(ctx, 0, 5); !errors.Is(err, ErrInvalidDeviceID) {
		t.Errorf("expected ErrInvalidDeviceID, got %v", err)
	}

	if err := store.UpdateLatestPosition(ctx, 1, 5); err != nil {
		t.Fatal(err)
	}
	device, _ := store.Device(1)
	if device.PositionID != 5 || device.Status != "online" {
		t.Errorf("partial update rewrote unrelated fields: %+v", device)
	}

	id, ok, err := store.LatestPositionID(ctx, 1)
	if err != nil || !ok || id != 5 {
		t.Errorf("LatestPositionID = %d, %v, %v", id, ok, err)
	}
	if _, ok, _ := store.LatestPositionID(ctx, 9); ok {
		t.Error("expected no pointer for unknown device")
	}

	store.FailUpdates(errors.New("unavailable"))
	if err := store.UpdateLatestPosition(ctx, 1, 6); err == nil {
		t.Fatal("expected injected failure")
	}
	if store.UpdateCount() != 1 {
		t.Errorf("expected 1 persisted update, got %d", store.UpdateCount())
	}
}

func TestMemoryStoreViewerIDs(t *testing.T) {
	store := NewMemoryStore()
	store.Grant(3, 1)
	store.Grant(1, 1)
	store.Grant(2, 2)

	viewers, err := store.ViewerIDs(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(viewers) != 2 || viewers[0] != 1 || viewers[1] != 3 {
		t.Errorf("unexpected viewers %v", viewers)
	}

	store.Revoke(3, 1)
	viewers, _ = store.ViewerIDs(context.Background(), 1)
	if len(viewers) != 1 {
		t.Errorf("expected one viewer after revoke, got %v", viewers)
	}
}
