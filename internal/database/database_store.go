package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DBStore struct {
	client           *mongo.Client
	db               *mongo.Database
	operationTimeout time.Duration
}

func (ds *DBStore) Database() *mongo.Database {
	return ds.db
}

func wrapErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("document does not exist: %w", err)
	}
	return fmt.Errorf("database operation failed: %w", err)
}

func (ds *DBStore) UpdateLatestPosition(ctx context.Context, deviceID int64, positionID int64) error {
	if deviceID <= 0 {
		return ErrInvalidDeviceID
	}
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	filter := bson.D{{Key: "_id", Value: deviceID}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "position_id", Value: positionID}}}}

	result, err := ds.db.Collection(DeviceCollectionName).UpdateOne(ctx, filter, update)
	if err != nil {
		return wrapErr(err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", ErrDeviceNotFound, deviceID)
	}

	logger.DebugF("Device latest position updated: device_id=%d, position_id=%d, modified=%d",
		deviceID, positionID, result.ModifiedCount)
	return nil
}

func (ds *DBStore) LatestPositionID(ctx context.Context, deviceID int64) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	var device struct {
		PositionID int64 `bson:"position_id"`
	}
	opts := options.FindOne().SetProjection(bson.D{{Key: "position_id", Value: 1}})
	err := ds.db.Collection(DeviceCollectionName).FindOne(ctx, bson.D{{Key: "_id", Value: deviceID}}, opts).Decode(&device)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, wrapErr(err)
	}
	return device.PositionID, device.PositionID > 0, nil
}

func (ds *DBStore) Position(ctx context.Context, id int64) (*model.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	var position model.Position
	if err := ds.db.Collection(PositionCollectionName).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&position); err != nil {
		return nil, wrapErr(err)
	}
	return &position, nil
}

func (ds *DBStore) deviceIDsForViewer(ctx context.Context, viewer model.ViewerID) ([]int64, error) {
	cursor, err := ds.db.Collection(UserDeviceCollectionName).Find(ctx, bson.D{{Key: "user_id", Value: int64(viewer)}})
	if err != nil {
		return nil, wrapErr(err)
	}
	var links []UserDevice
	if err = cursor.All(ctx, &links); err != nil {
		return nil, wrapErr(err)
	}
	ids := make([]int64, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.DeviceID)
	}
	return ids, nil
}

func (ds *DBStore) LatestPositions(ctx context.Context, viewer model.ViewerID) ([]*model.Position, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	startTime := time.Now()
	defer func() {
		logger.DebugF("latest positions query for viewer %d cost: %v", viewer, time.Since(startTime))
	}()

	deviceIDs, err := ds.deviceIDsForViewer(ctx, viewer)
	if err != nil {
		return nil, err
	}
	positions := make([]*model.Position, 0, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return positions, nil
	}

	filter := bson.D{
		{Key: "_id", Value: bson.D{{Key: "$in", Value: deviceIDs}}},
		{Key: "position_id", Value: bson.D{{Key: "$gt", Value: 0}}},
	}
	opts := options.Find().SetProjection(bson.D{{Key: "position_id", Value: 1}})
	cursor, err := ds.db.Collection(DeviceCollectionName).Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(err)
	}
	var pointers []struct {
		PositionID int64 `bson:"position_id"`
	}
	if err = cursor.All(ctx, &pointers); err != nil {
		return nil, wrapErr(err)
	}
	if len(pointers) == 0 {
		return positions, nil
	}

	positionIDs := make([]int64, 0, len(pointers))
	for _, p := range pointers {
		positionIDs = append(positionIDs, p.PositionID)
	}
	cursor, err = ds.db.Collection(PositionCollectionName).Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: positionIDs}}}})
	if err != nil {
		return nil, wrapErr(err)
	}
	if err = cursor.All(ctx, &positions); err != nil {
		return nil, wrapErr(err)
	}
	return positions, nil
}

func (ds *DBStore) ViewerIDs(ctx context.Context, deviceID int64) ([]model.ViewerID, error) {
	ctx, cancel := context.WithTimeout(ctx, ds.operationTimeout)
	defer cancel()

	values, err := ds.db.Collection(UserDeviceCollectionName).Distinct(ctx, "user_id", bson.D{{Key: "device_id", Value: deviceID}})
	if err != nil {
		return nil, wrapErr(err)
	}
	viewers := make([]model.ViewerID, 0, len(values))
	for _, v := range values {
		switch id := v.(type) {
		case int64:
			viewers = append(viewers, model.ViewerID(id))
		case int32:
			viewers = append(viewers, model.ViewerID(id))
		case float64:
			viewers = append(viewers, model.ViewerID(id))
		default:
			logger.WarnF("Ignoring user_id of unexpected type %T for device %d", v, deviceID)
		}
	}
	return viewers, nil
}
