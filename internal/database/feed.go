package database

import (
	"context"
	"fmt"

	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

type PositionHandler interface {
	OnPosition(ctx context.Context, position *model.Position, callback func(filtered bool))
}

type UpdateBroadcaster interface {
	BroadcastDevice(ctx context.Context, device *model.Device)
	BroadcastEvent(ctx context.Context, event *model.Event)
	BroadcastLog(ctx context.Context, record *model.LogRecord)
}

type changeEvent[T any] struct {
	OperationType     string `bson:"operationType"`
	FullDocument      *T     `bson:"fullDocument"`
	UpdateDescription struct {
		UpdatedFields bson.M `bson:"updatedFields"`
	} `bson:"updateDescription"`
}

func decodeChange[T any](raw bson.Raw) (*changeEvent[T], error) {
	var change changeEvent[T]
	if err := bson.Unmarshal(raw, &change); err != nil {
		return nil, err
	}
	if change.FullDocument == nil {
		return nil, fmt.Errorf("%s change without full document", change.OperationType)
	}
	return &change, nil
}

// Feed turns inserts written by the ingestion pipeline into live updates. New positions
// go through the position handler; events, logs and device edits are broadcast directly.
type Feed struct {
	db         *mongo.Database
	positions  PositionHandler
	updates    UpdateBroadcaster
	visibility *CachedVisibility
}

func NewFeed(store *DBStore, positions PositionHandler, updates UpdateBroadcaster, visibility *CachedVisibility) *Feed {
	return &Feed{db: store.Database(), positions: positions, updates: updates, visibility: visibility}
}

func (f *Feed) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.watch(ctx, PositionCollectionName, []string{"insert"}, func(raw bson.Raw) {
			change, err := decodeChange[model.Position](raw)
			if err != nil {
				logger.WarnF("Skipping position change, details: %v", err)
				return
			}
			f.positions.OnPosition(ctx, change.FullDocument, func(bool) {})
		})
	})
	g.Go(func() error {
		return f.watch(ctx, EventCollectionName, []string{"insert"}, func(raw bson.Raw) {
			change, err := decodeChange[model.Event](raw)
			if err != nil {
				logger.WarnF("Skipping event change, details: %v", err)
				return
			}
			f.updates.BroadcastEvent(ctx, change.FullDocument)
		})
	})
	g.Go(func() error {
		return f.watch(ctx, LogCollectionName, []string{"insert"}, func(raw bson.Raw) {
			change, err := decodeChange[model.LogRecord](raw)
			if err != nil {
				logger.WarnF("Skipping log change, details: %v", err)
				return
			}
			f.updates.BroadcastLog(ctx, change.FullDocument)
		})
	})
	g.Go(func() error {
		return f.watch(ctx, DeviceCollectionName, []string{"insert", "update", "replace"}, func(raw bson.Raw) {
			change, err := decodeChange[model.Device](raw)
			if err != nil {
				logger.WarnF("Skipping device change, details: %v", err)
				return
			}
			if isPointerOnlyUpdate(change.OperationType, change.UpdateDescription.UpdatedFields) {
				return
			}
			f.updates.BroadcastDevice(ctx, change.FullDocument)
		})
	})
	if f.visibility != nil {
		g.Go(func() error {
			return f.watch(ctx, UserDeviceCollectionName, []string{"insert"}, func(raw bson.Raw) {
				change, err := decodeChange[UserDevice](raw)
				if err != nil {
					logger.WarnF("Skipping permission change, details: %v", err)
					return
				}
				f.visibility.Invalidate(change.FullDocument.DeviceID)
			})
		})
	}
	return g.Wait()
}

// isPointerOnlyUpdate reports device updates written by the position handler itself.
func isPointerOnlyUpdate(operation string, fields bson.M) bool {
	if operation != "update" || len(fields) == 0 {
		return false
	}
	for key := range fields {
		if key != "position_id" {
			return false
		}
	}
	return true
}

func (f *Feed) watch(ctx context.Context, collection string, operations []string, handle func(raw bson.Raw)) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: bson.D{{Key: "$in", Value: operations}}}}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := f.db.Collection(collection).Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("error occured while watching %s: %w", collection, err)
	}
	defer func() {
		_ = stream.Close(context.Background())
	}()

	logger.InfoF("Watching %s for live updates", collection)
	for stream.Next(ctx) {
		handle(stream.Current)
	}
	if err = stream.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("change stream on %s failed: %w", collection, err)
	}
	return nil
}
