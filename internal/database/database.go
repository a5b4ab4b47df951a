package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	c "github.com/life-stream-dev/life-stream-go-live-broker/internal/config"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/logger"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DBCloseCallback struct {
	store *DBStore
}

func NewDBCloseCallback(store *DBStore) *DBCloseCallback {
	return &DBCloseCallback{store: store}
}

func (dc *DBCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	return dc.store.client.Disconnect(ctx)
}

func clientOptions(config c.Config) *options.ClientOptions {
	encodedUser := url.QueryEscape(config.Database.Username)
	encodedPass := url.QueryEscape(config.Database.Password)
	databaseUrl := fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		encodedUser, encodedPass,
		config.Database.Host,
		config.Database.Port,
	)
	if config.Database.Username == "" {
		databaseUrl = fmt.Sprintf("mongodb://%s:%d/", config.Database.Host, config.Database.Port)
	}

	opts := options.Client().ApplyURI(databaseUrl).SetAppName(config.AppName)
	opts.SetMinPoolSize(config.Database.MinPoolSize)
	opts.SetMaxPoolSize(config.Database.MaxPoolSize)
	opts.SetMaxConnIdleTime(utils.ParseStringTime(config.Database.ConnectIdleTimeout))
	opts.SetConnectTimeout(utils.ParseStringTime(config.Database.ConnectTimeout))
	opts.SetSocketTimeout(utils.ParseStringTime(config.Database.SocketTimeout))
	opts.SetHeartbeatInterval(utils.ParseStringTime(config.Database.Heartbeat))
	if config.Database.UseTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s #%d", evt.Address, evt.ConnectionID)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s #%d reason=%s", evt.Address, evt.ConnectionID, evt.Reason)
			}
		},
	})
	return opts
}

// ConnectDatabase dials MongoDB, verifies the connection and prepares indexes.
func ConnectDatabase(ctx context.Context, config c.Config) (*DBStore, error) {
	logger.DebugF("Connecting to database...")

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(config))
	if err != nil {
		return nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	db := client.Database(config.Database.Database)
	if err = ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	timeout := utils.ParseStringTime(config.Database.OperationTimeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DBStore{client: client, db: db, operationTimeout: timeout}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(UserDeviceCollectionName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "device_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_devices_user_device_unique"),
		},
		{
			Keys:    bson.D{{Key: "device_id", Value: 1}},
			Options: options.Index().SetName("user_devices_device_id"),
		},
	})
	if err != nil {
		return fmt.Errorf("error occured while creating database indexes: %w", err)
	}

	_, err = db.Collection(PositionCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "device_id", Value: 1}, {Key: "_id", Value: -1}},
		Options: options.Index().SetName("positions_device_id_id"),
	})
	if err != nil {
		return fmt.Errorf("error occured while creating database indexes: %w", err)
	}
	return nil
}
