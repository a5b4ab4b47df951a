// Package model holds the entities pushed to live viewers. Their JSON form is the wire
// representation and their bson form is the storage representation.
package model

import "time"

// ViewerID identifies an authenticated viewer. One viewer may own several connections.
type ViewerID int64

type Device struct {
	ID         int64          `json:"id" bson:"_id"`
	Name       string         `json:"name" bson:"name"`
	UniqueID   string         `json:"uniqueId" bson:"unique_id"`
	Status     string         `json:"status,omitempty" bson:"status,omitempty"`
	LastUpdate *time.Time     `json:"lastUpdate,omitempty" bson:"last_update,omitempty"`
	PositionID int64          `json:"positionId" bson:"position_id"`
	Disabled   bool           `json:"disabled" bson:"disabled"`
	Attributes map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// Position is one telemetry sample. ID is assigned by storage and increases
// monotonically; it is the recency key. DeviceTime may arrive out of order.
type Position struct {
	ID         int64          `json:"id" bson:"_id"`
	DeviceID   int64          `json:"deviceId" bson:"device_id"`
	Protocol   string         `json:"protocol,omitempty" bson:"protocol,omitempty"`
	ServerTime time.Time      `json:"serverTime" bson:"server_time"`
	DeviceTime time.Time      `json:"deviceTime" bson:"device_time"`
	FixTime    time.Time      `json:"fixTime" bson:"fix_time"`
	Valid      bool           `json:"valid" bson:"valid"`
	Latitude   float64        `json:"latitude" bson:"latitude"`
	Longitude  float64        `json:"longitude" bson:"longitude"`
	Altitude   float64        `json:"altitude" bson:"altitude"`
	Speed      float64        `json:"speed" bson:"speed"`
	Course     float64        `json:"course" bson:"course"`
	Accuracy   float64        `json:"accuracy,omitempty" bson:"accuracy,omitempty"`
	Address    string         `json:"address,omitempty" bson:"address,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

type Event struct {
	ID         int64          `json:"id" bson:"_id"`
	Type       string         `json:"type" bson:"type"`
	EventTime  time.Time      `json:"eventTime" bson:"event_time"`
	DeviceID   int64          `json:"deviceId" bson:"device_id"`
	PositionID int64          `json:"positionId,omitempty" bson:"position_id,omitempty"`
	GeofenceID int64          `json:"geofenceId,omitempty" bson:"geofence_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
}

// LogRecord is a raw protocol message received from a device.
type LogRecord struct {
	DeviceID      int64  `json:"deviceId" bson:"device_id"`
	UniqueID      string `json:"uniqueId,omitempty" bson:"unique_id,omitempty"`
	Protocol      string `json:"protocol,omitempty" bson:"protocol,omitempty"`
	Data          string `json:"data" bson:"data"`
	RemoteAddress string `json:"remoteAddress,omitempty" bson:"remote_address,omitempty"`
}
