package database

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/life-stream-dev/life-stream-go-live-broker/internal/model"
)

// CachedVisibility keeps recent device → viewers lookups so the broadcast path does not
// query storage for every update.
type CachedVisibility struct {
	next  Visibility
	cache *expirable.LRU[int64, []model.ViewerID]
}

func NewCachedVisibility(next Visibility, size int, ttl time.Duration) *CachedVisibility {
	return &CachedVisibility{
		next:  next,
		cache: expirable.NewLRU[int64, []model.ViewerID](size, nil, ttl),
	}
}

func (cv *CachedVisibility) ViewerIDs(ctx context.Context, deviceID int64) ([]model.ViewerID, error) {
	if viewers, ok := cv.cache.Get(deviceID); ok {
		return viewers, nil
	}
	viewers, err := cv.next.ViewerIDs(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	cv.cache.Add(deviceID, viewers)
	return viewers, nil
}

// Invalidate drops the cached viewers of a device.
func (cv *CachedVisibility) Invalidate(deviceID int64) {
	cv.cache.Remove(deviceID)
}
