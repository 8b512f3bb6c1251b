package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cruz-jay/beatbot/db"
	"github.com/cruz-jay/beatbot/model"

	"github.com/go-redis/redis/v8"
)

// trackListTTL bounds staleness of the cached list; terminal-state
// writes invalidate it anyway.
const trackListTTL = 5 * time.Minute

// TrackListKey generates the Redis key for a user's track list.
func TrackListKey(userID int64) string {
	return fmt.Sprintf("tracks:%d", userID)
}

// GetUserTracks returns the cached track list, or (nil, nil) on a
// cache miss or when Redis is unavailable.
func GetUserTracks(ctx context.Context, userID int64) ([]*model.Track, error) {
	if db.RedisClient == nil {
		return nil, nil
	}

	data, err := db.RedisClient.Get(ctx, TrackListKey(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get cached tracks for user %d: %w", userID, err)
	}

	var tracks []*model.Track
	if err := json.Unmarshal([]byte(data), &tracks); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached tracks for user %d: %w", userID, err)
	}
	return tracks, nil
}

// SetUserTracks caches a user's track list.
func SetUserTracks(ctx context.Context, userID int64, tracks []*model.Track) error {
	if db.RedisClient == nil {
		return nil
	}

	data, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("failed to marshal tracks for user %d: %w", userID, err)
	}

	if err := db.RedisClient.Set(ctx, TrackListKey(userID), data, trackListTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache tracks for user %d: %w", userID, err)
	}
	return nil
}

// InvalidateUserTracks drops a user's cached track list. Called when
// a generation reaches a terminal state or a track is deleted.
func InvalidateUserTracks(ctx context.Context, userID int64) error {
	if db.RedisClient == nil {
		return nil
	}

	if err := db.RedisClient.Del(ctx, TrackListKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached tracks for user %d: %w", userID, err)
	}
	return nil
}
