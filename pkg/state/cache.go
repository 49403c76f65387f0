package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisAudienceCache shares resolved audiences between instances. Entries
// expire through the Redis TTL; Invalidate deletes them at once.
type RedisAudienceCache struct {
	client *redis.Client
}

var _ audience.Cache = (*RedisAudienceCache)(nil)

func NewRedisAudienceCache(client *redis.Client) *RedisAudienceCache {
	return &RedisAudienceCache{client: client}
}

func audienceKey(segmentID string) string {
	return audienceKeyPrefix + segmentID
}

func (c *RedisAudienceCache) Get(ctx context.Context, segmentID string) (*audience.Result, bool, error) {
	data, err := c.client.Get(ctx, audienceKey(segmentID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached audience: %w", err)
	}

	var result audience.Result
	if err := json.Unmarshal(data, &result); err != nil {
		// a corrupt entry is treated as a miss and recomputed
		logrus.Warnf("dropping unreadable cached audience for segment %s: %v", segmentID, err)
		return nil, false, nil
	}
	return &result, true, nil
}

func (c *RedisAudienceCache) Set(ctx context.Context, result *audience.Result, ttl time.Duration) error {
	if ttl <= 0 || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal audience: %w", err)
	}
	if err := c.client.Set(ctx, audienceKey(result.SegmentID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache audience: %w", err)
	}
	return nil
}

func (c *RedisAudienceCache) Invalidate(ctx context.Context, segmentID string) error {
	if err := c.client.Del(ctx, audienceKey(segmentID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate audience: %w", err)
	}
	logrus.Debugf("invalidated cached audience for segment %s", segmentID)
	return nil
}
