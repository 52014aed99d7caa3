package rewardconfig

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	activePairKey = "rewardconfig:active_pair"
	activePairTTL = 30 * time.Second
)

type activePair struct {
	Config *RewardConfig `json:"config,omitempty"`
	Season *Season       `json:"season,omitempty"`
}

// ActiveCache keeps the active configuration/season pair in redis so the
// calculate path does not query the database on every order line. Every
// failure degrades to a cache miss; the database stays authoritative.
type ActiveCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewActiveCache(rdb *redis.Client) *ActiveCache {
	return &ActiveCache{rdb: rdb, ttl: activePairTTL}
}

func (c *ActiveCache) Get(ctx context.Context) (*activePair, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}

	raw, err := c.rdb.Get(ctx, activePairKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Debug("active pair cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var pair activePair
	if err := json.Unmarshal(raw, &pair); err != nil {
		zap.L().Debug("active pair cache entry corrupt", zap.Error(err))
		return nil, false
	}

	return &pair, true
}

func (c *ActiveCache) Set(ctx context.Context, pair *activePair) {
	if c == nil || c.rdb == nil {
		return
	}

	raw, err := json.Marshal(pair)
	if err != nil {
		return
	}

	if err := c.rdb.Set(ctx, activePairKey, raw, c.ttl).Err(); err != nil {
		zap.L().Debug("active pair cache write failed", zap.Error(err))
	}
}

func (c *ActiveCache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}

	if err := c.rdb.Del(ctx, activePairKey).Err(); err != nil {
		zap.L().Debug("active pair cache invalidation failed", zap.Error(err))
	}
}
