package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"app/internal/usecase"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// tracking照会のキャッシュ: order:tracking:{code} -> OrderOutput JSON
	keyOrderTracking = "order:tracking:%s"
)

// ステータス遷移・更新・削除で明示的に消す。
// 価格同期の分はTTLで自然に切れる
var ttlOrderTracking = 5 * time.Minute

// redisをバックエンドにしたOrderCache。
// キャッシュ障害は照会をDBへ落とすだけでエラーにしない
type OrderRedisCache struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewOrderRedisCache(addr string, logger zerolog.Logger) *OrderRedisCache {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &OrderRedisCache{rdb: rdb, logger: logger}
}

func (c *OrderRedisCache) GetByTracking(ctx context.Context, code string) (usecase.OrderOutput, bool) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyOrderTracking, code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return usecase.OrderOutput{}, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("redis get failed")
		return usecase.OrderOutput{}, false
	}

	var out usecase.OrderOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return usecase.OrderOutput{}, false
	}
	return out, true
}

func (c *OrderRedisCache) SetByTracking(ctx context.Context, code string, out usecase.OrderOutput) {
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, fmt.Sprintf(keyOrderTracking, code), raw, ttlOrderTracking).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis set failed")
	}
}

func (c *OrderRedisCache) DeleteByTracking(ctx context.Context, code string) {
	if code == "" {
		return
	}
	if err := c.rdb.Del(ctx, fmt.Sprintf(keyOrderTracking, code)).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis del failed")
	}
}

func (c *OrderRedisCache) Close() error {
	return c.rdb.Close()
}
