package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderCache keeps rendered order views in Redis. Postgres stays the source of truth:
// every failure here degrades to a cache miss. A read that loaded the row before a
// status change can still Set it after the writer's Invalidate; such a view stays stale
// for at most TTL.
type OrderCache struct {
	RDB redis.Cmdable
	TTL time.Duration
	Log *zap.Logger
}

func NewOrderCache(rdb redis.Cmdable, log *zap.Logger) *OrderCache {
	return &OrderCache{RDB: rdb, TTL: TTLOrderView, Log: log}
}

func orderKey(id int64) string { return fmt.Sprintf(KeyOrderView, id) }

func (c *OrderCache) Get(ctx context.Context, id int64) (orders.Order, bool) {
	b, err := c.RDB.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.Log.Warn("order cache get", zap.Int64("order_id", id), zap.Error(err))
		}
		return orders.Order{}, false
	}
	var o orders.Order
	if err := json.Unmarshal(b, &o); err != nil {
		c.Log.Warn("order cache decode", zap.Int64("order_id", id), zap.Error(err))
		return orders.Order{}, false
	}
	return o, true
}

func (c *OrderCache) Set(ctx context.Context, o orders.Order) {
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.RDB.Set(ctx, orderKey(o.ID), b, c.TTL).Err(); err != nil {
		c.Log.Warn("order cache set", zap.Int64("order_id", o.ID), zap.Error(err))
	}
}

func (c *OrderCache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = orderKey(id)
	}
	if err := c.RDB.Del(ctx, keys...).Err(); err != nil {
		c.Log.Warn("order cache invalidate", zap.Int64s("order_ids", ids), zap.Error(err))
	}
}
