package redisx

import "time"

const (
	// Cached order view: order:{order_id} -> JSON of orders.Order
	KeyOrderView = "order:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLOrderView = 5 * time.Minute
	TTLDedup     = 48 * time.Hour
)
