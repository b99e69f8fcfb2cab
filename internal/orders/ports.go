package orders

import (
	"context"

	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

type Catalog interface {
	FindVariant(ctx context.Context, name string, size catalog.Size) (catalog.SizeVariant, error)
	BumpPopularity(ctx context.Context, variantID int64, delta int) error
}

type StagingStore interface {
	// Create persists p with its items and sets p.ID.
	Create(ctx context.Context, p *ProvisionalOrder) error
	// GetForUpdate loads and locks a provisional order.
	GetForUpdate(ctx context.Context, id int64) (ProvisionalOrder, error)
	// Delete removes the order and its items; not found if it does not exist.
	Delete(ctx context.Context, id int64) error
}

type OrderStore interface {
	// Create persists o with its items and sets ID and timestamps.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (Order, error)
	// List returns the orders of userID, or all orders when userID is 0.
	List(ctx context.Context, userID int64) ([]Order, error)
	UpdateStatus(ctx context.Context, id int64, s Status) error
	// DeleteByStatus returns the ids it removed.
	DeleteByStatus(ctx context.Context, s Status) ([]int64, error)
	Delete(ctx context.Context, id int64) error
}

// Stores are bound to one transaction.
type Stores struct {
	Catalog Catalog
	Staging StagingStore
	Orders  OrderStore
}

// UnitOfWork runs fn in one transaction: committed when fn returns nil, rolled back
// otherwise.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

type PaymentGateway interface {
	// CreateAuthorization starts a payment for total tagged with the provisional order
	// id and returns the URL the payer must visit to approve it.
	CreateAuthorization(ctx context.Context, total decimal.Decimal, provisionalID int64) (string, error)
	// Execute captures an approved payment.
	Execute(ctx context.Context, paymentID, payerID string) error
}

type Notifier interface {
	SendNotification(ctx context.Context, phone, message string) error
}

type EventPublisher interface {
	OrderConfirmed(ctx context.Context, o Order) error
}

type ViewCache interface {
	Get(ctx context.Context, id int64) (Order, bool)
	Set(ctx context.Context, o Order)
	Invalidate(ctx context.Context, ids ...int64)
}
