package orders

import (
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/shopspring/decimal"
)

// CartLine is one requested pizza in a cart submission.
type CartLine struct {
	Name     string       `json:"name"`
	Size     catalog.Size `json:"size"`
	Quantity int          `json:"quantity"`
}

// ProvisionalOrder is an order waiting for the payer to approve the payment. It has no
// status: while the row exists the order is unpaid.
type ProvisionalOrder struct {
	ID         int64
	UserID     int64
	TotalPrice decimal.Decimal
	Items      []ProvisionalItem
}

type ProvisionalItem struct {
	VariantID int64
	Quantity  int
}

// Order is a paid order. TotalPrice is copied from the provisional order and never
// recomputed. OwnerPhone is read from users on load and never serialized, so cached
// views and events carry no contact data.
type Order struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	OwnerPhone string          `json:"-"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     Status          `json:"status"`
	CreatedOn  time.Time       `json:"created_on"`
	UpdatedOn  time.Time       `json:"updated_on"`
	Items      []LineItem      `json:"items"`
}

// LineItem references a size variant; name, size and price are read back from the
// catalog for display.
type LineItem struct {
	VariantID int64           `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	PizzaName string          `json:"name,omitempty"`
	Size      catalog.Size    `json:"size,omitempty"`
	UnitPrice decimal.Decimal `json:"price"`
}

// Submission is what a caller gets back once the payment has been initiated.
type Submission struct {
	ProvisionalID int64
	ApprovalURL   string
	Total         decimal.Decimal
}
