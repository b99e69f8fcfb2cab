package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	relApproval = "approval_url"
	description = "Order from Pizza Club"
)

var ErrNoApprovalURL = errors.New("paypal: payment has no approval url")

// Gateway adapts Client to the order workflow. The provisional order id travels in the
// redirect URLs, so the approval callback can find the staged order again.
type Gateway struct {
	Client   *Client
	BaseURL  string // public base URL of this API, used for redirects
	Currency string
}

func (g *Gateway) redirect(path string, provisionalID int64) string {
	q := url.Values{"unpaid_order_id": {strconv.FormatInt(provisionalID, 10)}}
	return strings.TrimRight(g.BaseURL, "/") + path + "?" + q.Encode()
}

func (g *Gateway) currency() string {
	if g.Currency == "" {
		return "USD"
	}
	return g.Currency
}

func (g *Gateway) CreateAuthorization(ctx context.Context, total decimal.Decimal, provisionalID int64) (string, error) {
	p, err := g.Client.CreatePayment(ctx, Payment{
		Intent: "sale",
		Payer:  Payer{PaymentMethod: "paypal"},
		Transactions: []Transaction{{
			Amount:      Amount{Total: total.StringFixed(2), Currency: g.currency()},
			Description: description,
		}},
		RedirectURLs: &RedirectURLs{
			ReturnURL: g.redirect("/payment/execute", provisionalID),
			CancelURL: g.redirect("/payment/cancel", provisionalID),
		},
	})
	if err != nil {
		return "", err
	}
	link, ok := p.Link(relApproval)
	if !ok {
		return "", fmt.Errorf("%w (payment %s)", ErrNoApprovalURL, p.ID)
	}
	return link, nil
}

// Execute looks the payment up and executes it for payerID.
func (g *Gateway) Execute(ctx context.Context, paymentID, payerID string) error {
	p, err := g.Client.FindPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	_, err = g.Client.ExecutePayment(ctx, p.ID, payerID)
	return err
}
