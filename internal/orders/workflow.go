package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/ariefcatur/pizza-club-orders/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MsgEmptyCart           = "Empty product list"
	MsgDuplicateProduct    = "Same product specified more than once"
	MsgInvalidQuantity     = "Quantity must be a positive number"
	MsgPaymentConflict     = "A conflict occurred while creating the order"
	MsgPaymentExecution    = "Error: payment execution failed: "
	MsgUnpaidOrderNotFound = "Unpaid order not found"
	MsgOrderNotFound       = "Order not found"
	MsgInvalidStatus       = "Invalid order status"
)

// compensationTimeout bounds the clean-up write that runs after the request context may
// already be done.
const compensationTimeout = 5 * time.Second

// commitTimeout bounds the order commit after a payment was executed. It is detached
// from the request: once money moved, the order must land even if the caller left.
const commitTimeout = 10 * time.Second

// DeliveryMessage is the SMS text sent when an order leaves the kitchen.
func DeliveryMessage(orderID int64) string {
	return fmt.Sprintf("Order #%d has been submitted for delivery", orderID)
}

// Engine runs the order saga: a cart is staged as an unpaid order, the payment processor
// authorizes it, and the processor's callback either commits a paid order or cancels the
// staged one. It also owns the order status transitions.
type Engine struct {
	UoW      UnitOfWork
	Gateway  PaymentGateway
	Notifier Notifier
	Events   EventPublisher // optional
	Cache    ViewCache      // optional
	Log      *zap.Logger

	// AllowStatusRollback permits any status on any order. When false only forward
	// moves are accepted.
	AllowStatusRollback bool
	// NotifyOverride, when set, receives every delivery SMS instead of the owner.
	NotifyOverride string
}

// SubmitCart prices the cart, stages it as an unpaid order and asks the gateway to
// authorize the total. When authorization fails the staged order is deleted again.
func (e *Engine) SubmitCart(ctx context.Context, userID int64, lines []CartLine) (Submission, error) {
	if err := validateCart(lines); err != nil {
		return Submission{}, err
	}

	var staged ProvisionalOrder
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		p, err := priceCart(ctx, s.Catalog, userID, lines)
		if err != nil {
			return err
		}
		if err := s.Staging.Create(ctx, &p); err != nil {
			return fmt.Errorf("stage order: %w", err)
		}
		staged = p
		return nil
	})
	metrics.SagaStep(metrics.StepStage, err)
	if err != nil {
		return Submission{}, err
	}

	log := e.Log.With(zap.Int64("unpaid_order_id", staged.ID), zap.Int64("user_id", userID))

	url, err := e.Gateway.CreateAuthorization(ctx, staged.TotalPrice, staged.ID)
	metrics.SagaStep(metrics.StepAuthorize, err)
	if err != nil {
		log.Warn("payment authorization failed, compensating", zap.Error(err))
		e.compensate(ctx, log, staged.ID)
		return Submission{}, apperr.Wrap(apperr.KindConflict, MsgPaymentConflict, err)
	}

	log.Info("order staged, payment initiated", zap.String("total", staged.TotalPrice.StringFixed(2)))
	return Submission{ProvisionalID: staged.ID, ApprovalURL: url, Total: staged.TotalPrice}, nil
}

func validateCart(lines []CartLine) error {
	if len(lines) == 0 {
		return apperr.BadRequest(MsgEmptyCart)
	}
	type key struct {
		name string
		size string
	}
	seen := make(map[key]bool, len(lines))
	for _, l := range lines {
		if l.Quantity <= 0 {
			return apperr.BadRequest(MsgInvalidQuantity)
		}
		k := key{l.Name, string(l.Size)}
		if seen[k] {
			return apperr.BadRequest(MsgDuplicateProduct)
		}
		seen[k] = true
	}
	return nil
}

// priceCart resolves every line before anything is written, so an unknown pizza or size
// aborts the whole cart.
func priceCart(ctx context.Context, c Catalog, userID int64, lines []CartLine) (ProvisionalOrder, error) {
	p := ProvisionalOrder{UserID: userID, TotalPrice: decimal.Zero}
	for _, l := range lines {
		v, err := c.FindVariant(ctx, l.Name, l.Size)
		if err != nil {
			return ProvisionalOrder{}, err
		}
		p.TotalPrice = p.TotalPrice.Add(v.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		p.Items = append(p.Items, ProvisionalItem{VariantID: v.ID, Quantity: l.Quantity})
	}
	return p, nil
}

func (e *Engine) compensate(ctx context.Context, log *zap.Logger, provisionalID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		return s.Staging.Delete(ctx, provisionalID)
	})
	metrics.SagaStep(metrics.StepCompensate, err)
	if err != nil {
		log.Error("compensation failed, unpaid order left staged", zap.Error(err))
	}
}

// CapturePayment executes the approved payment and, only if that succeeds, turns the
// unpaid order into a paid one. An unknown unpaid order is rejected before the payment is
// touched; a failed execution leaves the unpaid order in place for manual reconciliation.
func (e *Engine) CapturePayment(ctx context.Context, provisionalID int64, paymentID, payerID string) (Order, error) {
	log := e.Log.With(zap.Int64("unpaid_order_id", provisionalID), zap.String("payment_id", paymentID))

	// Never execute a payment that has no staged order to land in.
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		_, err := s.Staging.GetForUpdate(ctx, provisionalID)
		return err
	})
	if err != nil {
		if apperr.IsNotFound(err) {
			log.Warn("capture callback for unknown unpaid order")
		}
		return Order{}, err
	}

	err = e.Gateway.Execute(ctx, paymentID, payerID)
	metrics.SagaStep(metrics.StepExecute, err)
	if err != nil {
		log.Error("payment execution failed", zap.Error(err))
		return Order{}, apperr.Wrap(apperr.KindInternal, MsgPaymentExecution+err.Error(), err)
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()

	var order Order
	err = e.UoW.Do(commitCtx, func(ctx context.Context, s Stores) error {
		p, err := s.Staging.GetForUpdate(ctx, provisionalID)
		if err != nil {
			return err
		}
		o := Order{UserID: p.UserID, TotalPrice: p.TotalPrice, Status: StatusPending}
		for _, it := range p.Items {
			if err := s.Catalog.BumpPopularity(ctx, it.VariantID, it.Quantity); err != nil {
				return err
			}
			o.Items = append(o.Items, LineItem{VariantID: it.VariantID, Quantity: it.Quantity})
		}
		if err := s.Orders.Create(ctx, &o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.Staging.Delete(ctx, p.ID); err != nil {
			return err
		}
		order = o
		return nil
	})
	metrics.SagaStep(metrics.StepCommit, err)
	if err != nil {
		if apperr.IsNotFound(err) {
			log.Error("payment executed but unpaid order is gone, reconcile manually")
		}
		return Order{}, err
	}

	log.Info("order confirmed", zap.Int64("order_id", order.ID))
	if e.Events != nil {
		if err := e.Events.OrderConfirmed(ctx, order); err != nil {
			log.Warn("publish order confirmed", zap.Error(err))
		}
	}
	return order, nil
}

// CancelPayment drops an unpaid order after the payer backed out.
func (e *Engine) CancelPayment(ctx context.Context, provisionalID int64) error {
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		return s.Staging.Delete(ctx, provisionalID)
	})
	metrics.SagaStep(metrics.StepCancel, err)
	if err == nil {
		e.Log.Info("unpaid order cancelled", zap.Int64("unpaid_order_id", provisionalID))
	}
	return err
}

// SetStatus moves an order to status. Entering in_transition texts the owner; the
// message is best-effort and never undoes the change.
func (e *Engine) SetStatus(ctx context.Context, orderID int64, status Status) (Order, error) {
	if !status.Valid() {
		return Order{}, apperr.BadRequest(MsgInvalidStatus)
	}

	var order Order
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !e.AllowStatusRollback && !CanTransition(o.Status, status) {
			return apperr.Conflict(fmt.Sprintf("Order status cannot change from %s to %s", o.Status, status))
		}
		if err := s.Orders.UpdateStatus(ctx, orderID, status); err != nil {
			return err
		}
		o.Status = status
		order = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	e.invalidate(ctx, orderID)

	if status == StatusInTransition {
		e.notifyDelivery(ctx, order)
	}
	return order, nil
}

func (e *Engine) notifyDelivery(ctx context.Context, o Order) {
	log := e.Log.With(zap.Int64("order_id", o.ID))
	phone := o.OwnerPhone
	if e.NotifyOverride != "" {
		phone = e.NotifyOverride
	}
	if phone == "" {
		log.Warn("order owner has no phone number")
	}
	if err := e.Notifier.SendNotification(ctx, phone, DeliveryMessage(o.ID)); err != nil {
		metrics.Notification("error")
		log.Warn("delivery notification failed", zap.Error(err))
		return
	}
	metrics.Notification("sent")
}

// ListOrders returns the orders of userID, or every order when userID is 0.
func (e *Engine) ListOrders(ctx context.Context, userID int64) ([]Order, error) {
	var out []Order
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		var err error
		out, err = s.Orders.List(ctx, userID)
		return err
	})
	return out, err
}

func (e *Engine) GetOrder(ctx context.Context, orderID int64) (Order, error) {
	if e.Cache != nil {
		if o, ok := e.Cache.Get(ctx, orderID); ok {
			return o, nil
		}
	}
	var o Order
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		var err error
		o, err = s.Orders.Get(ctx, orderID)
		return err
	})
	if err != nil {
		return Order{}, err
	}
	if e.Cache != nil {
		e.Cache.Set(ctx, o)
	}
	return o, nil
}

// DeleteOrder removes an order whatever its status.
func (e *Engine) DeleteOrder(ctx context.Context, orderID int64) error {
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		return s.Orders.Delete(ctx, orderID)
	})
	if err != nil {
		return err
	}
	e.invalidate(ctx, orderID)
	return nil
}

// DeleteDelivered removes every delivered order and reports how many went.
func (e *Engine) DeleteDelivered(ctx context.Context) (int, error) {
	var ids []int64
	err := e.UoW.Do(ctx, func(ctx context.Context, s Stores) error {
		var err error
		ids, err = s.Orders.DeleteByStatus(ctx, StatusDelivered)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, ids...)
	e.Log.Info("delivered orders deleted", zap.Int("count", len(ids)))
	return len(ids), nil
}

func (e *Engine) invalidate(ctx context.Context, ids ...int64) {
	if e.Cache != nil && len(ids) > 0 {
		e.Cache.Invalidate(ctx, ids...)
	}
}
