package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/ariefcatur/pizza-club-orders/internal/auth"
	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	msgInvalidJSON         = "Invalid JSON body"
	msgInvalidSize         = "Invalid pizza size"
	msgInvalidOrderID      = "Invalid order id"
	msgInsufficientPayload = "Insufficient payload data"
	msgInvalidPayload      = "Invalid payload data"
	msgOrderPaymentStarted = "Order created and payment initiated"
	msgOrderCreated        = "Order successfully created"
	msgPaymentCancelled    = "Payment cancelled"
	msgOrderDeleted        = "Order deleted"
	msgDeliveredDeleted    = "Delivered orders deleted"
	msgStatusPending       = "Pending order processing"
	msgStatusInTransition  = "Order in transition"
	msgStatusDelivered     = "Order successfully delivered"
	requestTimeout         = 5 * time.Second
)

// MenuReader lists the pizzas on offer.
type MenuReader interface {
	ListMenu(ctx context.Context) ([]catalog.Pizza, error)
}

// Handler serves the order, payment and menu routes.
type Handler struct {
	Engine *orders.Engine
	Menu   MenuReader
	Auth   *auth.Verifier
	Log    *zap.Logger

	fail func(http.ResponseWriter, *http.Request, error)
}

func (h *Handler) Register(r chi.Router) {
	h.fail = errorWriter(h.Log)
	if h.Auth.OnError == nil {
		h.Auth.OnError = h.fail
	}
	staff := h.Auth.RequireRole(auth.RoleDeliver, auth.RoleAdmin)

	r.Get("/pizzas", h.listMenu)
	r.Get("/payment/execute", h.capturePayment)
	r.Get("/payment/cancel", h.cancelPayment)

	r.Group(func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.With(h.Auth.RequireRole(auth.RoleCustomer)).Post("/orders", h.submitCart)
		r.Get("/orders", h.listOrders)
		r.With(staff).Delete("/orders", h.deleteDelivered)

		r.With(staff).Get("/order/{id}", h.getOrder)
		r.With(staff).Delete("/order/{id}", h.deleteOrder)
		r.Put("/order/{id}/pending", h.setStatus(orders.StatusPending, msgStatusPending))
		r.Put("/order/{id}/in-transition", h.setStatus(orders.StatusInTransition, msgStatusInTransition))
		r.Put("/order/{id}/delivered", h.setStatus(orders.StatusDelivered, msgStatusDelivered))
	})
}

type submitCartReq struct {
	Products []orders.CartLine `json:"products"`
}

type submitCartResp struct {
	Message     string `json:"message"`
	ApprovalURL string `json:"approvalUrl"`
}

func (h *Handler) submitCart(w http.ResponseWriter, r *http.Request) {
	var req submitCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, apperr.BadRequest(msgInvalidJSON))
		return
	}
	for _, l := range req.Products {
		if !l.Size.Valid() {
			h.fail(w, r, apperr.BadRequest(msgInvalidSize))
			return
		}
	}
	id, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	sub, err := h.Engine.SubmitCart(ctx, id.UserID, req.Products)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitCartResp{Message: msgOrderPaymentStarted, ApprovalURL: sub.ApprovalURL})
}

func (h *Handler) capturePayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provisionalID, err := strconv.ParseInt(q.Get("unpaid_order_id"), 10, 64)
	paymentID, payerID := q.Get("paymentId"), q.Get("PayerID")
	if err != nil || paymentID == "" || payerID == "" {
		h.fail(w, r, apperr.BadRequest(msgInsufficientPayload))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := h.Engine.CapturePayment(ctx, provisionalID, paymentID, payerID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message{msgOrderCreated})
}

func (h *Handler) cancelPayment(w http.ResponseWriter, r *http.Request) {
	provisionalID, err := strconv.ParseInt(r.URL.Query().Get("unpaid_order_id"), 10, 64)
	if err != nil {
		h.fail(w, r, apperr.BadRequest(msgInvalidPayload))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Engine.CancelPayment(ctx, provisionalID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{msgPaymentCancelled})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	owner := id.UserID
	if id.Role.Staff() {
		owner = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	list, err := h.Engine.ListOrders(ctx, owner)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, toOrderView(o))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": out})
}

func (h *Handler) deleteDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if _, err := h.Engine.DeleteDelivered(ctx); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{msgDeliveredDeleted})
}

func orderID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.BadRequest(msgInvalidOrderID)
	}
	return id, nil
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.Engine.GetOrder(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": toOrderView(o)})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := orderID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.Engine.DeleteOrder(ctx, id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message{msgOrderDeleted})
}

func (h *Handler) setStatus(status orders.Status, done string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := orderID(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		if _, err := h.Engine.SetStatus(ctx, id, status); err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, message{done})
	}
}

func (h *Handler) listMenu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	menu, err := h.Menu.ListMenu(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]pizzaView, 0, len(menu))
	for _, p := range menu {
		out = append(out, toPizzaView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pizzas": out})
}
