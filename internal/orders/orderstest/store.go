// Package orderstest provides an in-memory orders.UnitOfWork for tests. Each Do call
// runs under one lock and is rolled back to a snapshot when fn fails, mirroring the
// transactional behaviour of the Postgres implementation.
package orderstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/shopspring/decimal"
)

// Operation names accepted by Store.Fail.
const (
	OpFindVariant    = "catalog.find"
	OpBumpPopularity = "catalog.bump"
	OpStageCreate    = "staging.create"
	OpStageDelete    = "staging.delete"
	OpOrderCreate    = "orders.create"
	OpOrderUpdate    = "orders.update"
)

type state struct {
	pizzas   map[string]bool
	variants map[int64]catalog.SizeVariant
	unpaid   map[int64]orders.ProvisionalOrder
	orders   map[int64]orders.Order
	phones   map[int64]string

	nextVariant, nextUnpaid, nextOrder int64
}

func (s *state) clone() *state {
	c := &state{
		pizzas:      make(map[string]bool, len(s.pizzas)),
		variants:    make(map[int64]catalog.SizeVariant, len(s.variants)),
		unpaid:      make(map[int64]orders.ProvisionalOrder, len(s.unpaid)),
		orders:      make(map[int64]orders.Order, len(s.orders)),
		phones:      make(map[int64]string, len(s.phones)),
		nextVariant: s.nextVariant,
		nextUnpaid:  s.nextUnpaid,
		nextOrder:   s.nextOrder,
	}
	for k, v := range s.pizzas {
		c.pizzas[k] = v
	}
	for k, v := range s.variants {
		c.variants[k] = v
	}
	for k, v := range s.unpaid {
		v.Items = append([]orders.ProvisionalItem(nil), v.Items...)
		c.unpaid[k] = v
	}
	for k, v := range s.orders {
		v.Items = append([]orders.LineItem(nil), v.Items...)
		c.orders[k] = v
	}
	for k, v := range s.phones {
		c.phones[k] = v
	}
	return c
}

type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error

	// Commits counts successful units of work.
	Commits int
}

func New() *Store {
	return &Store{
		st: &state{
			pizzas:   map[string]bool{},
			variants: map[int64]catalog.SizeVariant{},
			unpaid:   map[int64]orders.ProvisionalOrder{},
			orders:   map[int64]orders.Order{},
			phones:   map[int64]string{},
		},
		faults: map[string]error{},
	}
}

func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, st orders.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.st.clone()
	tx := &txView{st: s.st, faults: s.faults}
	err := fn(ctx, orders.Stores{Catalog: tx, Staging: stagingView{tx}, Orders: orderView{tx}})
	if err != nil {
		s.st = snap
		return err
	}
	s.Commits++
	return nil
}

// Fail makes every later call of op return err; a nil err clears the fault.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// AddPizza registers a pizza name without sizes.
func (s *Store) AddPizza(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.pizzas[name] = true
}

// AddVariant registers a priced size of name, creating the pizza if needed.
func (s *Store) AddVariant(name string, size catalog.Size, price string) catalog.SizeVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.pizzas[name] = true
	s.st.nextVariant++
	v := catalog.SizeVariant{
		ID:        s.st.nextVariant,
		PizzaName: name,
		Size:      size,
		Price:     decimal.RequireFromString(price),
	}
	s.st.variants[v.ID] = v
	return v
}

func (s *Store) SetPhone(userID int64, phone string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.phones[userID] = phone
}

// PutUnpaid seeds a provisional order and returns it with its id.
func (s *Store) PutUnpaid(p orders.ProvisionalOrder) orders.ProvisionalOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.st.nextUnpaid++
		p.ID = s.st.nextUnpaid
	} else if p.ID > s.st.nextUnpaid {
		s.st.nextUnpaid = p.ID
	}
	s.st.unpaid[p.ID] = p
	return p
}

// PutOrder seeds a paid order and returns it with its id.
func (s *Store) PutOrder(o orders.Order) orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.st.nextOrder++
		o.ID = s.st.nextOrder
	} else if o.ID > s.st.nextOrder {
		s.st.nextOrder = o.ID
	}
	if o.Status == "" {
		o.Status = orders.StatusPending
	}
	s.st.orders[o.ID] = o
	return o
}

func (s *Store) Variant(id int64) catalog.SizeVariant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.variants[id]
}

func (s *Store) Unpaid(id int64) (orders.ProvisionalOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.unpaid[id]
	return p, ok
}

func (s *Store) UnpaidCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.unpaid)
}

// Orders returns the paid orders sorted by id.
func (s *Store) Orders() []orders.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]orders.Order, 0, len(s.st.orders))
	for _, o := range s.st.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type txView struct {
	st     *state
	faults map[string]error
}

func (t *txView) fault(op string) error { return t.faults[op] }

func (t *txView) FindVariant(_ context.Context, name string, size catalog.Size) (catalog.SizeVariant, error) {
	if err := t.fault(OpFindVariant); err != nil {
		return catalog.SizeVariant{}, err
	}
	if !t.st.pizzas[name] {
		return catalog.SizeVariant{}, notFound(catalog.ErrPizzaNotFound, "Pizza '"+name+"' not found")
	}
	for _, v := range t.st.variants {
		if v.PizzaName == name && v.Size == size {
			return v, nil
		}
	}
	return catalog.SizeVariant{}, notFound(catalog.ErrSizeUnavailable,
		"Size '"+string(size)+"' for pizza '"+name+"' is not available yet")
}

func (t *txView) BumpPopularity(_ context.Context, variantID int64, delta int) error {
	if err := t.fault(OpBumpPopularity); err != nil {
		return err
	}
	v := t.st.variants[variantID]
	v.Rating += delta
	t.st.variants[variantID] = v
	return nil
}

type stagingView struct{ *txView }

func (s stagingView) Create(_ context.Context, p *orders.ProvisionalOrder) error {
	if err := s.fault(OpStageCreate); err != nil {
		return err
	}
	s.st.nextUnpaid++
	p.ID = s.st.nextUnpaid
	cp := *p
	cp.Items = append([]orders.ProvisionalItem(nil), p.Items...)
	s.st.unpaid[p.ID] = cp
	return nil
}

func (s stagingView) GetForUpdate(_ context.Context, id int64) (orders.ProvisionalOrder, error) {
	p, ok := s.st.unpaid[id]
	if !ok {
		return orders.ProvisionalOrder{}, notFound(orders.ErrUnpaidOrderNotFound, orders.MsgUnpaidOrderNotFound)
	}
	return p, nil
}

func (s stagingView) Delete(_ context.Context, id int64) error {
	if err := s.fault(OpStageDelete); err != nil {
		return err
	}
	if _, ok := s.st.unpaid[id]; !ok {
		return notFound(orders.ErrUnpaidOrderNotFound, orders.MsgUnpaidOrderNotFound)
	}
	delete(s.st.unpaid, id)
	return nil
}

type orderView struct{ *txView }

func (o orderView) Create(_ context.Context, ord *orders.Order) error {
	if err := o.fault(OpOrderCreate); err != nil {
		return err
	}
	o.st.nextOrder++
	now := time.Now().UTC()
	ord.ID = o.st.nextOrder
	ord.CreatedOn, ord.UpdatedOn = now, now
	if ord.Status == "" {
		ord.Status = orders.StatusPending
	}
	cp := *ord
	cp.Items = append([]orders.LineItem(nil), ord.Items...)
	o.st.orders[ord.ID] = cp
	return nil
}

// view fills in display fields the way the SQL joins do.
func (o orderView) view(ord orders.Order) orders.Order {
	ord.OwnerPhone = o.st.phones[ord.UserID]
	items := make([]orders.LineItem, 0, len(ord.Items))
	for _, it := range ord.Items {
		v := o.st.variants[it.VariantID]
		it.PizzaName, it.Size, it.UnitPrice = v.PizzaName, v.Size, v.Price
		items = append(items, it)
	}
	ord.Items = items
	return ord
}

func (o orderView) Get(_ context.Context, id int64) (orders.Order, error) {
	ord, ok := o.st.orders[id]
	if !ok {
		return orders.Order{}, notFound(orders.ErrOrderNotFound, orders.MsgOrderNotFound)
	}
	return o.view(ord), nil
}

func (o orderView) List(_ context.Context, userID int64) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, ord := range o.st.orders {
		if userID == 0 || ord.UserID == userID {
			out = append(out, o.view(ord))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o orderView) UpdateStatus(_ context.Context, id int64, s orders.Status) error {
	if err := o.fault(OpOrderUpdate); err != nil {
		return err
	}
	ord, ok := o.st.orders[id]
	if !ok {
		return notFound(orders.ErrOrderNotFound, orders.MsgOrderNotFound)
	}
	ord.Status = s
	ord.UpdatedOn = time.Now().UTC()
	o.st.orders[id] = ord
	return nil
}

func (o orderView) DeleteByStatus(_ context.Context, s orders.Status) ([]int64, error) {
	var ids []int64
	for id, ord := range o.st.orders {
		if ord.Status == s {
			ids = append(ids, id)
			delete(o.st.orders, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (o orderView) Delete(_ context.Context, id int64) error {
	if _, ok := o.st.orders[id]; !ok {
		return notFound(orders.ErrOrderNotFound, orders.MsgOrderNotFound)
	}
	delete(o.st.orders, id)
	return nil
}

func notFound(cause error, msg string) error {
	return apperr.Wrap(apperr.KindNotFound, msg, cause)
}
