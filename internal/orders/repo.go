package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/ariefcatur/pizza-club-orders/internal/postgres"
	"github.com/jackc/pgx/v5"
)

var (
	ErrUnpaidOrderNotFound = errors.New("unpaid order not found")
	ErrOrderNotFound       = errors.New("order not found")
)

func unpaidOrderNotFound() error {
	return apperr.Wrap(apperr.KindNotFound, MsgUnpaidOrderNotFound, ErrUnpaidOrderNotFound)
}

func orderNotFound() error {
	return apperr.Wrap(apperr.KindNotFound, MsgOrderNotFound, ErrOrderNotFound)
}

// StagingRepo stores provisional orders in unpaid_orders / unpaid_order_items.
type StagingRepo struct{ DB postgres.DBTX }

func (r *StagingRepo) Create(ctx context.Context, p *ProvisionalOrder) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO unpaid_orders(user_id, total_price)
		VALUES ($1, $2) RETURNING id`, p.UserID, p.TotalPrice,
	).Scan(&p.ID)
	if err != nil {
		return err
	}
	for _, it := range p.Items {
		if _, err := r.DB.Exec(ctx, `
			INSERT INTO unpaid_order_items(unpaid_order_id, pizza_size_id, quantity)
			VALUES ($1, $2, $3)`, p.ID, it.VariantID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (r *StagingRepo) GetForUpdate(ctx context.Context, id int64) (ProvisionalOrder, error) {
	p := ProvisionalOrder{}
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, total_price FROM unpaid_orders
		WHERE id=$1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.UserID, &p.TotalPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return ProvisionalOrder{}, unpaidOrderNotFound()
	}
	if err != nil {
		return ProvisionalOrder{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT pizza_size_id, quantity FROM unpaid_order_items
		WHERE unpaid_order_id=$1 ORDER BY id`, id)
	if err != nil {
		return ProvisionalOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it ProvisionalItem
		if err := rows.Scan(&it.VariantID, &it.Quantity); err != nil {
			return ProvisionalOrder{}, err
		}
		p.Items = append(p.Items, it)
	}
	return p, rows.Err()
}

func (r *StagingRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM unpaid_orders WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return unpaidOrderNotFound()
	}
	return nil
}

// OrderRepo stores paid orders in orders / order_items.
type OrderRepo struct{ DB postgres.DBTX }

func (r *OrderRepo) Create(ctx context.Context, o *Order) error {
	if o.Status == "" {
		o.Status = StatusPending
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_price, status)
		VALUES ($1, $2, $3) RETURNING id, created_on, updated_on`,
		o.UserID, o.TotalPrice, string(o.Status),
	).Scan(&o.ID, &o.CreatedOn, &o.UpdatedOn)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := r.DB.Exec(ctx, `
			INSERT INTO order_items(order_id, pizza_size_id, quantity)
			VALUES ($1, $2, $3)`, o.ID, it.VariantID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

const selectOrder = `
	SELECT o.id, o.user_id, COALESCE(u.phone, ''), o.total_price, o.status, o.created_on, o.updated_on
	FROM orders o LEFT JOIN users u ON u.id = o.user_id`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.OwnerPhone, &o.TotalPrice, &o.Status, &o.CreatedOn, &o.UpdatedOn)
	return o, err
}

func (r *OrderRepo) Get(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, selectOrder+` WHERE o.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, orderNotFound()
	}
	if err != nil {
		return Order{}, err
	}
	list := []Order{o}
	if err := r.attachItems(ctx, list); err != nil {
		return Order{}, err
	}
	return list[0], nil
}

func (r *OrderRepo) List(ctx context.Context, userID int64) ([]Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if userID == 0 {
		rows, err = r.DB.Query(ctx, selectOrder+` ORDER BY o.id`)
	} else {
		rows, err = r.DB.Query(ctx, selectOrder+` WHERE o.user_id=$1 ORDER BY o.id`, userID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()
	return out, r.attachItems(ctx, out)
}

// attachItems loads the line items of all orders in one query.
func (r *OrderRepo) attachItems(ctx context.Context, list []Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	pos := make(map[int64]int, len(list))
	for i := range list {
		ids[i] = list[i].ID
		pos[list[i].ID] = i
		list[i].Items = []LineItem{}
	}

	rows, err := r.DB.Query(ctx, `
		SELECT oi.order_id, oi.pizza_size_id, oi.quantity, p.name, s.size, s.price
		FROM order_items oi
		JOIN pizza_sizes s ON s.id = oi.pizza_size_id
		JOIN pizzas p ON p.id = s.pizza_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			it      LineItem
			size    string
		)
		if err := rows.Scan(&orderID, &it.VariantID, &it.Quantity, &it.PizzaName, &size, &it.UnitPrice); err != nil {
			return err
		}
		it.Size = catalog.Size(size)
		o := &list[pos[orderID]]
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, s Status) error {
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_on=now() WHERE id=$1`, id, string(s))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return orderNotFound()
	}
	return nil
}

func (r *OrderRepo) DeleteByStatus(ctx context.Context, s Status) ([]int64, error) {
	rows, err := r.DB.Query(ctx, `DELETE FROM orders WHERE status=$1 RETURNING id`, string(s))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *OrderRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete order %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return orderNotFound()
	}
	return nil
}
