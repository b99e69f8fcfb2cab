package orders

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/ariefcatur/pizza-club-orders/internal/apperr"
	"github.com/ariefcatur/pizza-club-orders/internal/catalog"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func newMock(t *testing.T) pgxmock.PgxConnIface {
	t.Helper()
	mock, err := pgxmock.NewConn()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("database expectations were not met: %v", err)
		}
		mock.Close(context.Background())
	})
	return mock
}

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	qLockUnpaid  = regexp.QuoteMeta(`SELECT id, user_id, total_price FROM unpaid_orders WHERE id=$1 FOR UPDATE`)
	qUnpaidItems = regexp.QuoteMeta(`SELECT pizza_size_id, quantity FROM unpaid_order_items WHERE unpaid_order_id=$1 ORDER BY id`)
	qOrderByID   = regexp.QuoteMeta(`LEFT JOIN users u ON u.id = o.user_id WHERE o.id=$1`)
	qOrderItems  = regexp.QuoteMeta(`WHERE oi.order_id = ANY($1) ORDER BY oi.order_id, oi.id`)

	orderCols = []string{"id", "user_id", "phone", "total_price", "status", "created_on", "updated_on"}
	itemCols  = []string{"order_id", "pizza_size_id", "quantity", "name", "size", "price"}
)

func TestStagingCreate(t *testing.T) {
	mock := newMock(t)
	repo := &StagingRepo{DB: mock}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO unpaid_orders(user_id, total_price) VALUES ($1, $2) RETURNING id`)).
		WithArgs(int64(3), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	for _, it := range [][]any{{int64(12), 2}, {int64(10), 3}} {
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO unpaid_order_items(unpaid_order_id, pizza_size_id, quantity)`)).
			WithArgs(int64(9), it[0], it[1]).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	p := &ProvisionalOrder{UserID: 3, TotalPrice: price("30.75"), Items: []ProvisionalItem{
		{VariantID: 12, Quantity: 2},
		{VariantID: 10, Quantity: 3},
	}}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.ID != 9 {
		t.Errorf("ID = %d, want 9", p.ID)
	}
}

func TestStagingGetForUpdateLoadsItems(t *testing.T) {
	mock := newMock(t)
	repo := &StagingRepo{DB: mock}

	mock.ExpectQuery(qLockUnpaid).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "total_price"}).AddRow(int64(9), int64(3), price("30.75")))
	mock.ExpectQuery(qUnpaidItems).
		WithArgs(int64(9)).
		WillReturnRows(pgxmock.NewRows([]string{"pizza_size_id", "quantity"}).
			AddRow(int64(12), 2).
			AddRow(int64(10), 3))

	p, err := repo.GetForUpdate(context.Background(), 9)
	if err != nil {
		t.Fatalf("GetForUpdate: %v", err)
	}
	if p.ID != 9 || p.UserID != 3 || !p.TotalPrice.Equal(price("30.75")) {
		t.Errorf("order = %+v", p)
	}
	want := []ProvisionalItem{{VariantID: 12, Quantity: 2}, {VariantID: 10, Quantity: 3}}
	if len(p.Items) != len(want) || p.Items[0] != want[0] || p.Items[1] != want[1] {
		t.Errorf("items = %+v, want %+v", p.Items, want)
	}
}

func TestStagingGetForUpdateMissing(t *testing.T) {
	mock := newMock(t)
	repo := &StagingRepo{DB: mock}

	mock.ExpectQuery(qLockUnpaid).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "total_price"}))

	_, err := repo.GetForUpdate(context.Background(), 404)
	if !errors.Is(err, ErrUnpaidOrderNotFound) || !apperr.IsNotFound(err) {
		t.Fatalf("err = %v, want unpaid order not found", err)
	}
}

func TestStagingDeleteMissing(t *testing.T) {
	mock := newMock(t)
	repo := &StagingRepo{DB: mock}
	q := regexp.QuoteMeta(`DELETE FROM unpaid_orders WHERE id=$1`)

	mock.ExpectExec(q).WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(q).WithArgs(int64(9)).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), 9); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(context.Background(), 9); !errors.Is(err, ErrUnpaidOrderNotFound) {
		t.Errorf("second Delete = %v, want unpaid order not found", err)
	}
}

func TestOrderCreateDefaultsToPending(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO orders(user_id, total_price, status) VALUES ($1, $2, $3) RETURNING id, created_on, updated_on`)).
		WithArgs(int64(3), pgxmock.AnyArg(), "pending").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_on", "updated_on"}).AddRow(int64(5), now, now))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO order_items(order_id, pizza_size_id, quantity)`)).
		WithArgs(int64(5), int64(12), 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	o := &Order{UserID: 3, TotalPrice: price("15.00"), Items: []LineItem{{VariantID: 12, Quantity: 2}}}
	if err := repo.Create(context.Background(), o); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID != 5 || o.Status != StatusPending || !o.CreatedOn.Equal(now) {
		t.Errorf("order = %+v", o)
	}
}

func TestOrderGetAttachesItems(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(qOrderByID).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(int64(5), int64(3), "+359888000111", price("30.75"), StatusInTransition, now, now))
	mock.ExpectQuery(qOrderItems).
		WithArgs([]int64{5}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(int64(5), int64(11), 2, "Margherita", "m", price("7.50")).
			AddRow(int64(5), int64(10), 3, "Margherita", "s", price("5.25")))

	o, err := repo.Get(context.Background(), 5)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if o.OwnerPhone != "+359888000111" || o.Status != StatusInTransition || !o.TotalPrice.Equal(price("30.75")) {
		t.Errorf("order = %+v", o)
	}
	if len(o.Items) != 2 {
		t.Fatalf("items = %+v", o.Items)
	}
	if it := o.Items[0]; it.VariantID != 11 || it.Size != catalog.SizeMedium || it.PizzaName != "Margherita" || !it.UnitPrice.Equal(price("7.50")) {
		t.Errorf("first item = %+v", it)
	}
	if o.Items[1].Size != catalog.SizeSmall || o.Items[1].Quantity != 3 {
		t.Errorf("second item = %+v", o.Items[1])
	}
}

func TestOrderGetMissing(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}

	mock.ExpectQuery(qOrderByID).WithArgs(int64(404)).WillReturnRows(pgxmock.NewRows(orderCols))

	if _, err := repo.Get(context.Background(), 404); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want order not found", err)
	}
}

func TestOrderListGroupsItemsPerOrder(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE o.user_id=$1 ORDER BY o.id`)).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows(orderCols).
			AddRow(int64(5), int64(3), "", price("7.50"), StatusPending, now, now).
			AddRow(int64(6), int64(3), "", price("10.50"), StatusDelivered, now, now).
			AddRow(int64(7), int64(3), "", price("0"), StatusPending, now, now))
	mock.ExpectQuery(qOrderItems).
		WithArgs([]int64{5, 6, 7}).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(int64(5), int64(11), 1, "Margherita", "m", price("7.50")).
			AddRow(int64(6), int64(10), 2, "Margherita", "s", price("5.25")))

	list, err := repo.List(context.Background(), 3)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list = %+v", list)
	}
	if len(list[0].Items) != 1 || list[0].Items[0].VariantID != 11 {
		t.Errorf("order 5 items = %+v", list[0].Items)
	}
	if len(list[1].Items) != 1 || list[1].Items[0].Quantity != 2 {
		t.Errorf("order 6 items = %+v", list[1].Items)
	}
	if list[2].Items == nil || len(list[2].Items) != 0 {
		t.Errorf("order 7 items = %#v, want empty list", list[2].Items)
	}
}

func TestOrderListEmptySkipsItemQuery(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}

	mock.ExpectQuery(regexp.QuoteMeta(`LEFT JOIN users u ON u.id = o.user_id ORDER BY o.id`)).
		WillReturnRows(pgxmock.NewRows(orderCols))

	list, err := repo.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("list = %#v, want empty", list)
	}
}

func TestOrderUpdateStatus(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}
	q := regexp.QuoteMeta(`UPDATE orders SET status=$2, updated_on=now() WHERE id=$1`)

	mock.ExpectExec(q).WithArgs(int64(5), "delivered").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(q).WithArgs(int64(404), "delivered").WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.UpdateStatus(context.Background(), 5, StatusDelivered); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), 404, StatusDelivered); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("err = %v, want order not found", err)
	}
}

func TestOrderDeleteByStatusReturnsIDs(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}

	mock.ExpectQuery(regexp.QuoteMeta(`DELETE FROM orders WHERE status=$1 RETURNING id`)).
		WithArgs("delivered").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(6)).AddRow(int64(8)))

	ids, err := repo.DeleteByStatus(context.Background(), StatusDelivered)
	if err != nil {
		t.Fatalf("DeleteByStatus: %v", err)
	}
	if len(ids) != 2 || ids[0] != 6 || ids[1] != 8 {
		t.Errorf("ids = %v", ids)
	}
}

func TestOrderDelete(t *testing.T) {
	mock := newMock(t)
	repo := &OrderRepo{DB: mock}
	q := regexp.QuoteMeta(`DELETE FROM orders WHERE id=$1`)
	boom := errors.New("connection reset")

	mock.ExpectExec(q).WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(q).WithArgs(int64(5)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(q).WithArgs(int64(6)).WillReturnError(boom)

	if err := repo.Delete(context.Background(), 5); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(context.Background(), 5); !errors.Is(err, ErrOrderNotFound) || !apperr.IsNotFound(err) {
		t.Errorf("second Delete = %v, want order not found", err)
	}
	if err := repo.Delete(context.Background(), 6); !errors.Is(err, boom) || apperr.IsNotFound(err) {
		t.Errorf("Delete = %v, want the driver error", err)
	}
}
