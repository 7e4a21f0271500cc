package orders

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/safar/go-pdv/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type recorder struct {
	created  []int
	failures []string
	retries  int
}

func (r *recorder) OrderCreated(units int) { r.created = append(r.created, units) }
func (r *recorder) OrderFailed(kind string) { r.failures = append(r.failures, kind) }
func (r *recorder) TxRetried() { r.retries++ }

var productRows = []string{"id", "descricao", "quantidade_estoque", "valor", "categoria_id"}

var orderRows = []string{
	"id", "cliente_id", "observacao", "valor_total", "created_at",
	"id", "produto_id", "quantidade_produto", "valor_produto",
}

// newMockService checks for leaked goroutines after the mock db is closed.
func newMockService(t *testing.T) (*Service, sqlmock.Sqlmock, *recorder) {
	t.Helper()
	ignore := goleak.IgnoreCurrent()
	t.Cleanup(func() { goleak.VerifyNone(t, ignore) })

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	rec := &recorder{}
	return NewService(db, zap.NewNop(), WithObserver(rec)), mock, rec
}

func expectSnapshot(mock sqlmock.Sqlmock, customerID int64) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM clientes`).
		WithArgs(customerID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`FROM produtos WHERE id = ANY`).
		WillReturnRows(sqlmock.NewRows(productRows).
			AddRow(3, "Notebook", 10, "25.00", 1).
			AddRow(4, "Mouse", 2, "10.00", 1))
}

func TestCreateOrderCommitsAndDecrementsInProductOrder(t *testing.T) {
	svc, mock, rec := newMockService(t)

	expectSnapshot(mock, 7)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pedidos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))
	mock.ExpectQuery("INSERT INTO pedido_produtos").
		WithArgs(11, 4, 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectQuery("INSERT INTO pedido_produtos").
		WithArgs(11, 3, 2, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(22))
	mock.ExpectExec("UPDATE produtos").WithArgs(2, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE produtos").WithArgs(1, 4).WillReturnResult(sqlmock.NewResult(0, 1))
	now := time.Now()
	mock.ExpectQuery("FROM pedidos p").
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows(orderRows).
			AddRow(11, 7, "", "60.00", now, 21, 4, 1, "10.00").
			AddRow(11, 7, "", "60.00", now, 22, 3, 2, "50.00"))
	mock.ExpectCommit()

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []Item{{ProductID: 4, Quantity: 1}, {ProductID: 3, Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(11), order.Order.ID)
	assert.Equal(t, "60.00", order.Order.TotalAmount.StringFixed(2))
	require.Len(t, order.Items, 2)
	assert.Equal(t, int64(21), order.Items[0].ID)
	assert.Equal(t, int64(11), order.Items[1].OrderID)
	assert.Equal(t, []int{3}, rec.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderRollsBackWhenLineItemInsertFails(t *testing.T) {
	svc, mock, rec := newMockService(t)

	expectSnapshot(mock, 7)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pedidos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))
	mock.ExpectQuery("INSERT INTO pedido_produtos").WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []Item{{ProductID: 3, Quantity: 2}},
	})

	require.ErrorIs(t, err, apperr.ErrPersistence)
	appErr, _ := apperr.As(err)
	assert.Equal(t, msgCreateFailed, appErr.Message)
	assert.Equal(t, []string{"persistence"}, rec.failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderLosesRaceOnDecrement(t *testing.T) {
	svc, mock, _ := newMockService(t)

	expectSnapshot(mock, 7)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pedidos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, time.Now()))
	mock.ExpectQuery("INSERT INTO pedido_produtos").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21))
	mock.ExpectExec("UPDATE produtos").WithArgs(4, 3).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT quantidade_estoque FROM produtos").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"quantidade_estoque"}).AddRow(1))
	mock.ExpectRollback()

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []Item{{ProductID: 3, Quantity: 4}},
	})

	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	appErr, _ := apperr.As(err)
	assert.Equal(t, int64(3), appErr.ProductID)
	assert.Equal(t, 1, appErr.Available)
	assert.Equal(t, 4, appErr.Requested)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderRetriesDeadlock(t *testing.T) {
	svc, mock, rec := newMockService(t)

	expectSnapshot(mock, 7)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pedidos").WillReturnError(&pq.Error{Code: "40P01"})
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO pedidos").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(12, time.Now()))
	mock.ExpectQuery("INSERT INTO pedido_produtos").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectExec("UPDATE produtos").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM pedidos p").
		WithArgs(12).
		WillReturnRows(sqlmock.NewRows(orderRows).
			AddRow(12, 7, "", "20.00", time.Now(), 30, 4, 2, "20.00"))
	mock.ExpectCommit()

	order, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []Item{{ProductID: 4, Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(12), order.Order.ID)
	assert.Equal(t, 1, rec.retries)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderFailsFastBeforeTransaction(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  error
	}{
		{"unknown product", []Item{{ProductID: 3, Quantity: 1}, {ProductID: 99, Quantity: 1}}, apperr.ErrReference},
		{"insufficient stock", []Item{{ProductID: 4, Quantity: 5}}, apperr.ErrInsufficientStock},
		{"repeated product exceeds stock", []Item{{ProductID: 4, Quantity: 1}, {ProductID: 4, Quantity: 2}}, apperr.ErrInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newMockService(t)
			expectSnapshot(mock, 7)

			_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: 7, Items: tt.items})

			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM clientes`).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 8,
		Items:      []Item{{ProductID: 3, Quantity: 1}},
	})

	require.ErrorIs(t, err, apperr.ErrReference)
	appErr, _ := apperr.As(err)
	assert.Equal(t, msgCustomerNotFound, appErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderInvalidRequestTouchesNothing(t *testing.T) {
	svc, mock, rec := newMockService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: 7})

	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, []string{"validation"}, rec.failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductLinkedToOrder(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows(productRows).AddRow(3, "Notebook", 10, "25.00", 1))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM pedido_produtos`).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := svc.DeleteProduct(context.Background(), 3)

	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProductMissing(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(5).WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := svc.DeleteProduct(context.Background(), 5)

	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrdersDatabaseFailure(t *testing.T) {
	svc, mock, _ := newMockService(t)

	mock.ExpectQuery("FROM pedidos p").WillReturnError(errors.New("connection refused"))

	_, err := svc.ListOrders(context.Background(), nil)

	assert.ErrorIs(t, err, apperr.ErrPersistence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderOverflowingQuantityRejectedBeforeTransaction(t *testing.T) {
	svc, mock, rec := newMockService(t)

	_, err := svc.CreateOrder(context.Background(), CreateOrderRequest{
		CustomerID: 7,
		Items:      []Item{{ProductID: 4, Quantity: math.MaxInt}, {ProductID: 4, Quantity: 2}},
	})

	require.ErrorIs(t, err, apperr.ErrValidation)
	appErr, _ := apperr.As(err)
	assert.Equal(t, msgQuantityTooLarge, appErr.Message)
	assert.Equal(t, []string{"validation"}, rec.failures)
	assert.NoError(t, mock.ExpectationsWereMet())
}
