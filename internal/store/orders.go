package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/models"
	"github.com/shopspring/decimal"
)

func InsertOrder(ctx context.Context, q database.Querier, customerID int64, note string, total decimal.Decimal) (*models.Order, error) {
	order := &models.Order{
		CustomerID:  customerID,
		Note:        note,
		TotalAmount: total,
	}

	err := q.QueryRowContext(ctx,
		`INSERT INTO pedidos (cliente_id, observacao, valor_total, created_at)
		 VALUES ($1, $2, $3, NOW())
		 RETURNING id, created_at`,
		customerID, note, total).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	return order, nil
}

func InsertLineItem(ctx context.Context, q database.Querier, item *models.OrderLineItem) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO pedido_produtos (pedido_id, produto_id, quantidade_produto, valor_produto)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.LineAmount).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("create order item: %w", err)
	}
	return nil
}

const orderWithItemsQuery = `
	SELECT p.id, p.cliente_id, p.observacao, p.valor_total, p.created_at,
	       pp.id, pp.produto_id, pp.quantidade_produto, pp.valor_produto
	FROM pedidos p
	LEFT JOIN pedido_produtos pp ON pp.pedido_id = p.id`

// ListOrders returns every order, or only customerID's orders when it is
// non-nil, with line items grouped under their order.
func ListOrders(ctx context.Context, q database.Querier, customerID *int64) ([]models.OrderWithItems, error) {
	var filter sql.NullInt64
	if customerID != nil {
		filter = sql.NullInt64{Int64: *customerID, Valid: true}
	}

	rows, err := q.QueryContext(ctx, orderWithItemsQuery+`
		WHERE ($1::bigint IS NULL OR p.cliente_id = $1)
		ORDER BY p.id, pp.id`, filter)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return groupOrderRows(rows)
}

func GetOrder(ctx context.Context, q database.Querier, id int64) (*models.OrderWithItems, error) {
	rows, err := q.QueryContext(ctx, orderWithItemsQuery+`
		WHERE p.id = $1
		ORDER BY pp.id`, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	defer rows.Close()

	orders, err := groupOrderRows(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperr.NotFound("Pedido não encontrado.")
	}

	return &orders[0], nil
}

// groupOrderRows folds joined rows into one entry per order. Rows must be
// ordered by order id.
func groupOrderRows(rows *sql.Rows) ([]models.OrderWithItems, error) {
	orders := []models.OrderWithItems{}

	for rows.Next() {
		var (
			order      models.Order
			itemID     sql.NullInt64
			productID  sql.NullInt64
			quantity   sql.NullInt64
			lineAmount decimal.NullDecimal
		)
		err := rows.Scan(
			&order.ID,
			&order.CustomerID,
			&order.Note,
			&order.TotalAmount,
			&order.CreatedAt,
			&itemID,
			&productID,
			&quantity,
			&lineAmount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}

		if n := len(orders); n == 0 || orders[n-1].Order.ID != order.ID {
			orders = append(orders, models.OrderWithItems{
				Order: order,
				Items: []models.OrderLineItem{},
			})
		}

		if !itemID.Valid {
			continue
		}

		current := &orders[len(orders)-1]
		current.Items = append(current.Items, models.OrderLineItem{
			ID:         itemID.Int64,
			OrderID:    order.ID,
			ProductID:  productID.Int64,
			Quantity:   int(quantity.Int64),
			LineAmount: lineAmount.Decimal,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}
