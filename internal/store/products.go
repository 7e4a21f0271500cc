package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `id, descricao, quantidade_estoque, valor, categoria_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Description,
		&product.StockQuantity,
		&product.UnitPrice,
		&product.CategoryID,
	)
}

func CreateProduct(ctx context.Context, q database.Querier, description string, stock int, price decimal.Decimal, categoryID int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		INSERT INTO produtos (descricao, quantidade_estoque, valor, categoria_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + productColumns

	err := scanProduct(q.QueryRowContext(ctx, query, description, stock, price, categoryID), product)
	if err != nil {
		switch {
		case database.HasCode(err, database.CodeForeignKeyViolation):
			return nil, apperr.Reference("A categoria informada não existe.")
		case database.HasCode(err, database.CodeCheckViolation):
			return nil, apperr.Validation("Estoque e valor não podem ser negativos.")
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, q database.Querier, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(q.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM produtos WHERE id = $1`, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Produto não encontrado.")
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// GetProducts reads a snapshot of the given products in one round trip.
// Missing ids are simply absent from the result.
func GetProducts(ctx context.Context, q database.Querier, ids []int64) (map[int64]models.Product, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+productColumns+` FROM produtos WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]models.Product, len(ids))
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

// LockProduct reads a product and holds its row lock until tx ends.
func LockProduct(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM produtos WHERE id = $1 FOR UPDATE`, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Produto não encontrado.")
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	return product, nil
}

// DecrementStock subtracts quantity only while enough stock remains, so a
// concurrent order that already consumed the units makes this a no-op that
// reports InsufficientStock instead of driving stock negative.
func DecrementStock(ctx context.Context, q database.Querier, productID int64, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE produtos
		 SET quantidade_estoque = quantidade_estoque - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND quantidade_estoque >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected > 0 {
		return nil
	}

	var available int
	err = q.QueryRowContext(ctx,
		`SELECT quantidade_estoque FROM produtos WHERE id = $1`,
		productID).Scan(&available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ProductReference(productID)
		}
		return fmt.Errorf("read stock after failed decrement: %w", err)
	}

	return apperr.InsufficientStock(productID, available, quantity)
}

func ProductHasLineItems(ctx context.Context, q database.Querier, productID int64) (bool, error) {
	var linked bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pedido_produtos WHERE produto_id = $1)",
		productID).Scan(&linked)
	if err != nil {
		return false, fmt.Errorf("check product line items: %w", err)
	}
	return linked, nil
}

// DeleteProductRow removes a product. The foreign key from pedido_produtos
// still guards against deleting a product that is part of an order.
func DeleteProductRow(ctx context.Context, q database.Querier, productID int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM produtos WHERE id = $1`, productID)
	if err != nil {
		if database.HasCode(err, database.CodeForeignKeyViolation) {
			return apperr.Conflict(MsgProductLinked)
		}
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("Produto não encontrado.")
	}

	return nil
}

const MsgProductLinked = "Não é possível excluir um produto vinculado a um pedido."
