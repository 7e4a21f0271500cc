package orders

import (
	"context"
	"database/sql"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/store"
	"go.uber.org/zap"
)

// ListOrders returns all orders, or the given customer's orders, each with
// its line items. An unknown customer yields an empty list.
func (s *Service) ListOrders(ctx context.Context, customerID *int64) ([]models.OrderWithItems, error) {
	orders, err := store.ListOrders(ctx, s.db, customerID)
	if err != nil {
		logger.FromContextOr(ctx, s.log).Error("list orders failed", zap.Error(err))
		return nil, apperr.Persistence(msgListFailed, err)
	}
	return orders, nil
}

// GetProduct reads the current ledger entry for a product.
func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, apperr.Validation("ID de produto inválido.")
	}

	product, err := store.GetProduct(ctx, s.db, id)
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return nil, err
		}
		logger.FromContextOr(ctx, s.log).Error("get product failed", zap.Int64("product_id", id), zap.Error(err))
		return nil, apperr.Persistence(msgProductFailed, err)
	}
	return product, nil
}

// DeleteProduct removes a product that no order references. The row lock
// taken first serializes the check against a concurrent CreateOrder on the
// same product; the foreign key backs it up either way.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperr.Validation("ID de produto inválido.")
	}

	log := logger.FromContextOr(ctx, s.log).With(zap.Int64("product_id", id))

	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.LockProduct(ctx, tx, id); err != nil {
			return err
		}

		linked, err := store.ProductHasLineItems(ctx, tx, id)
		if err != nil {
			return err
		}
		if linked {
			return apperr.Conflict(store.MsgProductLinked)
		}

		return store.DeleteProductRow(ctx, tx, id)
	})
	if err != nil {
		if appErr, ok := apperr.As(err); ok {
			log.Info("delete product rejected", zap.Error(err))
			return appErr
		}
		log.Error("delete product failed", zap.Error(err))
		return apperr.Persistence(msgDeleteFailed, err)
	}

	log.Info("product deleted")
	return nil
}
