// Package orders is the order workflow: it validates an order against live
// inventory, prices it, and commits the order, its line items and the stock
// decrements as one unit of work.
package orders

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/store"
	"go.uber.org/zap"
)

const (
	msgMissingFields    = "Por favor, preencha todos os campos obrigatórios."
	msgInvalidItem      = "Cada produto do pedido precisa de produto_id e quantidade_produto maiores que zero."
	msgQuantityTooLarge = "A quantidade solicitada excede o limite permitido."
	msgCustomerNotFound = "O cliente informado não existe."
	msgCreateFailed     = "Erro ao cadastrar pedido."
	msgListFailed       = "Erro ao listar pedidos."
	msgDeleteFailed     = "Erro ao excluir produto."
	msgProductFailed    = "Erro ao detalhar produto."
)

// Observer receives workflow outcomes; metrics.Metrics implements it.
type Observer interface {
	OrderCreated(units int)
	OrderFailed(kind string)
	TxRetried()
}

type nopObserver struct{}

func (nopObserver) OrderCreated(int) {}
func (nopObserver) OrderFailed(string) {}
func (nopObserver) TxRetried() {}

type Item struct {
	ProductID int64
	Quantity  int
}

type CreateOrderRequest struct {
	CustomerID int64
	Note       string
	Items      []Item
}

type Service struct {
	db         *sql.DB
	log        *zap.Logger
	observer   Observer
	timeout    time.Duration
	maxRetries int
}

type Option func(*Service)

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithTimeout bounds a whole CreateOrder call, transaction included.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(s *Service) { s.maxRetries = n }
}

func NewService(db *sql.DB, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:         db,
		log:        log,
		observer:   nopObserver{},
		maxRetries: database.DefaultTxOptions().MaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates req against the current inventory and, if every
// check passes, persists the order and decrements stock atomically.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.OrderWithItems, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	log := logger.FromContextOr(ctx, s.log).With(zap.Int64("customer_id", req.CustomerID))

	order, err := s.createOrder(ctx, log, req)
	if err != nil {
		s.observer.OrderFailed(apperr.KindOf(err).String())
		if apperr.KindOf(err) == apperr.KindPersistence {
			log.Error("create order failed", zap.Error(err))
		} else {
			log.Info("create order rejected", zap.Error(err))
		}
		return nil, err
	}

	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	s.observer.OrderCreated(units)
	log.Info("order created",
		zap.Int64("order_id", order.Order.ID),
		zap.String("total", order.Order.TotalAmount.StringFixed(2)),
		zap.Int("line_items", len(order.Items)),
	)

	return order, nil
}

func (s *Service) createOrder(ctx context.Context, log *zap.Logger, req CreateOrderRequest) (*models.OrderWithItems, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	exists, err := store.CustomerExists(ctx, s.db, req.CustomerID)
	if err != nil {
		return nil, apperr.Persistence(msgCreateFailed, err)
	}
	if !exists {
		return nil, apperr.Reference(msgCustomerNotFound)
	}

	reserved := reservations(req.Items)
	ids := make([]int64, 0, len(reserved))
	for _, r := range reserved {
		ids = append(ids, r.productID)
	}

	snapshot, err := store.GetProducts(ctx, s.db, ids)
	if err != nil {
		return nil, apperr.Persistence(msgCreateFailed, err)
	}

	if err := checkAvailability(req.Items, reserved, snapshot); err != nil {
		return nil, err
	}

	lines, total := priceLines(req.Items, snapshot)

	var created *models.OrderWithItems
	opts := database.DefaultTxOptions()
	opts.MaxRetries = s.maxRetries
	opts.OnRetry = func(attempt int, err error) {
		s.observer.TxRetried()
		log.Warn("retrying order transaction", zap.Int("attempt", attempt), zap.Error(err))
	}

	err = database.WithRetry(ctx, s.db, opts, func(tx *sql.Tx) error {
		order, err := store.InsertOrder(ctx, tx, req.CustomerID, req.Note, total)
		if err != nil {
			return err
		}

		for _, line := range lines {
			line.OrderID = order.ID
			if err := store.InsertLineItem(ctx, tx, &line); err != nil {
				return err
			}
		}

		for _, r := range reserved {
			if err := store.DecrementStock(ctx, tx, r.productID, r.quantity); err != nil {
				return err
			}
		}

		// Answer with the rows as stored, NUMERIC rounding included.
		created, err = store.GetOrder(ctx, tx, order.ID)
		return err
	})
	if err != nil {
		return nil, translateTxError(err)
	}

	return created, nil
}

// Quantities are capped at the INTEGER column range, and so is the total
// requested per product, so the stock comparison never sees an overflowed sum.
func validateRequest(req CreateOrderRequest) error {
	if req.CustomerID <= 0 || len(req.Items) == 0 {
		return apperr.Validation(msgMissingFields)
	}

	totals := make(map[int64]int64, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return apperr.Validation(msgInvalidItem)
		}
		if item.Quantity > math.MaxInt32 {
			return apperr.Validation(msgQuantityTooLarge)
		}
		totals[item.ProductID] += int64(item.Quantity)
		if totals[item.ProductID] > math.MaxInt32 {
			return apperr.Validation(msgQuantityTooLarge)
		}
	}
	return nil
}

// checkAvailability reports the first failing product in request order.
// Quantities of repeated products are summed before comparing to stock.
func checkAvailability(items []Item, reserved []reservation, snapshot map[int64]models.Product) error {
	requested := make(map[int64]int, len(reserved))
	for _, r := range reserved {
		requested[r.productID] = r.quantity
	}

	for _, item := range items {
		product, ok := snapshot[item.ProductID]
		if !ok {
			return apperr.ProductReference(item.ProductID)
		}
		if product.StockQuantity < requested[item.ProductID] {
			return apperr.InsufficientStock(item.ProductID, product.StockQuantity, requested[item.ProductID])
		}
	}
	return nil
}

// translateTxError keeps domain errors raised inside the transaction and
// turns everything else into a PersistenceError. A foreign key violation
// means a customer or product vanished between validation and insert.
func translateTxError(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if database.HasCode(err, database.CodeForeignKeyViolation) {
		switch database.Constraint(err) {
		case "pedidos_cliente_id_fkey":
			return apperr.Reference(msgCustomerNotFound)
		case "pedido_produtos_produto_id_fkey":
			return apperr.Reference("Um dos produtos do pedido não existe mais.")
		}
	}

	return apperr.Persistence(msgCreateFailed, err)
}
