package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/auth"
	"github.com/safar/go-pdv/internal/logger"
	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/orders"
	"go.uber.org/zap"
)

type orderItemRequest struct {
	ProductID int64 `json:"produto_id"`
	Quantity  int   `json:"quantidade_produto"`
}

type createOrderRequest struct {
	CustomerID int64              `json:"cliente_id"`
	Note       string             `json:"observacao"`
	Items      []orderItemRequest `json:"pedido_produtos"`
}

type createOrderResponse struct {
	Message string                 `json:"mensagem"`
	Order   *models.OrderWithItems `json:"pedido"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	items := make([]orders.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orders.Item{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	ctx := logger.WithContext(r.Context(), logger.FromContext(r.Context()).With(zap.Int64("user_id", id.UserID)))
	order, err := h.orders.CreateOrder(ctx, orders.CreateOrderRequest{
		CustomerID: req.CustomerID,
		Note:       req.Note,
		Items:      items,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, createOrderResponse{
		Message: "Pedido cadastrado com sucesso.",
		Order:   order,
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	var customerID *int64
	if raw := r.URL.Query().Get("cliente_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, r, apperr.Validation("O parâmetro cliente_id deve ser um número inteiro positivo."))
			return
		}
		customerID = &id
	}

	list, err := h.orders.ListOrders(r.Context(), customerID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, list)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	id, err := productID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	product, err := h.orders.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, product)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request, _ auth.Identity) {
	id, err := productID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.orders.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondMessage(w, r, http.StatusOK, "Produto excluído com sucesso.")
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("ID de produto inválido.")
	}
	return id, nil
}
