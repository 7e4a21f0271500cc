package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/safar/go-pdv/internal/models"
	"github.com/safar/go-pdv/internal/store"
	"github.com/safar/go-pdv/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderFlow(t *testing.T) {
	db := testutil.SetupPostgres(t)
	ctx := context.Background()
	s := newServer(t, db)

	rec := s.do(t, http.MethodPost, "/usuario", map[string]string{
		"nome": "Caixa", "email": "caixa@example.com", "senha": "123456",
	}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", map[string]string{
		"email": "caixa@example.com", "senha": "123456",
	}, false)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	s.token = login.Token

	rec = s.do(t, http.MethodGet, "/usuario", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "caixa@example.com")
	assert.NotContains(t, rec.Body.String(), "senha")

	rec = s.do(t, http.MethodGet, "/categoria", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var categories []models.Category
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.NotEmpty(t, categories)

	customer, err := store.CreateCustomer(ctx, db, models.Customer{Name: "Loja", Email: "loja@example.com", TaxID: "12345678900"})
	require.NoError(t, err)
	notebook, err := store.CreateProduct(ctx, db, "Notebook", 10, decimal.RequireFromString("25.00"), categories[0].ID)
	require.NoError(t, err)
	mouse, err := store.CreateProduct(ctx, db, "Mouse", 2, decimal.RequireFromString("10.00"), categories[0].ID)
	require.NoError(t, err)

	rec = s.do(t, http.MethodPost, "/pedido", map[string]any{
		"cliente_id": customer.ID,
		"observacao": "urgente",
		"pedido_produtos": []map[string]int64{
			{"produto_id": notebook.ID, "quantidade_produto": 2},
			{"produto_id": mouse.ID, "quantidade_produto": 1},
		},
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Message string                `json:"mensagem"`
		Order   models.OrderWithItems `json:"pedido"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Message)
	assert.Equal(t, "60", created.Order.Order.TotalAmount.String())
	assert.Len(t, created.Order.Items, 2)

	rec = s.do(t, http.MethodPost, "/pedido", map[string]any{
		"cliente_id":      customer.ID,
		"pedido_produtos": []map[string]int64{{"produto_id": mouse.ID, "quantidade_produto": 5}},
	}, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/produto/"+strconv.FormatInt(mouse.ID, 10), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var product models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &product))
	assert.Equal(t, 1, product.StockQuantity)

	rec = s.do(t, http.MethodGet, "/pedido?cliente_id="+strconv.FormatInt(customer.ID, 10), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []models.OrderWithItems
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, created.Order.Order.ID, listed[0].Order.ID)

	rec = s.do(t, http.MethodDelete, "/produto/"+strconv.FormatInt(mouse.ID, 10), nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	spare, err := store.CreateProduct(ctx, db, "Cabo", 3, decimal.RequireFromString("5.00"), categories[0].ID)
	require.NoError(t, err)
	rec = s.do(t, http.MethodDelete, "/produto/"+strconv.FormatInt(spare.ID, 10), nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodDelete, "/produto/"+strconv.FormatInt(spare.ID, 10), nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
