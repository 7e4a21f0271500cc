package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// JSON field names follow the public PDV API contract.

type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"nome"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

type Customer struct {
	ID           int64  `json:"id"`
	Name         string `json:"nome"`
	Email        string `json:"email"`
	TaxID        string `json:"cpf"`
	PostalCode   string `json:"cep,omitempty"`
	Street       string `json:"rua,omitempty"`
	Number       string `json:"numero,omitempty"`
	Neighborhood string `json:"bairro,omitempty"`
	City         string `json:"cidade,omitempty"`
	State        string `json:"estado,omitempty"`
}

type Category struct {
	ID          int64  `json:"id"`
	Description string `json:"descricao"`
}

type Product struct {
	ID            int64           `json:"id"`
	Description   string          `json:"descricao"`
	StockQuantity int             `json:"quantidade_estoque"`
	UnitPrice     decimal.Decimal `json:"valor"`
	CategoryID    int64           `json:"categoria_id"`
}

type Order struct {
	ID          int64           `json:"id"`
	CustomerID  int64           `json:"cliente_id"`
	Note        string          `json:"observacao"`
	TotalAmount decimal.Decimal `json:"valor_total"`
	CreatedAt   time.Time       `json:"-"`
}

type OrderLineItem struct {
	ID         int64           `json:"id"`
	OrderID    int64           `json:"pedido_id"`
	ProductID  int64           `json:"produto_id"`
	Quantity   int             `json:"quantidade_produto"`
	LineAmount decimal.Decimal `json:"valor_produto"`
}

// OrderWithItems is the grouped listing shape: one entry per order.
type OrderWithItems struct {
	Order Order           `json:"pedido"`
	Items []OrderLineItem `json:"pedido_produtos"`
}
