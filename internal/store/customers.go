package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-pdv/internal/apperr"
	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/models"
)

// CreateCustomer registers a customer. Email and CPF are unique; the
// database constraint is the authority so concurrent registrations cannot
// both win.
func CreateCustomer(ctx context.Context, q database.Querier, c models.Customer) (*models.Customer, error) {
	if c.Name == "" || c.Email == "" || c.TaxID == "" {
		return nil, apperr.Validation("Por favor, preencha todos os campos obrigatórios.")
	}

	query := `
		INSERT INTO clientes (nome, email, cpf, cep, rua, numero, bairro, cidade, estado, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`

	err := q.QueryRowContext(ctx, query,
		c.Name, c.Email, c.TaxID,
		c.PostalCode, c.Street, c.Number, c.Neighborhood, c.City, c.State,
	).Scan(&c.ID)
	if err != nil {
		if database.HasCode(err, database.CodeUniqueViolation) {
			return nil, apperr.Conflict("Cliente já cadastrado.")
		}
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return &c, nil
}

func GetCustomer(ctx context.Context, q database.Querier, id int64) (*models.Customer, error) {
	c := &models.Customer{}

	query := `
		SELECT id, nome, email, cpf,
		       COALESCE(cep, ''), COALESCE(rua, ''), COALESCE(numero, ''),
		       COALESCE(bairro, ''), COALESCE(cidade, ''), COALESCE(estado, '')
		FROM clientes
		WHERE id = $1`

	err := q.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.TaxID,
		&c.PostalCode,
		&c.Street,
		&c.Number,
		&c.Neighborhood,
		&c.City,
		&c.State,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Cliente não encontrado.")
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return c, nil
}

func CustomerExists(ctx context.Context, q database.Querier, id int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM clientes WHERE id = $1)",
		id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check customer exists: %w", err)
	}
	return exists, nil
}
