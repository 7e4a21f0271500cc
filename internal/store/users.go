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

const userColumns = `id, nome, email, senha, created_at`

// CreateUser stores a user whose password has already been hashed.
func CreateUser(ctx context.Context, q database.Querier, name, email, passwordHash string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO usuarios (nome, email, senha, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING ` + userColumns

	err := q.QueryRowContext(ctx, query, name, email, passwordHash).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if database.HasCode(err, database.CodeUniqueViolation) {
			return nil, apperr.Conflict("Usuário já cadastrado.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id))
}

func GetUserByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM usuarios WHERE email = $1`, email))
}

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Usuário não encontrado.")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
