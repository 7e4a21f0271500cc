package store

import (
	"context"
	"fmt"

	"github.com/safar/go-pdv/internal/database"
	"github.com/safar/go-pdv/internal/models"
)

func CreateCategory(ctx context.Context, q database.Querier, description string) (*models.Category, error) {
	category := &models.Category{Description: description}

	err := q.QueryRowContext(ctx,
		`INSERT INTO categorias (descricao) VALUES ($1) RETURNING id`,
		description).Scan(&category.ID)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, q database.Querier) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, descricao FROM categorias ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}
