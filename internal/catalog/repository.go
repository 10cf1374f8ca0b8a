// Package catalog reads the products and clients orders reference. It
// exposes lookups only; catalog maintenance lives elsewhere.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/joao-fontenele/tableside/internal/domain"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: sqlx.NewDb(db, "postgres")}
}

func (r *Repository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	err := r.db.GetContext(ctx, &product, `
		SELECT id, name, price, available
		FROM products
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("product %d", id)
		}
		return nil, fmt.Errorf("select product %d: %w", id, err)
	}
	return &product, nil
}

func (r *Repository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT id, name, price, available
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	return products, nil
}

func (r *Repository) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	var client domain.Client
	err := r.db.GetContext(ctx, &client, `
		SELECT id, name
		FROM clients
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundError("client %d", id)
		}
		return nil, fmt.Errorf("select client %d: %w", id, err)
	}
	return &client, nil
}
