package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) ListAll(ctx context.Context) ([]domain.ProductSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, stock, image_ref
		FROM products
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.ProductSnapshot{}
	for rows.Next() {
		var p domain.ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.StockAvailable, &p.ImageRef); err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*domain.ProductSnapshot, error) {
	p := &domain.ProductSnapshot{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, stock, image_ref
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.StockAvailable, &p.ImageRef)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	return p, nil
}

// Decrement takes amount units of stock, refusing to go below zero.
func (r *ProductRepository) Decrement(ctx context.Context, id string, amount int) (*domain.ProductSnapshot, error) {
	p := &domain.ProductSnapshot{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2
		WHERE id = $1 AND stock >= $2
		RETURNING id, name, price, stock, image_ref
	`, id, amount).Scan(&p.ID, &p.Name, &p.Price, &p.StockAvailable, &p.ImageRef)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrInsufficientStock
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

func (r *ProductRepository) Increment(ctx context.Context, id string, amount int) (*domain.ProductSnapshot, error) {
	p := &domain.ProductSnapshot{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2
		WHERE id = $1
		RETURNING id, name, price, stock, image_ref
	`, id, amount).Scan(&p.ID, &p.Name, &p.Price, &p.StockAvailable, &p.ImageRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}
