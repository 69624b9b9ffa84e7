package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/joao-fontenele/cartflow/internal/database"
	"github.com/joao-fontenele/cartflow/internal/domain"
)

type OrderRepository struct {
	db *sql.DB
	q  database.Querier
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, q: db}
}

// WithTx returns a repository whose Create and CreateMany run on tx.
func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{db: r.db, q: tx}
}

const orderColumns = `id, customer_id, product_id, product_name, quantity, unit_price, order_date_utc, status`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.CustomerID, &o.ProductID, &o.ProductName, &o.Quantity, &o.UnitPrice, &o.OrderDateUTC, &o.Status)
	if err != nil {
		return nil, err
	}
	o.OrderDateUTC = o.OrderDateUTC.UTC()
	o.Total = o.TotalAmount()
	return &o, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, order.ID, order.CustomerID, order.ProductID, order.ProductName, order.Quantity, order.UnitPrice, order.OrderDateUTC, order.Status)
	if err != nil {
		return domain.Persistence("insert order "+order.ID, err)
	}
	return nil
}

func (r *OrderRepository) CreateMany(ctx context.Context, orders []domain.Order) error {
	for i := range orders {
		if err := r.Create(ctx, &orders[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	order, err := scanOrder(r.q.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Persistence("get order", err)
	}
	return order, nil
}

func (r *OrderRepository) List(ctx context.Context) ([]domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY order_date_utc DESC, id
	`)
	if err != nil {
		return nil, domain.Persistence("list orders", err)
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, domain.Persistence("scan order", err)
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list orders", err)
	}

	return orders, nil
}

// UpdateStatus moves an order along its lifecycle. The row is locked while
// the transition is checked, and an illegal transition leaves it untouched.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, domain.Invalidf("unknown order status %q", status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.Persistence("begin status update", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := scanOrder(tx.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.Persistence("lock order", err)
	}

	if err := domain.CheckTransition(order.Status, status); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status); err != nil {
		return nil, domain.Persistence("update order status", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.Persistence("commit status update", err)
	}

	order.Status = status
	return order, nil
}
