package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/joao-fontenele/cartflow/internal/cart"
	"github.com/joao-fontenele/cartflow/internal/database"
	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/orders"
)

// PostgresStore runs checkout over the cart, order and attempt tables in a
// single transaction per user scope.
type PostgresStore struct {
	db     *sql.DB
	carts  *cart.Repository
	orders *orders.OrderRepository
}

func NewPostgresStore(db *sql.DB, carts *cart.Repository, orders *orders.OrderRepository) *PostgresStore {
	return &PostgresStore{
		db:     db,
		carts:  carts,
		orders: orders,
	}
}

func (s *PostgresStore) InUserScope(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error {
	var fnErr error
	err := database.InUserScope(ctx, s.db, userID, func(tx *sql.Tx) error {
		fnErr = fn(ctx, &pgTx{
			tx:     tx,
			carts:  s.carts.WithTx(tx),
			orders: s.orders.WithTx(tx),
		})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return domain.Persistence("checkout scope", err)
	}
	return err
}

type pgTx struct {
	tx     *sql.Tx
	carts  *cart.Repository
	orders *orders.OrderRepository
}

func (t *pgTx) FindResult(ctx context.Context, userID, token string) (*Result, error) {
	var raw []byte
	err := t.tx.QueryRowContext(ctx, `
		SELECT result
		FROM checkout_attempts
		WHERE user_id = $1 AND token = $2
	`, userID, token).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Persistence("find checkout attempt", err)
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, domain.Persistence("decode checkout attempt", err)
	}
	return &result, nil
}

func (t *pgTx) ListLines(ctx context.Context, userID string) ([]domain.CartLine, error) {
	return t.carts.List(ctx, userID)
}

func (t *pgTx) CreateOrders(ctx context.Context, orders []domain.Order) error {
	return t.orders.CreateMany(ctx, orders)
}

func (t *pgTx) DeleteLines(ctx context.Context, userID string, lineIDs []int64) error {
	return t.carts.DeleteLines(ctx, userID, lineIDs)
}

func (t *pgTx) SaveResult(ctx context.Context, result *Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return domain.Persistence("encode checkout attempt", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO checkout_attempts (user_id, token, result, created_at)
		VALUES ($1, $2, $3, $4)
	`, result.UserID, result.Token, raw, result.CreatedAt)
	return domain.Persistence("save checkout attempt", err)
}
