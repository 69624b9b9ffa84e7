package cart

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/joao-fontenele/cartflow/internal/database"
	"github.com/joao-fontenele/cartflow/internal/domain"
)

// Repository stores cart lines in Postgres. Every mutation runs in the
// owner's user scope, so concurrent requests for one user are applied one
// after the other.
type Repository struct {
	db  *sql.DB
	q   database.Querier
	now func() time.Time
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db, now: time.Now}
}

// WithTx returns a repository whose reads and DeleteLines run on tx.
func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: r.db, q: tx, now: r.now}
}

const lineColumns = `id, user_id, product_id, quantity, date_added`

func scanLine(row interface{ Scan(...any) error }) (*domain.CartLine, error) {
	var line domain.CartLine
	if err := row.Scan(&line.ID, &line.UserID, &line.ProductID, &line.Quantity, &line.DateAdded); err != nil {
		return nil, err
	}
	return &line, nil
}

// Upsert adds delta to the user's line for productID, creating it when
// absent. A resulting quantity of zero or less removes the line and returns
// a nil line.
func (r *Repository) Upsert(ctx context.Context, userID, productID string, delta int) (*domain.CartLine, error) {
	var result *domain.CartLine

	err := database.InUserScope(ctx, r.db, userID, func(tx *sql.Tx) error {
		existing, err := scanLine(tx.QueryRowContext(ctx, `
			SELECT `+lineColumns+`
			FROM cart_items
			WHERE user_id = $1 AND product_id = $2
			FOR UPDATE
		`, userID, productID))
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if existing == nil {
			if delta <= 0 {
				return nil
			}
			result, err = scanLine(tx.QueryRowContext(ctx, `
				INSERT INTO cart_items (user_id, product_id, quantity, date_added)
				VALUES ($1, $2, $3, $4)
				RETURNING `+lineColumns,
				userID, productID, delta, r.now().UTC()))
			return err
		}

		quantity := existing.Quantity + delta
		if quantity <= 0 {
			_, err = tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, existing.ID)
			return err
		}

		result, err = scanLine(tx.QueryRowContext(ctx, `
			UPDATE cart_items SET quantity = $2
			WHERE id = $1
			RETURNING `+lineColumns,
			existing.ID, quantity))
		return err
	})
	if err != nil {
		return nil, domain.Persistence("upsert cart line", err)
	}

	return result, nil
}

// SetQuantity replaces the quantity of one line. A quantity of zero or less
// removes the line.
func (r *Repository) SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.CartLine, error) {
	if quantity <= 0 {
		return nil, r.Remove(ctx, userID, lineID)
	}

	var result *domain.CartLine
	err := database.InUserScope(ctx, r.db, userID, func(tx *sql.Tx) error {
		var err error
		result, err = scanLine(tx.QueryRowContext(ctx, `
			UPDATE cart_items SET quantity = $3
			WHERE id = $1 AND user_id = $2
			RETURNING `+lineColumns,
			lineID, userID, quantity))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.Persistence("set cart line quantity", err)
	}

	return result, nil
}

func (r *Repository) Remove(ctx context.Context, userID string, lineID int64) error {
	err := database.InUserScope(ctx, r.db, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, lineID, userID)
		return err
	})
	return domain.Persistence("remove cart line", err)
}

func (r *Repository) Clear(ctx context.Context, userID string) error {
	err := database.InUserScope(ctx, r.db, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
		return err
	})
	return domain.Persistence("clear cart", err)
}

func (r *Repository) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+lineColumns+`
		FROM cart_items
		WHERE user_id = $1
		ORDER BY date_added, id
	`, userID)
	if err != nil {
		return nil, domain.Persistence("list cart lines", err)
	}
	defer func() { _ = rows.Close() }()

	lines := []domain.CartLine{}
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, domain.Persistence("scan cart line", err)
		}
		lines = append(lines, *line)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list cart lines", err)
	}

	return lines, nil
}

// Count returns the total quantity across the user's lines.
func (r *Repository) Count(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM cart_items
		WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, domain.Persistence("count cart items", err)
	}
	return count, nil
}

// DeleteLines removes the given lines of one user. It is meant for a
// tx-bound repository inside a scope the caller already holds.
func (r *Repository) DeleteLines(ctx context.Context, userID string, lineIDs []int64) error {
	if len(lineIDs) == 0 {
		return nil
	}
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(lineIDs))
	return domain.Persistence("delete cart lines", err)
}
