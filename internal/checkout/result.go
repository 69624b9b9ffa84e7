package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type ManifestLine struct {
	OrderID     string          `json:"order_id"`
	LineID      int64           `json:"line_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total_amount"`
}

// Result is the outcome of a committed checkout. It is stored under the
// idempotency token and handed back unchanged on replay.
type Result struct {
	UserID    string          `json:"user_id"`
	Token     string          `json:"token"`
	OrderIDs  []string        `json:"order_ids"`
	Manifest  []ManifestLine  `json:"manifest"`
	Total     decimal.Decimal `json:"total_amount"`
	CreatedAt time.Time       `json:"created_at"`
	Replayed  bool            `json:"replayed"`
}

// LineFailure says why one cart line blocked checkout.
type LineFailure struct {
	LineID    int64  `json:"line_id"`
	ProductID string `json:"product_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
	Reason    error  `json:"-"`
}

func (f LineFailure) ReasonCode() string {
	switch {
	case errors.Is(f.Reason, domain.ErrNotFound):
		return "not_found"
	case errors.Is(f.Reason, domain.ErrInsufficientStock):
		return "insufficient_stock"
	default:
		return "catalog_unavailable"
	}
}

// RejectedError reports every line that failed validation. Nothing was
// written when it is returned.
type RejectedError struct {
	Failures []LineFailure
}

func (e *RejectedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %s", f.ProductID, f.ReasonCode()))
	}
	return "checkout rejected: " + strings.Join(parts, ", ")
}

func (e *RejectedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Reason)
	}
	return errs
}

// Retryable is true only when every failure came from a catalog outage.
func (e *RejectedError) Retryable() bool {
	for _, f := range e.Failures {
		if !errors.Is(f.Reason, domain.ErrTransientCatalog) {
			return false
		}
	}
	return len(e.Failures) > 0
}

// ConflictError means stock changed between validation and decrement.
type ConflictError struct {
	ProductID string
	Cause     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("checkout conflict on %s: %v", e.ProductID, e.Cause)
}

func (e *ConflictError) Unwrap() []error {
	return []error{domain.ErrConflict, e.Cause}
}

func (e *ConflictError) Retryable() bool {
	return true
}
