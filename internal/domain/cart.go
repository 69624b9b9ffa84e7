package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartLine struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	DateAdded time.Time `json:"date_added"`
}

const (
	UnavailableNotFound = "not_found"
	UnavailableCatalog  = "unavailable"
)

type CartViewLine struct {
	Line        CartLine         `json:"line"`
	Product     *ProductSnapshot `json:"product,omitempty"`
	Unavailable bool             `json:"unavailable"`
	Reason      string           `json:"reason,omitempty"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
}

// CartView is derived on every read and never stored.
type CartView struct {
	UserID              string          `json:"user_id"`
	Lines               []CartViewLine  `json:"lines"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	ItemCount           int             `json:"item_count"`
	HasUnavailableLines bool            `json:"has_unavailable_lines"`
}
