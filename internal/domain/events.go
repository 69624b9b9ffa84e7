package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderCreatedEvent struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	ProductID   string          `json:"product_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CheckoutKey string          `json:"checkout_key"`
	Timestamp   time.Time       `json:"timestamp"`
}

// StockCompensationEvent asks the compensation worker to give back stock that
// a failed checkout decremented and could not re-increment itself.
type StockCompensationEvent struct {
	ProductID   string    `json:"product_id"`
	Amount      int       `json:"amount"`
	UserID      string    `json:"user_id"`
	CheckoutKey string    `json:"checkout_key"`
	Reason      string    `json:"reason"`
	Timestamp   time.Time `json:"timestamp"`
}
