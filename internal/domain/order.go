package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusSubmitted  OrderStatus = "submitted"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusSubmitted:  {OrderStatusProcessing},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusSubmitted, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransition reports whether an order in status from may move to status to.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition if from cannot move to to.
func CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return Invalidf("unknown order status %q", to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Order is a single committed line of a checkout. Product name and unit price
// are copied from the catalog snapshot at commit time and never change.
type Order struct {
	ID           string          `json:"id"`
	CustomerID   string          `json:"customer_id"`
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Total        decimal.Decimal `json:"total_amount"`
	OrderDateUTC time.Time       `json:"order_date_utc"`
	Status       OrderStatus     `json:"status"`
}

// NewOrder builds a submitted order from a snapshot captured at commit time.
func NewOrder(id, customerID string, snapshot ProductSnapshot, quantity int, at time.Time) Order {
	o := Order{
		ID:           id,
		CustomerID:   customerID,
		ProductID:    snapshot.ID,
		ProductName:  snapshot.Name,
		Quantity:     quantity,
		UnitPrice:    snapshot.Price,
		OrderDateUTC: at.UTC(),
		Status:       OrderStatusSubmitted,
	}
	o.Total = o.TotalAmount()
	return o
}

// TotalAmount is always derived from unit price and quantity.
func (o Order) TotalAmount() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}
