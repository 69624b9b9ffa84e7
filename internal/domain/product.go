package domain

import "github.com/shopspring/decimal"

// ProductSnapshot is a point-in-time read from the catalog service.
type ProductSnapshot struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Price          decimal.Decimal `json:"price"`
	StockAvailable int             `json:"stock_available"`
	ImageRef       string          `json:"image_ref"`
}

// ProductLookup is the outcome of fetching one product in a batch.
// Exactly one of Snapshot and Err is set.
type ProductLookup struct {
	Snapshot *ProductSnapshot
	Err      error
}
