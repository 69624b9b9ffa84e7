package cart

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type LineLister interface {
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
}

type BatchFetcher interface {
	FetchMany(ctx context.Context, productIDs []string) map[string]domain.ProductLookup
}

// Projector joins cart lines with live catalog data for display. Its output
// is advisory only.
type Projector struct {
	lines   LineLister
	catalog BatchFetcher
	logger  *slog.Logger
}

func NewProjector(lines LineLister, catalog BatchFetcher, logger *slog.Logger) *Projector {
	return &Projector{
		lines:   lines,
		catalog: catalog,
		logger:  logger,
	}
}

// Project builds the user's cart view. A catalog failure on one line marks
// that line unavailable and leaves it out of the subtotal; only a local
// store failure fails the whole view.
func (p *Projector) Project(ctx context.Context, userID string) (*domain.CartView, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	lines, err := p.lines.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &domain.CartView{
		UserID:   userID,
		Lines:    make([]domain.CartViewLine, 0, len(lines)),
		Subtotal: decimal.Zero,
	}
	if len(lines) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	lookups := p.catalog.FetchMany(ctx, ids)

	for _, line := range lines {
		vl := domain.CartViewLine{Line: line, Subtotal: decimal.Zero}
		view.ItemCount += line.Quantity

		lookup, ok := lookups[line.ProductID]
		switch {
		case ok && lookup.Err == nil && lookup.Snapshot != nil:
			vl.Product = lookup.Snapshot
			vl.Subtotal = lookup.Snapshot.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			view.Subtotal = view.Subtotal.Add(vl.Subtotal)
		case ok && errors.Is(lookup.Err, domain.ErrNotFound):
			vl.Unavailable = true
			vl.Reason = domain.UnavailableNotFound
		default:
			vl.Unavailable = true
			vl.Reason = domain.UnavailableCatalog
			p.logger.Warn("could not load product details", "error", lookup.Err, "user_id", userID, "product_id", line.ProductID)
		}

		if vl.Unavailable {
			view.HasUnavailableLines = true
		}
		view.Lines = append(view.Lines, vl)
	}

	return view, nil
}
