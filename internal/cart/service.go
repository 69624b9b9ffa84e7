package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// Store is the cart line storage the service and projector depend on.
type Store interface {
	Upsert(ctx context.Context, userID, productID string, delta int) (*domain.CartLine, error)
	SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.CartLine, error)
	Remove(ctx context.Context, userID string, lineID int64) error
	Clear(ctx context.Context, userID string) error
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	Count(ctx context.Context, userID string) (int, error)
}

type Catalog interface {
	FetchProduct(ctx context.Context, productID string) (*domain.ProductSnapshot, error)
	FetchMany(ctx context.Context, productIDs []string) map[string]domain.ProductLookup
}

type Service struct {
	store   Store
	catalog Catalog
	logger  *slog.Logger
}

func NewService(store Store, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		logger:  logger,
	}
}

// AddToCart merges quantity into the user's line for productID. The catalog
// is consulted so obviously bad adds are refused early; checkout validates
// again against fresh data.
func (s *Service) AddToCart(ctx context.Context, userID, productID string, quantity int) (*domain.CartLine, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Invalidf("product id is required")
	}
	if quantity <= 0 {
		return nil, domain.Invalidf("quantity must be positive, got %d", quantity)
	}

	product, err := s.catalog.FetchProduct(ctx, productID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("catalog lookup failed on add to cart", "error", err, "product_id", productID)
		}
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	if product.StockAvailable < quantity {
		return nil, fmt.Errorf("product %s: only %d available: %w", productID, product.StockAvailable, domain.ErrInsufficientStock)
	}

	line, err := s.store.Upsert(ctx, userID, productID, quantity)
	if err != nil {
		s.logger.Error("failed to add to cart", "error", err, "user_id", userID, "product_id", productID)
		return nil, err
	}

	s.logger.Info("added to cart", "user_id", userID, "product_id", productID, "quantity", quantity)
	return line, nil
}

// UpdateQuantity sets a line's quantity; zero or less removes the line and
// returns a nil line.
func (s *Service) UpdateQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*domain.CartLine, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	line, err := s.store.SetQuantity(ctx, userID, lineID, quantity)
	if err != nil {
		return nil, err
	}

	s.logger.Info("cart line updated", "user_id", userID, "line_id", lineID, "quantity", quantity)
	return line, nil
}

func (s *Service) RemoveFromCart(ctx context.Context, userID string, lineID int64) error {
	if err := requireUser(userID); err != nil {
		return err
	}

	if err := s.store.Remove(ctx, userID, lineID); err != nil {
		return err
	}

	s.logger.Info("cart line removed", "user_id", userID, "line_id", lineID)
	return nil
}

func (s *Service) ClearCart(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}

	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}

	s.logger.Info("cart cleared", "user_id", userID)
	return nil
}

func (s *Service) CartCount(ctx context.Context, userID string) (int, error) {
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	return s.store.Count(ctx, userID)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.Invalidf("user id is required")
	}
	return nil
}
