package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxElapsed      = 2 * time.Minute
)

type StockRestorer interface {
	IncrementStock(ctx context.Context, productID string, amount int) error
}

// Handler gives back stock that a failed checkout could not restore inline.
type Handler struct {
	stock           StockRestorer
	logger          *slog.Logger
	initialInterval time.Duration
	maxElapsed      time.Duration
}

type Option func(*Handler)

// WithBackOff bounds the retries spent on one event. A zero maxElapsed
// keeps the default.
func WithBackOff(initial, maxElapsed time.Duration) Option {
	return func(h *Handler) {
		if initial > 0 {
			h.initialInterval = initial
		}
		if maxElapsed > 0 {
			h.maxElapsed = maxElapsed
		}
	}
}

func NewHandler(stock StockRestorer, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		stock:           stock,
		logger:          logger,
		initialInterval: DefaultInitialInterval,
		maxElapsed:      DefaultMaxElapsed,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle returns nil for events that can never apply so the consumer moves
// past them, and an error when retries ran out on a transient failure.
func (h *Handler) Handle(ctx context.Context, payload []byte) error {
	var event domain.StockCompensationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Error("dropping malformed compensation event", "error", err)
		return nil
	}
	if event.ProductID == "" || event.Amount <= 0 {
		h.logger.Error("dropping invalid compensation event", "product_id", event.ProductID, "amount", event.Amount)
		return nil
	}

	logger := h.logger.With("product_id", event.ProductID, "amount", event.Amount, "user_id", event.UserID, "checkout_key", event.CheckoutKey)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.initialInterval
	b.MaxElapsedTime = h.maxElapsed

	attempts := 0
	err := backoff.RetryNotify(func() error {
		attempts++
		err := h.stock.IncrementStock(ctx, event.ProductID, event.Amount)
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("stock restore failed, retrying", "error", err, "attempt", attempts, "next", next)
	})

	switch {
	case err == nil:
		logger.Info("stock restored", "attempts", attempts)
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		logger.Error("dropping compensation the catalog rejected", "error", err)
		return nil
	default:
		logger.Error("stock restore gave up", "error", err, "attempts", attempts)
		return err
	}
}
