package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

const (
	DefaultDeadline            = 30 * time.Second
	DefaultCompensationTimeout = 10 * time.Second
)

var tracer = otel.Tracer("checkout")

// Store opens the per-user transactional scope checkout runs in.
type Store interface {
	InUserScope(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the local state visible inside one user scope. Writes become
// durable only if the scope function returns nil and the commit succeeds.
type Tx interface {
	FindResult(ctx context.Context, userID, token string) (*Result, error)
	ListLines(ctx context.Context, userID string) ([]domain.CartLine, error)
	CreateOrders(ctx context.Context, orders []domain.Order) error
	DeleteLines(ctx context.Context, userID string, lineIDs []int64) error
	SaveResult(ctx context.Context, result *Result) error
}

type Catalog interface {
	FetchMany(ctx context.Context, productIDs []string) map[string]domain.ProductLookup
	DecrementStock(ctx context.Context, productID string, amount int) error
	IncrementStock(ctx context.Context, productID string, amount int) error
}

type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Engine struct {
	store               Store
	catalog             Catalog
	logger              *slog.Logger
	metrics             *Metrics
	orderEvents         Publisher
	compensationEvents  Publisher
	deadline            time.Duration
	compensationTimeout time.Duration
	now                 func() time.Time
	newID               func() string
}

type Option func(*Engine)

func WithDeadline(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.deadline = d
		}
	}
}

func WithCompensationTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.compensationTimeout = d
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithOrderEvents publishes an OrderCreatedEvent per committed order.
func WithOrderEvents(p Publisher) Option {
	return func(e *Engine) { e.orderEvents = p }
}

// WithCompensationEvents hands compensations that failed inline to the
// compensation worker.
func WithCompensationEvents(p Publisher) Option {
	return func(e *Engine) { e.compensationEvents = p }
}

func NewEngine(store Store, catalog Catalog, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:               store,
		catalog:             catalog,
		logger:              logger,
		deadline:            DefaultDeadline,
		compensationTimeout: DefaultCompensationTimeout,
		now:                 time.Now,
		newID:               uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type decrement struct {
	productID string
	amount    int
}

// Checkout converts the user's whole cart into orders or changes nothing.
// A token that already committed returns the recorded result.
func (e *Engine) Checkout(ctx context.Context, userID, token string) (result *Result, err error) {
	userID = strings.TrimSpace(userID)
	token = strings.TrimSpace(token)
	if userID == "" {
		return nil, domain.Invalidf("user id is required")
	}
	if token == "" {
		return nil, domain.Invalidf("idempotency token is required")
	}

	start := e.now()
	ctx, cancel := context.WithTimeout(ctx, e.deadline)
	defer cancel()

	ctx, span := tracer.Start(ctx, "checkout", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() {
		out := outcome(result, err)
		span.SetAttributes(attribute.String("checkout.outcome", out))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		e.metrics.recordAttempt(ctx, out, e.now().Sub(start))
	}()

	var applied []decrement
	err = e.store.InUserScope(ctx, userID, func(ctx context.Context, tx Tx) error {
		prior, err := tx.FindResult(ctx, userID, token)
		if err != nil {
			return err
		}
		if prior != nil {
			prior.Replayed = true
			result = prior
			return nil
		}

		lines, err := tx.ListLines(ctx, userID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return domain.ErrEmptyCart
		}
		span.SetAttributes(attribute.Int("checkout.lines", len(lines)))

		snapshots, err := e.validate(ctx, lines)
		if err != nil {
			return err
		}

		applied, err = e.decrementAll(ctx, lines)
		if err != nil {
			return err
		}

		res, orders := e.buildResult(userID, token, lines, snapshots)
		if err := tx.CreateOrders(ctx, orders); err != nil {
			return err
		}

		lineIDs := make([]int64, 0, len(lines))
		for _, line := range lines {
			lineIDs = append(lineIDs, line.ID)
		}
		if err := tx.DeleteLines(ctx, userID, lineIDs); err != nil {
			return err
		}

		if err := tx.SaveResult(ctx, res); err != nil {
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		if len(applied) > 0 {
			e.compensate(ctx, userID, token, applied, err)
		}
		e.logCheckoutFailure(userID, err)
		return nil, err
	}

	if result.Replayed {
		e.logger.Info("checkout replayed", "user_id", userID, "orders", len(result.OrderIDs))
		return result, nil
	}

	e.logger.Info("checkout committed", "user_id", userID, "orders", len(result.OrderIDs), "total", result.Total.String())
	e.publishOrders(ctx, result)
	return result, nil
}

// validate checks every line against a fresh snapshot and reports all
// failing lines at once.
func (e *Engine) validate(ctx context.Context, lines []domain.CartLine) (map[string]domain.ProductSnapshot, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	lookups := e.catalog.FetchMany(ctx, ids)

	snapshots := make(map[string]domain.ProductSnapshot, len(lines))
	var failures []LineFailure
	for _, line := range lines {
		failure := LineFailure{LineID: line.ID, ProductID: line.ProductID, Requested: line.Quantity}

		lookup, ok := lookups[line.ProductID]
		switch {
		case !ok:
			failure.Reason = fmt.Errorf("%w: no response for %s", domain.ErrTransientCatalog, line.ProductID)
		case lookup.Err != nil:
			failure.Reason = lookup.Err
		case lookup.Snapshot == nil:
			failure.Reason = fmt.Errorf("%w: empty snapshot for %s", domain.ErrTransientCatalog, line.ProductID)
		case line.Quantity > lookup.Snapshot.StockAvailable:
			failure.Available = lookup.Snapshot.StockAvailable
			failure.Reason = domain.ErrInsufficientStock
		default:
			snapshots[line.ProductID] = *lookup.Snapshot
			continue
		}
		failures = append(failures, failure)
	}

	if len(failures) > 0 {
		return nil, &RejectedError{Failures: failures}
	}
	return snapshots, nil
}

// decrementAll takes stock line by line. On failure it returns the
// decrements that did apply so the caller can give them back.
func (e *Engine) decrementAll(ctx context.Context, lines []domain.CartLine) ([]decrement, error) {
	applied := make([]decrement, 0, len(lines))
	for _, line := range lines {
		err := e.catalog.DecrementStock(ctx, line.ProductID, line.Quantity)
		switch {
		case err == nil:
			applied = append(applied, decrement{productID: line.ProductID, amount: line.Quantity})
		case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrNotFound):
			return applied, &ConflictError{ProductID: line.ProductID, Cause: err}
		default:
			// The outcome of this call is unknown, so it is not compensated.
			return applied, fmt.Errorf("decrement %s: %w", line.ProductID, err)
		}
	}
	return applied, nil
}

func (e *Engine) buildResult(userID, token string, lines []domain.CartLine, snapshots map[string]domain.ProductSnapshot) (*Result, []domain.Order) {
	at := e.now().UTC()
	res := &Result{
		UserID:    userID,
		Token:     token,
		OrderIDs:  make([]string, 0, len(lines)),
		Manifest:  make([]ManifestLine, 0, len(lines)),
		Total:     decimal.Zero,
		CreatedAt: at,
	}
	orders := make([]domain.Order, 0, len(lines))

	for _, line := range lines {
		order := domain.NewOrder(e.newID(), userID, snapshots[line.ProductID], line.Quantity, at)
		orders = append(orders, order)

		res.OrderIDs = append(res.OrderIDs, order.ID)
		res.Manifest = append(res.Manifest, ManifestLine{
			OrderID:     order.ID,
			LineID:      line.ID,
			ProductID:   order.ProductID,
			ProductName: order.ProductName,
			Quantity:    order.Quantity,
			UnitPrice:   order.UnitPrice,
			Total:       order.Total,
		})
		res.Total = res.Total.Add(order.Total)
	}

	return res, orders
}

// compensate re-increments applied decrements. It runs even when ctx is
// already cancelled or past its deadline.
func (e *Engine) compensate(ctx context.Context, userID, token string, applied []decrement, cause error) {
	base := context.WithoutCancel(ctx)

	for _, d := range applied {
		callCtx, cancel := context.WithTimeout(base, e.compensationTimeout)
		err := e.catalog.IncrementStock(callCtx, d.productID, d.amount)
		cancel()

		if err == nil {
			e.metrics.recordCompensation(base, "restored")
			e.logger.Info("stock compensated", "user_id", userID, "product_id", d.productID, "amount", d.amount)
			continue
		}

		e.logger.Error("stock compensation failed", "error", err, "user_id", userID, "product_id", d.productID, "amount", d.amount)
		e.deferCompensation(base, userID, token, d, cause)
	}
}

func (e *Engine) deferCompensation(ctx context.Context, userID, token string, d decrement, cause error) {
	if e.compensationEvents == nil {
		e.metrics.recordCompensation(ctx, "lost")
		e.logger.Error("stock compensation dropped, no compensation queue configured", "user_id", userID, "product_id", d.productID, "amount", d.amount)
		return
	}

	event := domain.StockCompensationEvent{
		ProductID:   d.productID,
		Amount:      d.amount,
		UserID:      userID,
		CheckoutKey: token,
		Reason:      cause.Error(),
		Timestamp:   e.now().UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, e.compensationTimeout)
	defer cancel()
	if err := e.compensationEvents.Publish(callCtx, d.productID, event); err != nil {
		e.metrics.recordCompensation(ctx, "lost")
		e.logger.Error("failed to queue stock compensation", "error", err, "user_id", userID, "product_id", d.productID, "amount", d.amount)
		return
	}
	e.metrics.recordCompensation(ctx, "queued")
}

func (e *Engine) publishOrders(ctx context.Context, result *Result) {
	if e.orderEvents == nil {
		return
	}
	for _, line := range result.Manifest {
		event := domain.OrderCreatedEvent{
			OrderID:     line.OrderID,
			CustomerID:  result.UserID,
			ProductID:   line.ProductID,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			CheckoutKey: result.Token,
			Timestamp:   result.CreatedAt,
		}
		if err := e.orderEvents.Publish(ctx, line.OrderID, event); err != nil {
			e.logger.Error("failed to publish order created event", "error", err, "order_id", line.OrderID)
		}
	}
}

func (e *Engine) logCheckoutFailure(userID string, err error) {
	var rejected *RejectedError
	switch {
	case errors.As(err, &rejected):
		e.logger.Info("checkout rejected", "user_id", userID, "failures", len(rejected.Failures), "retryable", rejected.Retryable())
	case errors.Is(err, domain.ErrEmptyCart):
		e.logger.Info("checkout of empty cart", "user_id", userID)
	case errors.Is(err, domain.ErrPersistence):
		e.logger.Error("checkout failed", "error", err, "user_id", userID)
	default:
		e.logger.Warn("checkout aborted", "error", err, "user_id", userID, "retryable", domain.IsRetryable(err))
	}
}

func outcome(result *Result, err error) string {
	var rejected *RejectedError
	switch {
	case err == nil && result != nil && result.Replayed:
		return "replayed"
	case err == nil:
		return "committed"
	case errors.As(err, &rejected):
		return "rejected"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrTransientCatalog), errors.Is(err, context.DeadlineExceeded):
		return "transient"
	default:
		return "failed"
	}
}
