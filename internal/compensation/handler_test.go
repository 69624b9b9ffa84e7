package compensation

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

type flakyStock struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	restored map[string]int
}

func (s *flakyStock) IncrementStock(_ context.Context, productID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	if s.restored == nil {
		s.restored = make(map[string]int)
	}
	s.restored[productID] += amount
	return nil
}

func newTestHandler(stock StockRestorer) *Handler {
	return NewHandler(stock, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithBackOff(time.Millisecond, 200*time.Millisecond))
}

func payload(t *testing.T, productID string, amount int) []byte {
	t.Helper()
	data, err := json.Marshal(domain.StockCompensationEvent{
		ProductID:   productID,
		Amount:      amount,
		UserID:      "u1",
		CheckoutKey: "tok",
	})
	require.NoError(t, err)
	return data
}

func TestHandle_RetriesTransientFailures(t *testing.T) {
	stock := &flakyStock{failures: 2, err: domain.ErrTransientCatalog}

	err := newTestHandler(stock).Handle(t.Context(), payload(t, "A", 3))

	require.NoError(t, err)
	assert.Equal(t, 3, stock.calls)
	assert.Equal(t, map[string]int{"A": 3}, stock.restored)
}

func TestHandle_DropsRejectedEvents(t *testing.T) {
	stock := &flakyStock{failures: 100, err: domain.ErrNotFound}

	err := newTestHandler(stock).Handle(t.Context(), payload(t, "GONE", 1))

	require.NoError(t, err)
	assert.Equal(t, 1, stock.calls)
}

func TestHandle_GivesUpAfterMaxElapsed(t *testing.T) {
	stock := &flakyStock{failures: 1 << 20, err: domain.ErrTransientCatalog}

	err := newTestHandler(stock).Handle(t.Context(), payload(t, "A", 1))

	assert.ErrorIs(t, err, domain.ErrTransientCatalog)
	assert.Greater(t, stock.calls, 1)
	assert.Empty(t, stock.restored)
}

func TestHandle_StopsWhenContextEnds(t *testing.T) {
	stock := &flakyStock{failures: 1 << 20, err: domain.ErrTransientCatalog}
	h := NewHandler(stock, slog.New(slog.NewTextHandler(io.Discard, nil)), WithBackOff(10*time.Millisecond, time.Hour))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	err := h.Handle(ctx, payload(t, "A", 1))
	assert.Error(t, err)
}

func TestHandle_SkipsUnusablePayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "malformed json", payload: []byte(`{"product_id":`)},
		{name: "missing product", payload: payload(t, "", 1)},
		{name: "zero amount", payload: payload(t, "A", 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock := &flakyStock{}
			require.NoError(t, newTestHandler(stock).Handle(t.Context(), tt.payload))
			assert.Zero(t, stock.calls)
		})
	}
}
