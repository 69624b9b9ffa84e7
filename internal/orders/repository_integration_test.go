//go:build integration

package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/testutil"
)

func TestOrderRepository_Postgres(t *testing.T) {
	repo := NewOrderRepository(testutil.DB(t, testutil.Postgres(t), "shop"))
	ctx := context.Background()

	snap := domain.ProductSnapshot{ID: "ITEM-001", Name: "Widget", Price: decimal.RequireFromString("12.50")}
	order := domain.NewOrder(uuid.NewString(), "u1", snap, 3, time.Now())
	require.NoError(t, repo.Create(ctx, &order))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSubmitted, got.Status)
	assert.True(t, got.Total.Equal(decimal.RequireFromString("37.50")))

	_, err = repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err = repo.UpdateStatus(ctx, order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, got.Status)

	got, err = repo.UpdateStatus(ctx, order.ID, domain.OrderStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, got.Status)

	_, err = repo.UpdateStatus(ctx, uuid.NewString(), domain.OrderStatusProcessing)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
