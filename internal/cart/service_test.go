package cart

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

func newTestService(store Store, catalog Catalog) *Service {
	return NewService(store, catalog, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestAddToCart_MergesRepeatedAdds(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, newFakeCatalog(product("P", "10.00", 5)))
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, "u1", "P", 3)
	require.NoError(t, err)
	line, err := svc.AddToCart(ctx, "u1", "P", 4)
	require.NoError(t, err)

	assert.Equal(t, 7, line.Quantity)
	lines, err := store.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 7, lines[0].Quantity)
}

func TestAddToCart_ConcurrentAddsForSameUser(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, newFakeCatalog(product("P", "1.00", 10)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddToCart(ctx, "u1", "P", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := svc.CartCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestAddToCart_Rejections(t *testing.T) {
	catalog := newFakeCatalog(product("P", "1.00", 2))
	catalog.failing["DOWN"] = domain.ErrTransientCatalog
	svc := newTestService(newMemoryStore(), catalog)
	ctx := context.Background()

	tests := []struct {
		name      string
		userID    string
		productID string
		quantity  int
		wantErr   error
	}{
		{"missing user", "", "P", 1, domain.ErrValidation},
		{"missing product id", "u1", " ", 1, domain.ErrValidation},
		{"zero quantity", "u1", "P", 0, domain.ErrValidation},
		{"negative quantity", "u1", "P", -2, domain.ErrValidation},
		{"unknown product", "u1", "NOPE", 1, domain.ErrNotFound},
		{"above live stock", "u1", "P", 3, domain.ErrInsufficientStock},
		{"catalog down", "u1", "DOWN", 1, domain.ErrTransientCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := svc.AddToCart(ctx, tt.userID, tt.productID, tt.quantity)
			assert.Nil(t, line)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateQuantity(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, newFakeCatalog(product("P", "1.00", 10)))
	ctx := context.Background()

	line, err := svc.AddToCart(ctx, "u1", "P", 2)
	require.NoError(t, err)

	t.Run("sets quantity", func(t *testing.T) {
		updated, err := svc.UpdateQuantity(ctx, "u1", line.ID, 6)
		require.NoError(t, err)
		assert.Equal(t, 6, updated.Quantity)
	})

	t.Run("other user cannot touch the line", func(t *testing.T) {
		_, err := svc.UpdateQuantity(ctx, "u2", line.ID, 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("zero removes the line", func(t *testing.T) {
		updated, err := svc.UpdateQuantity(ctx, "u1", line.ID, 0)
		require.NoError(t, err)
		assert.Nil(t, updated)
		lines, err := store.List(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})
}

func TestRemoveAndClearAreNoOpsWhenAbsent(t *testing.T) {
	svc := newTestService(newMemoryStore(), newFakeCatalog())
	ctx := context.Background()

	assert.NoError(t, svc.RemoveFromCart(ctx, "u1", 42))
	assert.NoError(t, svc.ClearCart(ctx, "u1"))
}

func TestAddToCart_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.err = domain.Persistence("upsert", errors.New("connection reset"))
	svc := newTestService(store, newFakeCatalog(product("P", "1.00", 10)))

	_, err := svc.AddToCart(context.Background(), "u1", "P", 1)
	assert.ErrorIs(t, err, domain.ErrPersistence)
}
