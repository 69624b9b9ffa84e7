//go:build integration

package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/cartflow/internal/domain"
	"github.com/joao-fontenele/cartflow/internal/testutil"
)

func TestRepository_Postgres(t *testing.T) {
	repo := NewRepository(testutil.DB(t, testutil.Postgres(t), "shop"))
	ctx := context.Background()

	t.Run("merges adds of the same product", func(t *testing.T) {
		_, err := repo.Upsert(ctx, "merge", "ITEM-002", 3)
		require.NoError(t, err)
		line, err := repo.Upsert(ctx, "merge", "ITEM-002", 4)
		require.NoError(t, err)

		assert.Equal(t, 7, line.Quantity)
		lines, err := repo.List(ctx, "merge")
		require.NoError(t, err)
		assert.Len(t, lines, 1)
	})

	t.Run("concurrent first adds end with one line", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = repo.Upsert(ctx, "race", "ITEM-001", 1)
			}()
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		lines, err := repo.List(ctx, "race")
		require.NoError(t, err)
		require.Len(t, lines, 1)
		assert.Equal(t, 2, lines[0].Quantity)
	})

	t.Run("negative delta removes the line", func(t *testing.T) {
		_, err := repo.Upsert(ctx, "shrink", "ITEM-001", 2)
		require.NoError(t, err)
		line, err := repo.Upsert(ctx, "shrink", "ITEM-001", -2)
		require.NoError(t, err)
		assert.Nil(t, line)

		count, err := repo.Count(ctx, "shrink")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("set quantity, count and clear", func(t *testing.T) {
		a, err := repo.Upsert(ctx, "edit", "ITEM-001", 1)
		require.NoError(t, err)
		_, err = repo.Upsert(ctx, "edit", "ITEM-003", 1)
		require.NoError(t, err)

		line, err := repo.SetQuantity(ctx, "edit", a.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, line.Quantity)

		_, err = repo.SetQuantity(ctx, "someone-else", a.ID, 2)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		count, err := repo.Count(ctx, "edit")
		require.NoError(t, err)
		assert.Equal(t, 6, count)

		require.NoError(t, repo.Clear(ctx, "edit"))
		require.NoError(t, repo.Clear(ctx, "edit"))
		lines, err := repo.List(ctx, "edit")
		require.NoError(t, err)
		assert.Empty(t, lines)
	})
}
