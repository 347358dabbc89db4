package book

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoListActive(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()

	require.NoError(t, repo.CreateBatch(ctx, []Book{
		{ID: "b1", Title: "T1", Version: 1},
		{ID: "b2", Title: "T2", Version: 1, IsDeleted: true},
		{ID: "b3", Title: "T3", Version: 1},
	}))

	books, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	// Insertion order is preserved.
	assert.Equal(t, "b1", books[0].ID)
	assert.Equal(t, "b3", books[1].ID)
}

func TestMemoryRepoUpdateVersionGuard(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateBatch(ctx, []Book{{ID: "b1", Title: "T", Version: 1}}))

	b, err := repo.Get(ctx, "b1")
	require.NoError(t, err)

	b.Title = "Renamed"
	require.NoError(t, repo.Update(ctx, b))

	// The same snapshot is now stale.
	b.Title = "Renamed again"
	assert.ErrorIs(t, repo.Update(ctx, b), ErrConcurrentModification)

	fresh, err := repo.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Title)
	assert.Equal(t, 2, fresh.Version)
}

func TestMemoryRepoIncrementViews(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateBatch(ctx, []Book{{ID: "b1", Title: "T", Version: 1}}))

	for i := 1; i <= 3; i++ {
		b, err := repo.IncrementViews(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, i, b.BookViews)
	}

	_, err := repo.IncrementViews(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepoCountByIDs(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateBatch(ctx, []Book{
		{ID: "b1", Version: 1},
		{ID: "b2", Version: 1},
	}))

	n, err := repo.CountByIDs(ctx, []string{"b1", "b2", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryRepoTitleChecks(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateBatch(ctx, []Book{
		{ID: "b1", Title: "Alive", Version: 1},
		{ID: "b2", Title: "Buried", Version: 1, IsDeleted: true},
	}))

	conflicts, err := repo.ActiveTitleConflicts(ctx, []string{"Alive", "Buried", "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alive"}, conflicts)

	taken, err := repo.ActiveTitleTaken(ctx, "Alive", "b1")
	require.NoError(t, err)
	assert.False(t, taken, "a book does not conflict with itself")

	taken, err = repo.ActiveTitleTaken(ctx, "Alive", "other")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.ActiveTitleTaken(ctx, "Buried", "other")
	require.NoError(t, err)
	assert.False(t, taken, "soft-deleted titles are free")
}

func TestMemoryRepoDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	require.NoError(t, repo.CreateBatch(ctx, []Book{{ID: "b1", Version: 1}}))

	require.NoError(t, repo.Delete(ctx, "b1"))
	assert.ErrorIs(t, repo.Delete(ctx, "b1"), ErrNotFound)

	books, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, books)
}
