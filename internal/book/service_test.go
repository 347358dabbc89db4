package book

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService() (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	s := NewService(repo)
	s.now = func() time.Time { return testNow }
	return s, repo
}

func seedBooks(t *testing.T, repo *MemoryRepo, books ...Book) {
	t.Helper()
	for i := range books {
		if books[i].Version == 0 {
			books[i].Version = 1
		}
		if books[i].CreatedAt.IsZero() {
			books[i].CreatedAt = testNow.Add(time.Duration(i) * time.Second)
		}
	}
	require.NoError(t, repo.CreateBatch(context.Background(), books))
}

func TestServiceCreateBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty batch rejected", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.CreateBatch(ctx, nil)
		assert.ErrorIs(t, err, ErrEmptyBatch)
	})

	t.Run("duplicate titles in batch rejected, nothing persisted", func(t *testing.T) {
		s, repo := newTestService()
		_, err := s.CreateBatch(ctx, []NewBook{
			{Title: "A", Author: "X", PublicationYear: 2000},
			{Title: "A", Author: "Y", PublicationYear: 2001},
		})

		var conflict *TitleConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"A"}, conflict.Titles)

		books, _ := repo.ListActive(ctx)
		assert.Empty(t, books)
	})

	t.Run("every repeated title named", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.CreateBatch(ctx, []NewBook{
			{Title: "A", Author: "X", PublicationYear: 2000},
			{Title: "A", Author: "Y", PublicationYear: 2001},
			{Title: "B", Author: "X", PublicationYear: 2002},
			{Title: "B", Author: "Z", PublicationYear: 2003},
		})

		var conflict *TitleConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"A", "B"}, conflict.Titles)
	})

	t.Run("existing active title rejected, nothing persisted", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "existing", Title: "Dune", Author: "Herbert", PublicationYear: 1965})

		_, err := s.CreateBatch(ctx, []NewBook{
			{Title: "Dune", Author: "Someone", PublicationYear: 2020},
			{Title: "Fresh", Author: "Someone", PublicationYear: 2021},
		})

		var conflict *TitleConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"Dune"}, conflict.Titles)

		books, _ := repo.ListActive(ctx)
		assert.Len(t, books, 1)
	})

	t.Run("soft-deleted title does not conflict", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "gone", Title: "Dune", Author: "Herbert", PublicationYear: 1965, IsDeleted: true})

		created, err := s.CreateBatch(ctx, []NewBook{{Title: "Dune", Author: "Someone", PublicationYear: 2020}})
		require.NoError(t, err)
		assert.Len(t, created, 1)
	})

	t.Run("unique batch creates one book per item with distinct ids", func(t *testing.T) {
		s, repo := newTestService()
		created, err := s.CreateBatch(ctx, []NewBook{
			{Title: "One", Author: "A", PublicationYear: 2001},
			{Title: "Two", Author: "B", PublicationYear: 2002},
			{Title: "Three", Author: "C", PublicationYear: 2003},
		})
		require.NoError(t, err)
		require.Len(t, created, 3)

		ids := map[string]bool{}
		for _, b := range created {
			assert.NotEmpty(t, b.ID)
			assert.Zero(t, b.BookViews)
			ids[b.ID] = true
		}
		assert.Len(t, ids, 3)

		books, _ := repo.ListActive(ctx)
		assert.Len(t, books, 3)
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("missing book", func(t *testing.T) {
		s, _ := newTestService()
		_, err := s.Get(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("each fetch increments views by exactly one", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: 2010, BookViews: 4})

		first, err := s.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 5, first.BookViews)

		second, err := s.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 6, second.BookViews)
	})

	t.Run("soft-deleted book still fetchable by id", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: 2010, IsDeleted: true})

		got, err := s.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 1, got.BookViews)
	})

	t.Run("score reflects fresh view count", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: testNow.Year() - 5, BookViews: 9})

		got, err := s.Get(ctx, "b1")
		require.NoError(t, err)
		assert.Equal(t, 15.0, got.PopularityScore) // 10*0.5 + 5*2
	})
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("missing book", func(t *testing.T) {
		s, _ := newTestService()
		err := s.Update(ctx, "nope", NewBook{Title: "T", Author: "A", PublicationYear: 2000})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("title held by another active book rejected, target unchanged", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "First", Author: "A", PublicationYear: 2000},
			Book{ID: "b2", Title: "Second", Author: "B", PublicationYear: 2001},
		)

		err := s.Update(ctx, "b2", NewBook{Title: "First", Author: "B", PublicationYear: 2001})
		var conflict *TitleConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, []string{"First"}, conflict.Titles)

		b, _ := repo.Get(ctx, "b2")
		assert.Equal(t, "Second", b.Title)
	})

	t.Run("keeping own title is not a conflict", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "First", Author: "A", PublicationYear: 2000})

		err := s.Update(ctx, "b1", NewBook{Title: "First", Author: "New Author", PublicationYear: 2005})
		require.NoError(t, err)

		b, _ := repo.Get(ctx, "b1")
		assert.Equal(t, "New Author", b.Author)
		assert.Equal(t, 2005, b.PublicationYear)
	})

	t.Run("update does not touch views or delete flag", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "First", Author: "A", PublicationYear: 2000, BookViews: 12})

		require.NoError(t, s.Update(ctx, "b1", NewBook{Title: "Renamed", Author: "A", PublicationYear: 2000}))

		b, _ := repo.Get(ctx, "b1")
		assert.Equal(t, 12, b.BookViews)
		assert.False(t, b.IsDeleted)
	})
}

// staleRepo simulates a store that rejects every guarded write as a lost
// optimistic concurrency race.
type staleRepo struct {
	*MemoryRepo
	rowVanished bool
}

func (r *staleRepo) Update(_ context.Context, _ Book) error {
	return ErrConcurrentModification
}

func (r *staleRepo) Exists(ctx context.Context, id string) (bool, error) {
	if r.rowVanished {
		return false, nil
	}
	return r.MemoryRepo.Exists(ctx, id)
}

func TestServiceUpdateConcurrency(t *testing.T) {
	ctx := context.Background()

	t.Run("row vanished mid-flight reports not found", func(t *testing.T) {
		mem := NewMemoryRepo()
		seedBooks(t, mem, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: 2000})
		s := NewService(&staleRepo{MemoryRepo: mem, rowVanished: true})
		s.now = func() time.Time { return testNow }

		err := s.Update(ctx, "b1", NewBook{Title: "T2", Author: "A", PublicationYear: 2000})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("row still present propagates the conflict unretried", func(t *testing.T) {
		mem := NewMemoryRepo()
		seedBooks(t, mem, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: 2000})
		s := NewService(&staleRepo{MemoryRepo: mem})
		s.now = func() time.Time { return testNow }

		err := s.Update(ctx, "b1", NewBook{Title: "T2", Author: "A", PublicationYear: 2000})
		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("hard delete removes the row", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo, Book{ID: "b1", Title: "T", Author: "A", PublicationYear: 2000})

		require.NoError(t, s.Delete(ctx, "b1"))
		_, err := repo.Get(ctx, "b1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing book", func(t *testing.T) {
		s, _ := newTestService()
		assert.ErrorIs(t, s.Delete(ctx, "nope"), ErrNotFound)
	})
}

func TestServiceSoftDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("single soft delete hides book from listing", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "T1", Author: "A", PublicationYear: 2000},
			Book{ID: "b2", Title: "T2", Author: "A", PublicationYear: 2001},
		)

		require.NoError(t, s.SoftDelete(ctx, "b1"))

		books, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, books, 1)
		assert.Equal(t, "b2", books[0].ID)
	})

	t.Run("missing book", func(t *testing.T) {
		s, _ := newTestService()
		assert.ErrorIs(t, s.SoftDelete(ctx, "nope"), ErrNotFound)
	})
}

func TestServiceSoftDeleteBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("empty id list rejected", func(t *testing.T) {
		s, _ := newTestService()
		assert.ErrorIs(t, s.SoftDeleteBatch(ctx, nil), ErrEmptyBatch)
	})

	t.Run("one missing id rejects the whole batch, none marked", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "T1", Author: "A", PublicationYear: 2000},
			Book{ID: "b2", Title: "T2", Author: "A", PublicationYear: 2001},
		)

		err := s.SoftDeleteBatch(ctx, []string{"b1", "b2", "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)

		books, _ := repo.ListActive(ctx)
		assert.Len(t, books, 2)
	})

	t.Run("all ids resolve and get marked", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "T1", Author: "A", PublicationYear: 2000},
			Book{ID: "b2", Title: "T2", Author: "A", PublicationYear: 2001},
			Book{ID: "b3", Title: "T3", Author: "A", PublicationYear: 2002},
		)

		require.NoError(t, s.SoftDeleteBatch(ctx, []string{"b1", "b3"}))

		books, _ := repo.ListActive(ctx)
		require.Len(t, books, 1)
		assert.Equal(t, "b2", books[0].ID)
	})
}

func TestServicePopular(t *testing.T) {
	ctx := context.Background()

	t.Run("titles ordered by descending score", func(t *testing.T) {
		s, repo := newTestService()
		year := testNow.Year()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "Quiet", Author: "A", PublicationYear: year, BookViews: 0},     // 0
			Book{ID: "b2", Title: "Steady", Author: "A", PublicationYear: year - 5, BookViews: 10}, // 15
			Book{ID: "b3", Title: "Hot", Author: "A", PublicationYear: year - 1, BookViews: 100},   // 52
		)

		titles, err := s.Popular(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Hot", "Steady", "Quiet"}, titles)
	})

	t.Run("soft-deleted books never ranked", func(t *testing.T) {
		s, repo := newTestService()
		seedBooks(t, repo,
			Book{ID: "b1", Title: "Alive", Author: "A", PublicationYear: 2000, BookViews: 1},
			Book{ID: "b2", Title: "Buried", Author: "A", PublicationYear: 1900, BookViews: 100000, IsDeleted: true},
		)

		titles, err := s.Popular(ctx, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"Alive"}, titles)
	})

	t.Run("pagination", func(t *testing.T) {
		s, repo := newTestService()
		year := testNow.Year()
		for i := 0; i < 5; i++ {
			seedBooks(t, repo, Book{
				ID:              string(rune('a' + i)),
				Title:           string(rune('A' + i)),
				Author:          "A",
				PublicationYear: year,
				BookViews:       (5 - i) * 2, // descending scores in seed order
			})
		}

		page1, err := s.Popular(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, page1)

		page2, err := s.Popular(ctx, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"C", "D"}, page2)

		page3, err := s.Popular(ctx, 3, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"E"}, page3)
	})
}

func TestServiceList(t *testing.T) {
	ctx := context.Background()

	s, repo := newTestService()
	seedBooks(t, repo,
		Book{ID: "b1", Title: "T1", Author: "A", PublicationYear: testNow.Year() - 5, BookViews: 10},
		Book{ID: "b2", Title: "T2", Author: "A", PublicationYear: 2000, IsDeleted: true},
	)

	books, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b1", books[0].ID)
	assert.Equal(t, 15.0, books[0].PopularityScore)
}
