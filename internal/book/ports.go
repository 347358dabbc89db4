package book

import (
	"context"
)

//go:generate mockgen -source=ports.go -destination=mock_repository.go -package=book

// Repository defines the contract for book data storage.
type Repository interface {
	// ListActive returns all non-deleted books in insertion order.
	ListActive(ctx context.Context) ([]Book, error)
	// Get returns a book by id, soft-deleted or not.
	Get(ctx context.Context, id string) (Book, error)
	// IncrementViews adds one view to a book and returns the updated row.
	IncrementViews(ctx context.Context, id string) (Book, error)
	// CreateBatch inserts all books or none of them.
	CreateBatch(ctx context.Context, books []Book) error
	// Update writes title, author and publication year guarded by the
	// book's version. A stale version yields ErrConcurrentModification.
	Update(ctx context.Context, b Book) error
	Delete(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	// SoftDeleteBatch marks all the given ids deleted in one statement.
	SoftDeleteBatch(ctx context.Context, ids []string) error
	Exists(ctx context.Context, id string) (bool, error)
	CountByIDs(ctx context.Context, ids []string) (int, error)
	// ActiveTitleConflicts returns which of the given titles are already
	// held by non-deleted books.
	ActiveTitleConflicts(ctx context.Context, titles []string) ([]string, error)
	// ActiveTitleTaken reports whether a non-deleted book other than
	// excludeID holds the given title.
	ActiveTitleTaken(ctx context.Context, title, excludeID string) (bool, error)
}
