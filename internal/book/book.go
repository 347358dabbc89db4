package book

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a book is not found.
var ErrNotFound = errors.New("book not found")

// ErrEmptyBatch is returned when a batch request carries no items.
var ErrEmptyBatch = errors.New("batch cannot be empty")

// ErrConcurrentModification is returned when a write lost an optimistic
// concurrency race and the target row still exists.
var ErrConcurrentModification = errors.New("book was modified concurrently")

// TitleConflictError reports titles that collide, either within a submitted
// batch or against non-deleted persisted books.
type TitleConflictError struct {
	Titles []string
}

func (e *TitleConflictError) Error() string {
	if len(e.Titles) == 1 {
		return fmt.Sprintf("a book with the title %q already exists", e.Titles[0])
	}
	return fmt.Sprintf("conflicting titles: %s", strings.Join(e.Titles, ", "))
}

// Book represents a book entity.
type Book struct {
	ID              string
	Title           string
	Author          string
	PublicationYear int
	BookViews       int
	IsDeleted       bool
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewBook carries the caller-supplied fields for creating or updating a book.
type NewBook struct {
	Title           string
	Author          string
	PublicationYear int
}

// Scored pairs a book with its popularity score at evaluation time.
type Scored struct {
	Book
	PopularityScore float64
}
