package book

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Service provides book-related business logic: batch and uniqueness
// validation, conflict detection against persisted state, and popularity
// ranking. All durable state lives in the Repository; the service itself is
// stateless between requests.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new book service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List returns all non-deleted books with their popularity scores.
func (s *Service) List(ctx context.Context) ([]Scored, error) {
	books, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]Scored, 0, len(books))
	for _, b := range books {
		out = append(out, Scored{Book: b, PopularityScore: ComputeScore(b, now)})
	}
	return out, nil
}

// Get fetches a book by id and counts the fetch as one view. Soft-deleted
// books remain retrievable by direct lookup; only listing and ranking
// exclude them.
func (s *Service) Get(ctx context.Context, id string) (Scored, error) {
	b, err := s.repo.IncrementViews(ctx, id)
	if err != nil {
		return Scored{}, err
	}
	return Scored{Book: b, PopularityScore: ComputeScore(b, s.now())}, nil
}

// CreateBatch validates the whole batch before persisting anything: the
// batch must be non-empty, titles must be unique within it, and no title may
// already belong to a non-deleted book. On any rejection nothing is
// inserted.
func (s *Service) CreateBatch(ctx context.Context, items []NewBook) ([]Scored, error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}

	if dups := duplicateTitles(items); len(dups) > 0 {
		return nil, &TitleConflictError{Titles: dups}
	}

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	taken, err := s.repo.ActiveTitleConflicts(ctx, titles)
	if err != nil {
		return nil, fmt.Errorf("check existing titles: %w", err)
	}
	if len(taken) > 0 {
		sort.Strings(taken)
		return nil, &TitleConflictError{Titles: taken}
	}

	now := s.now().UTC()
	books := make([]Book, len(items))
	for i, it := range items {
		books[i] = Book{
			ID:              uuid.NewString(),
			Title:           it.Title,
			Author:          it.Author,
			PublicationYear: it.PublicationYear,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
	}
	if err := s.repo.CreateBatch(ctx, books); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	out := make([]Scored, len(books))
	for i, b := range books {
		out[i] = Scored{Book: b, PopularityScore: ComputeScore(b, now)}
	}
	return out, nil
}

// Update replaces title, author and publication year of an existing book.
// The candidate title must not belong to another non-deleted book. A write
// that loses an optimistic concurrency race is re-checked: if the row
// vanished the result is ErrNotFound, otherwise the conflict propagates
// unretried.
func (s *Service) Update(ctx context.Context, id string, in NewBook) error {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	taken, err := s.repo.ActiveTitleTaken(ctx, in.Title, id)
	if err != nil {
		return fmt.Errorf("check title: %w", err)
	}
	if taken {
		return &TitleConflictError{Titles: []string{in.Title}}
	}

	b.Title = in.Title
	b.Author = in.Author
	b.PublicationYear = in.PublicationYear

	if err := s.repo.Update(ctx, b); err != nil {
		if errors.Is(err, ErrConcurrentModification) {
			exists, checkErr := s.repo.Exists(ctx, id)
			if checkErr != nil {
				return checkErr
			}
			if !exists {
				return ErrNotFound
			}
		}
		return err
	}
	return nil
}

// Delete permanently removes a book.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SoftDelete marks a single book deleted, keeping its data.
func (s *Service) SoftDelete(ctx context.Context, id string) error {
	return s.repo.SoftDelete(ctx, id)
}

// SoftDeleteBatch marks all the given books deleted. Every id must resolve
// to an existing book; if any is missing the whole batch is rejected with
// ErrNotFound and nothing is marked.
func (s *Service) SoftDeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrEmptyBatch
	}
	n, err := s.repo.CountByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve ids: %w", err)
	}
	if n != len(ids) {
		return ErrNotFound
	}
	return s.repo.SoftDeleteBatch(ctx, ids)
}

// Popular returns the titles of the requested page of non-deleted books
// ordered by descending popularity score. pageNumber and pageSize must be
// positive; the handler rejects anything else.
func (s *Service) Popular(ctx context.Context, pageNumber, pageSize int) ([]string, error) {
	books, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	ranked := Rank(books, pageNumber, pageSize, s.now())
	titles := make([]string, 0, len(ranked))
	for _, b := range ranked {
		titles = append(titles, b.Title)
	}
	return titles, nil
}

// duplicateTitles returns every title appearing more than once, sorted.
func duplicateTitles(items []NewBook) []string {
	seen := make(map[string]int, len(items))
	for _, it := range items {
		seen[it.Title]++
	}
	var dups []string
	for title, n := range seen {
		if n > 1 {
			dups = append(dups, title)
		}
	}
	sort.Strings(dups)
	return dups
}
