package book

import (
	"context"
	"sync"
)

// MemoryRepo is a map-backed Repository with the same semantics as
// PostgresRepo. It backs the server when no database DSN is configured and
// doubles as the store in service tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	books map[string]Book
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{books: make(map[string]Book)}
}

func (r *MemoryRepo) ListActive(_ context.Context) ([]Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Book
	for _, id := range r.order {
		if b := r.books[id]; !b.IsDeleted {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *MemoryRepo) Get(_ context.Context, id string) (Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	return b, nil
}

func (r *MemoryRepo) IncrementViews(_ context.Context, id string) (Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return Book{}, ErrNotFound
	}
	b.BookViews++
	r.books[id] = b
	return b, nil
}

func (r *MemoryRepo) CreateBatch(_ context.Context, books []Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range books {
		r.books[b.ID] = b
		r.order = append(r.order, b.ID)
	}
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, b Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.books[b.ID]
	if !ok || current.Version != b.Version {
		return ErrConcurrentModification
	}
	b.Version++
	b.BookViews = current.BookViews
	b.IsDeleted = current.IsDeleted
	r.books[b.ID] = b
	return nil
}

func (r *MemoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return ErrNotFound
	}
	delete(r.books, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return ErrNotFound
	}
	b.IsDeleted = true
	r.books[id] = b
	return nil
}

func (r *MemoryRepo) SoftDeleteBatch(_ context.Context, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if b, ok := r.books[id]; ok {
			b.IsDeleted = true
			r.books[id] = b
		}
	}
	return nil
}

func (r *MemoryRepo) Exists(_ context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.books[id]
	return ok, nil
}

func (r *MemoryRepo) CountByIDs(_ context.Context, ids []string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, id := range ids {
		if _, ok := r.books[id]; ok {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ActiveTitleConflicts(_ context.Context, titles []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[string]bool, len(titles))
	for _, t := range titles {
		wanted[t] = true
	}
	found := make(map[string]bool)
	var out []string
	for _, b := range r.books {
		if !b.IsDeleted && wanted[b.Title] && !found[b.Title] {
			found[b.Title] = true
			out = append(out, b.Title)
		}
	}
	return out, nil
}

func (r *MemoryRepo) ActiveTitleTaken(_ context.Context, title, excludeID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.books {
		if !b.IsDeleted && b.Title == title && b.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}
