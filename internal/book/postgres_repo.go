package book

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookColumns = `id, title, author, publication_year, book_views, is_deleted, version, created_at, updated_at`

type PostgresRepo struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresRepo(db *pgxpool.Pool, timeout time.Duration) *PostgresRepo {
	return &PostgresRepo{db: db, timeout: timeout}
}

func (r *PostgresRepo) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func scanBook(row pgx.Row) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.PublicationYear, &b.BookViews,
		&b.IsDeleted, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE NOT is_deleted
		ORDER BY created_at, id`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Book, error) {
	query := `
		SELECT ` + bookColumns + `
		FROM books
		WHERE id = $1::uuid`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) IncrementViews(ctx context.Context, id string) (Book, error) {
	// Single statement so concurrent fetches each count exactly once.
	query := `
		UPDATE books
		SET book_views = book_views + 1, updated_at = now()
		WHERE id = $1::uuid
		RETURNING ` + bookColumns

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	b, err := scanBook(r.db.QueryRow(timeoutCtx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Book{}, ErrNotFound
		}
		return Book{}, err
	}
	return b, nil
}

func (r *PostgresRepo) CreateBatch(ctx context.Context, books []Book) error {
	const sql = `
		INSERT INTO books (id, title, author, publication_year, book_views, is_deleted, version, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9)`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tx, err := r.db.Begin(timeoutCtx)
	if err != nil {
		return err
	}
	defer tx.Rollback(timeoutCtx)

	for _, b := range books {
		if _, err := tx.Exec(timeoutCtx, sql,
			b.ID, b.Title, b.Author, b.PublicationYear, b.BookViews,
			b.IsDeleted, b.Version, b.CreatedAt, b.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit(timeoutCtx)
}

func (r *PostgresRepo) Update(ctx context.Context, b Book) error {
	const sql = `
		UPDATE books
		SET title = $2, author = $3, publication_year = $4, version = version + 1, updated_at = now()
		WHERE id = $1::uuid AND version = $5`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, b.ID, b.Title, b.Author, b.PublicationYear, b.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Row gone or version stale; the service disambiguates.
		return ErrConcurrentModification
	}
	return nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, `DELETE FROM books WHERE id = $1::uuid`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) SoftDelete(ctx context.Context, id string) error {
	const sql = `
		UPDATE books
		SET is_deleted = true, updated_at = now()
		WHERE id = $1::uuid`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	tag, err := r.db.Exec(timeoutCtx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) SoftDeleteBatch(ctx context.Context, ids []string) error {
	const sql = `
		UPDATE books
		SET is_deleted = true, updated_at = now()
		WHERE id = ANY($1::uuid[])`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	_, err := r.db.Exec(timeoutCtx, sql, ids)
	return err
}

func (r *PostgresRepo) Exists(ctx context.Context, id string) (bool, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var exists bool
	err := r.db.QueryRow(timeoutCtx, `SELECT EXISTS(SELECT 1 FROM books WHERE id = $1::uuid)`, id).Scan(&exists)
	return exists, err
}

func (r *PostgresRepo) CountByIDs(ctx context.Context, ids []string) (int, error) {
	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var n int
	err := r.db.QueryRow(timeoutCtx, `SELECT COUNT(*) FROM books WHERE id = ANY($1::uuid[])`, ids).Scan(&n)
	return n, err
}

func (r *PostgresRepo) ActiveTitleConflicts(ctx context.Context, titles []string) ([]string, error) {
	const sql = `
		SELECT DISTINCT title
		FROM books
		WHERE NOT is_deleted AND title = ANY($1)`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	rows, err := r.db.Query(timeoutCtx, sql, titles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, err
		}
		out = append(out, title)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ActiveTitleTaken(ctx context.Context, title, excludeID string) (bool, error) {
	const sql = `
		SELECT EXISTS(
			SELECT 1 FROM books
			WHERE NOT is_deleted AND title = $1 AND id <> $2::uuid
		)`

	timeoutCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	var taken bool
	err := r.db.QueryRow(timeoutCtx, sql, title, excludeID).Scan(&taken)
	return taken, err
}
