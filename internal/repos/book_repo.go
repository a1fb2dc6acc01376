package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
)

var (
	ErrBookNotFound = errors.New("book not found")
	ErrISBNTaken    = errors.New("book with this isbn already exists")
)

type BookRepo struct{ db *sqlx.DB }

func NewBookRepo(db *sqlx.DB) *BookRepo { return &BookRepo{db: db} }

const bookSelect = `
  SELECT
    b.id, b.title, b.author, b.price, b.isbn, b.description, b.cover_image,
    b.category_id, c.name AS category_name, b.publisher, b.publication_date,
    b.language, b.pages, b.stock, b.rating, b.format
  FROM books b
  JOIN categories c ON c.id = b.category_id`

// BookFilter narrows List. Zero values mean "no constraint".
type BookFilter struct {
	Q          string
	CategoryID int64
	Author     string
	Language   string
	Format     domain.BookFormat
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinRating  *decimal.Decimal
	Limit      int
	Offset     int
}

func (r *BookRepo) List(ctx context.Context, f BookFilter) ([]domain.Book, int64, error) {
	where := []string{"1=1"}
	args := []any{}
	if f.Q != "" {
		where = append(where, `(LOWER(b.title) LIKE ? OR LOWER(b.author) LIKE ?)`)
		q := "%" + strings.ToLower(f.Q) + "%"
		args = append(args, q, q)
	}
	if f.CategoryID != 0 {
		where = append(where, `b.category_id = ?`)
		args = append(args, f.CategoryID)
	}
	if f.Author != "" {
		where = append(where, `LOWER(TRIM(b.author)) = LOWER(TRIM(?))`)
		args = append(args, f.Author)
	}
	if f.Language != "" {
		where = append(where, `LOWER(TRIM(b.language)) = LOWER(TRIM(?))`)
		args = append(args, f.Language)
	}
	if f.Format != "" {
		where = append(where, `b.format = ?`)
		args = append(args, string(f.Format))
	}
	if f.MinPrice != nil {
		where = append(where, `CAST(b.price AS REAL) >= ?`)
		args = append(args, f.MinPrice.InexactFloat64())
	}
	if f.MaxPrice != nil {
		where = append(where, `CAST(b.price AS REAL) <= ?`)
		args = append(args, f.MaxPrice.InexactFloat64())
	}
	if f.MinRating != nil {
		where = append(where, `CAST(COALESCE(b.rating, '0') AS REAL) >= ?`)
		args = append(args, f.MinRating.InexactFloat64())
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM books b WHERE `+cond, args...); err != nil {
		return nil, 0, err
	}

	out := []domain.Book{}
	q := bookSelect + ` WHERE ` + cond + ` ORDER BY b.id LIMIT ? OFFSET ?`
	if err := r.db.SelectContext(ctx, &out, q, append(args, f.Limit, f.Offset)...); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *BookRepo) Get(ctx context.Context, id int64) (domain.Book, error) {
	var b domain.Book
	err := r.db.GetContext(ctx, &b, bookSelect+` WHERE b.id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBookNotFound
	}
	return b, err
}

func (r *BookRepo) ExistsISBN(ctx context.Context, isbn string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM books WHERE isbn = ?`, isbn)
	return n > 0, err
}

// CreateMany inserts every book or none, filling in IDs.
func (r *BookRepo) CreateMany(ctx context.Context, books []*domain.Book) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, b := range books {
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO books(title, author, price, isbn, description, cover_image, category_id,
			                  publisher, publication_date, language, pages, stock, rating, format)
			VALUES(:title, :author, :price, :isbn, :description, :cover_image, :category_id,
			       :publisher, :publication_date, :language, :pages, :stock, :rating, :format)
			ON CONFLICT(isbn) DO NOTHING
		`, b)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: %s", ErrISBNTaken, b.ISBN)
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

var bookColumns = map[string]bool{
	"title": true, "author": true, "price": true, "isbn": true, "description": true,
	"cover_image": true, "category_id": true, "publisher": true, "publication_date": true,
	"language": true, "pages": true, "stock": true, "rating": true, "format": true,
}

// Update applies column->value changes to one book.
func (r *BookRepo) Update(ctx context.Context, id int64, changes map[string]any) error {
	if len(changes) == 0 {
		_, err := r.Get(ctx, id)
		return err
	}
	sets := make([]string, 0, len(changes))
	args := make([]any, 0, len(changes)+1)
	for col, v := range changes {
		if !bookColumns[col] {
			return fmt.Errorf("book: unknown column %q", col)
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if isbn, ok := changes["isbn"].(string); ok {
		var clash int
		if err := r.db.GetContext(ctx, &clash, `SELECT COUNT(*) FROM books WHERE isbn = ? AND id <> ?`, isbn, id); err != nil {
			return err
		}
		if clash > 0 {
			return fmt.Errorf("%w: %s", ErrISBNTaken, isbn)
		}
	}
	res, err := r.db.ExecContext(ctx, `UPDATE books SET `+strings.Join(sets, ", ")+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	return nil
}

// Delete removes the book along with cart and order lines that reference it.
func (r *BookRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookNotFound
	}
	return nil
}
