package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"bookshop/internal/domain"
)

var (
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryExists   = errors.New("category with this name already exists")
)

type CategoryRepo struct{ db *sqlx.DB }

func NewCategoryRepo(db *sqlx.DB) *CategoryRepo { return &CategoryRepo{db: db} }

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	out := []domain.Category{}
	err := r.db.SelectContext(ctx, &out, `SELECT id, name FROM categories ORDER BY name`)
	return out, err
}

func (r *CategoryRepo) Get(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := r.db.GetContext(ctx, &c, `SELECT id, name FROM categories WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrCategoryNotFound
	}
	return c, err
}

// GetOrCreate returns the category called name, creating it when missing.
func (r *CategoryRepo) GetOrCreate(ctx context.Context, name string) (domain.Category, bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories(name) VALUES(?) ON CONFLICT DO NOTHING`, name)
	if err != nil {
		return domain.Category{}, false, err
	}
	created, _ := res.RowsAffected()
	var c domain.Category
	err = r.db.GetContext(ctx, &c, `SELECT id, name FROM categories WHERE LOWER(name)=LOWER(?)`, name)
	return c, created > 0, err
}

// CreateMany inserts all names or none.
func (r *CategoryRepo) CreateMany(ctx context.Context, names []string) ([]domain.Category, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]domain.Category, 0, len(names))
	for _, name := range names {
		res, err := tx.ExecContext(ctx, `INSERT INTO categories(name) VALUES(?) ON CONFLICT DO NOTHING`, name)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrCategoryExists
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		out = append(out, domain.Category{ID: id, Name: name})
	}
	return out, tx.Commit()
}

func (r *CategoryRepo) Rename(ctx context.Context, id int64, name string) error {
	var clash int
	if err := r.db.GetContext(ctx, &clash, `SELECT COUNT(*) FROM categories WHERE LOWER(name)=LOWER(?) AND id<>?`, name, id); err != nil {
		return err
	}
	if clash > 0 {
		return ErrCategoryExists
	}
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name=? WHERE id=?`, name, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete removes the category; its books go with it (ON DELETE CASCADE).
func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
