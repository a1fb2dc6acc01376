package repos

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"bookshop/internal/domain"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

const userCols = `id, email, password_hash, first_name, last_name, phone, is_staff, is_active`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE LOWER(email)=LOWER(?)`, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) ByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, `SELECT `+userCols+` FROM users WHERE id=?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts u and sets its ID. A duplicate email yields ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users(email, password_hash, first_name, last_name, phone, is_staff, is_active)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, u.Email, u.Hash, u.FirstName, u.LastName, u.Phone, u.IsStaff, u.IsActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEmailTaken
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r *UserRepo) SetPassword(ctx context.Context, id int64, hash string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET password_hash=?, updated_at=CURRENT_TIMESTAMP WHERE id=?`, hash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}
