package repos

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"bookshop/internal/domain"
)

var ErrCartItemNotFound = errors.New("cart item not found")

type CartRepo struct{ db *sqlx.DB }

func NewCartRepo(db *sqlx.DB) *CartRepo { return &CartRepo{db: db} }

// CartLine is a cart item joined with the book it points at.
type CartLine struct {
	ItemID   int64 `db:"item_id"`
	Quantity int   `db:"quantity"`
	domain.Book
}

const cartLineSelect = `
  SELECT
    ci.id AS item_id, ci.quantity,
    b.id, b.title, b.author, b.price, b.isbn, b.description, b.cover_image,
    b.category_id, c.name AS category_name, b.publisher, b.publication_date,
    b.language, b.pages, b.stock, b.rating, b.format
  FROM cart_items ci
  JOIN books b ON b.id = ci.book_id
  JOIN categories c ON c.id = b.category_id`

// EnsureCart returns the user's cart id, creating the cart on first use.
func (r *CartRepo) EnsureCart(ctx context.Context, userID int64) (int64, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO carts(user_id) VALUES(?) ON CONFLICT(user_id) DO NOTHING`, userID); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM carts WHERE user_id = ?`, userID)
	return id, err
}

// UpsertItem adds qty of a book to the cart, merging with an existing line.
func (r *CartRepo) UpsertItem(ctx context.Context, cartID, bookID int64, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items(cart_id, book_id, quantity)
		VALUES(?, ?, ?)
		ON CONFLICT(cart_id, book_id) DO UPDATE
		SET quantity = cart_items.quantity + excluded.quantity
	`, cartID, bookID, qty)
	return err
}

func (r *CartRepo) Lines(ctx context.Context, cartID int64) ([]CartLine, error) {
	out := []CartLine{}
	err := r.db.SelectContext(ctx, &out, cartLineSelect+` WHERE ci.cart_id = ? ORDER BY ci.id`, cartID)
	return out, err
}

// SetQuantity changes a line's quantity. Lines outside cartID are reported as not found.
func (r *CartRepo) SetQuantity(ctx context.Context, cartID, itemID int64, qty int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = ? WHERE id = ? AND cart_id = ?`, qty, itemID, cartID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepo) DeleteItem(ctx context.Context, cartID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *CartRepo) HasItem(ctx context.Context, cartID, itemID int64) (bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}
