package repos

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"bookshop/internal/domain"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyCart     = errors.New("cart is empty")
)

type OrderRepo struct{ db *sqlx.DB }

func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

type orderRow struct {
	ID         int64           `db:"id"`
	UserID     sql.NullInt64   `db:"user_id"`
	CreatedAt  string          `db:"created_at"`
	TotalPrice decimal.Decimal `db:"total_price"`
	Status     string          `db:"status"`
}

func (o orderRow) toDomain() domain.Order {
	out := domain.Order{
		ID:         o.ID,
		TotalPrice: o.TotalPrice,
		Status:     domain.OrderStatus(o.Status),
		Items:      []domain.OrderItem{},
	}
	if o.UserID.Valid {
		uid := o.UserID.Int64
		out.UserID = &uid
	}
	out.CreatedAt, _ = time.Parse(time.RFC3339Nano, o.CreatedAt)
	return out
}

type orderLine struct {
	ItemID    int64           `db:"item_id"`
	OrderID   int64           `db:"order_id"`
	Quantity  int             `db:"quantity"`
	ItemPrice decimal.Decimal `db:"item_price"`
	domain.Book
}

const orderLineSelect = `
  SELECT
    oi.id AS item_id, oi.order_id, oi.quantity, oi.price AS item_price,
    b.id, b.title, b.author, b.price, b.isbn, b.description, b.cover_image,
    b.category_id, c.name AS category_name, b.publisher, b.publication_date,
    b.language, b.pages, b.stock, b.rating, b.format
  FROM order_items oi
  JOIN books b ON b.id = oi.book_id
  JOIN categories c ON c.id = b.category_id`

// CreateFromCart turns the user's cart into a Pending order in one transaction.
// Line prices are frozen to the book prices read inside the transaction and
// the cart is left empty. Returns ErrEmptyCart when there is nothing to order.
func (r *OrderRepo) CreateFromCart(ctx context.Context, userID int64, now time.Time) (domain.Order, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var cartID int64
	err = tx.GetContext(ctx, &cartID, `SELECT id FROM carts WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, ErrEmptyCart
	}
	if err != nil {
		return domain.Order{}, err
	}

	lines := []CartLine{}
	if err := tx.SelectContext(ctx, &lines, cartLineSelect+` WHERE ci.cart_id = ? ORDER BY ci.id`, cartID); err != nil {
		return domain.Order{}, err
	}
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyCart
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	created := now.UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders(user_id, created_at, total_price, status)
		VALUES(?, ?, ?, ?)
	`, userID, created.Format(time.RFC3339Nano), total.String(), string(domain.StatusPending))
	if err != nil {
		return domain.Order{}, err
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return domain.Order{}, err
	}

	uid := userID
	order := domain.Order{
		ID:         orderID,
		UserID:     &uid,
		CreatedAt:  created,
		TotalPrice: total,
		Status:     domain.StatusPending,
		Items:      make([]domain.OrderItem, 0, len(lines)),
	}
	for _, l := range lines {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO order_items(order_id, book_id, quantity, price)
			VALUES(?, ?, ?, ?)
		`, orderID, l.Book.ID, l.Quantity, l.Price.String())
		if err != nil {
			return domain.Order{}, err
		}
		itemID, err := res.LastInsertId()
		if err != nil {
			return domain.Order{}, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ID: itemID, Book: l.Book, Quantity: l.Quantity, Price: l.Price,
		})
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// List returns orders newest first. A nil owner lists every order.
func (r *OrderRepo) List(ctx context.Context, owner *int64) ([]domain.Order, error) {
	q := `SELECT id, user_id, created_at, total_price, status FROM orders`
	args := []any{}
	if owner != nil {
		q += ` WHERE user_id = ?`
		args = append(args, *owner)
	}
	q += ` ORDER BY id DESC`

	rows := []orderRow{}
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []domain.Order{}, nil
	}

	ids := make([]int64, len(rows))
	byID := make(map[int64]int, len(rows))
	out := make([]domain.Order, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
		byID[row.ID] = i
		out[i] = row.toDomain()
	}

	lq, largs, err := sqlx.In(orderLineSelect+` WHERE oi.order_id IN (?) ORDER BY oi.id`, ids)
	if err != nil {
		return nil, err
	}
	lines := []orderLine{}
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(lq), largs...); err != nil {
		return nil, err
	}
	for _, l := range lines {
		i := byID[l.OrderID]
		out[i].Items = append(out[i].Items, l.toItem())
	}
	return out, nil
}

// Get loads one order with its items. With a non-nil owner, orders of other
// users are reported as not found.
func (r *OrderRepo) Get(ctx context.Context, id int64, owner *int64) (domain.Order, error) {
	q := `SELECT id, user_id, created_at, total_price, status FROM orders WHERE id = ?`
	args := []any{id}
	if owner != nil {
		q += ` AND user_id = ?`
		args = append(args, *owner)
	}
	var row orderRow
	err := r.db.GetContext(ctx, &row, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}

	order := row.toDomain()
	lines := []orderLine{}
	if err := r.db.SelectContext(ctx, &lines, orderLineSelect+` WHERE oi.order_id = ? ORDER BY oi.id`, id); err != nil {
		return domain.Order{}, err
	}
	for _, l := range lines {
		order.Items = append(order.Items, l.toItem())
	}
	return order, nil
}

// UpdateStatus sets the status of an order visible to owner (nil for staff).
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, owner *int64, status domain.OrderStatus) error {
	q := `UPDATE orders SET status = ? WHERE id = ?`
	args := []any{string(status), id}
	if owner != nil {
		q += ` AND user_id = ?`
		args = append(args, *owner)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (l orderLine) toItem() domain.OrderItem {
	return domain.OrderItem{ID: l.ItemID, Book: l.Book, Quantity: l.Quantity, Price: l.ItemPrice}
}
