package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"

	applog "bookshop/internal/log"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite serialises writers anyway, and ":memory:" databases are per-connection.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if err := seedCatalog(db); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	if err := seedUsers(db); err != nil {
		return nil, fmt.Errorf("seed users: %w", err)
	}
	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS users(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  email TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  is_staff INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS revoked_tokens(
  jti TEXT PRIMARY KEY,
  expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS categories(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name ON categories(LOWER(name));

-- Prices are decimal strings so totals stay exact.
CREATE TABLE IF NOT EXISTS books(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title TEXT NOT NULL,
  author TEXT NOT NULL,
  price TEXT NOT NULL,
  isbn TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  cover_image TEXT,
  category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
  publisher TEXT,
  publication_date TEXT,
  language TEXT NOT NULL DEFAULT 'English',
  pages INTEGER CHECK (pages IS NULL OR pages >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  rating TEXT,
  format TEXT NOT NULL DEFAULT 'Paperback' CHECK (format IN ('Hardcover','Paperback','Ebook'))
);
CREATE INDEX IF NOT EXISTS idx_books_category ON books(category_id);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(LOWER(title));
CREATE INDEX IF NOT EXISTS idx_books_author ON books(LOWER(author));

CREATE TABLE IF NOT EXISTS carts(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER UNIQUE REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS cart_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  cart_id INTEGER NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  UNIQUE(cart_id, book_id)
);

CREATE TABLE IF NOT EXISTS orders(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
  created_at TEXT NOT NULL,
  total_price TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN ('Pending','Completed','Cancelled'))
);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);

CREATE TABLE IF NOT EXISTS order_items(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  book_id INTEGER NOT NULL REFERENCES books(id) ON DELETE CASCADE,
  quantity INTEGER NOT NULL CHECK (quantity >= 1),
  price TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id);
`
	_, err := db.Exec(schema)
	return err
}

// SeedCategories are the subjects the catalog import tool maps to categories.
var SeedCategories = []string{
	"Fiction", "Non-Fiction", "Academic", "Science", "History", "Fantasy", "Biography", "Mystery",
}

// seedCatalog inserts the base categories and a few demo books. Safe to run on every startup.
func seedCatalog(db *sqlx.DB) error {
	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, name := range SeedCategories {
		if _, err := tx.Exec(`INSERT INTO categories(name) VALUES(?) ON CONFLICT DO NOTHING`, name); err != nil {
			return err
		}
	}

	books := []struct {
		title, author, price, isbn, category, format string
		stock                                        int
	}{
		{"The Hobbit", "J.R.R. Tolkien", "12.99", "OL26331930M", "Fantasy", "Paperback", 12},
		{"Pride and Prejudice", "Jane Austen", "9.50", "OL7353617M", "Fiction", "Hardcover", 7},
		{"A Brief History of Time", "Stephen Hawking", "18.00", "OL7284335M", "Science", "Paperback", 3},
		{"The Hound of the Baskervilles", "Arthur Conan Doyle", "7.25", "OL24182458M", "Mystery", "Ebook", 0},
	}
	for _, b := range books {
		if _, err := tx.Exec(`
			INSERT INTO books(title, author, price, isbn, description, category_id, language, stock, format)
			SELECT ?, ?, ?, ?, '', c.id, 'English', ?, ?
			FROM categories c WHERE c.name = ?
			ON CONFLICT(isbn) DO NOTHING
		`, b.title, b.author, b.price, b.isbn, b.stock, b.format, b.category); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SeedPassword is the password of the demo accounts created by seedUsers.
const SeedPassword = "Passw0rd!"

// seedUsers ensures one staff and one regular account exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	users := []struct {
		email, first string
		staff        bool
	}{
		{"admin@bookshop.test", "Admin", true},
		{"reader@bookshop.test", "Reader", false},
	}

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range users {
		res, err := tx.Exec(`
			INSERT INTO users(email, password_hash, first_name, is_staff, is_active)
			VALUES(?, ?, ?, ?, 1)
			ON CONFLICT DO NOTHING
		`, u.email, string(hash), u.first, u.staff)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			applog.L().Info("seed.user", zap.String("email", u.email), zap.Bool("is_staff", u.staff))
		}
	}
	return tx.Commit()
}
