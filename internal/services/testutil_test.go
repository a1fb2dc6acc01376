package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"bookshop/internal/domain"
	"bookshop/internal/events"
	"bookshop/internal/mail"
	"bookshop/internal/repos"
	"bookshop/internal/services"
	"bookshop/internal/storage"
	"bookshop/internal/tokens"
)

type recorder struct {
	mu  sync.Mutex
	got []events.Event
	err error
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, e)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.got))
	for i, e := range r.got {
		out[i] = e.EventType
	}
	return out
}

type env struct {
	db      *sqlx.DB
	auth    *services.AuthService
	catalog *services.CatalogService
	cart    *services.CartService
	orders  *services.OrderService
	link    *services.LinkReset
	otp     *services.OTPReset
	outbox  *mail.Outbox
	events  *recorder
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	e := &env{db: db, outbox: &mail.Outbox{}, events: &recorder{}, now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return e.now }

	users := repos.NewUserRepo(db)
	books := repos.NewBookRepo(db)
	e.auth = services.NewAuthService(users, tokens.NewIssuer("test", 15*time.Minute, time.Hour).WithClock(clock), repos.NewRevokedTokenRepo(db).WithClock(clock))
	e.catalog = services.NewCatalogService(repos.NewCategoryRepo(db), books, &storage.LocalStore{Dir: t.TempDir(), BaseURL: "/media"})
	e.cart = services.NewCartService(repos.NewCartRepo(db), books)
	e.orders = services.NewOrderService(repos.NewOrderRepo(db), e.events)
	e.orders.Now = clock
	e.link = &services.LinkReset{Users: users, Tokens: tokens.NewLinkTokenGenerator("test", 72*time.Hour).WithClock(clock), Mail: e.outbox, LinkBase: "http://localhost:3000/reset-password"}
	e.otp = &services.OTPReset{Users: users, Signer: tokens.NewOTPSigner("test", 300*time.Second).WithClock(clock), Mail: e.outbox, Echo: true}
	return e
}

func (e *env) user(t *testing.T, email string) *domain.User {
	t.Helper()
	u, err := e.auth.Register(context.Background(), services.RegisterInput{
		Email: email, Password: "Passw0rd!", ConfirmPassword: "Passw0rd!",
	}, nil)
	require.NoError(t, err)
	return u
}

func (e *env) staff(t *testing.T) *domain.User {
	t.Helper()
	u, err := repos.NewUserRepo(e.db).ByEmail(context.Background(), "admin@bookshop.test")
	require.NoError(t, err)
	return u
}

// bookByISBN returns one of the seeded books.
func (e *env) bookByISBN(t *testing.T, isbn string) domain.Book {
	t.Helper()
	var id int64
	require.NoError(t, e.db.Get(&id, `SELECT id FROM books WHERE isbn = ?`, isbn))
	b, err := e.catalog.GetBook(context.Background(), id)
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T { return &v }
