package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshop/internal/domain"
	"bookshop/internal/events"
	"bookshop/internal/services"
)

func TestAddItemMergesLines(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "cart@bookshop.test")
	b := e.bookByISBN(t, "OL26331930M")

	_, err := e.cart.AddItem(ctx, u.ID, b.ID, 1)
	require.NoError(t, err)
	cart, err := e.cart.AddItem(ctx, u.ID, b.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, "38.97", cart.TotalPrice.StringFixed(2))

	_, err = e.cart.AddItem(ctx, u.ID, 9999, 1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = e.cart.AddItem(ctx, u.ID, b.ID, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestConcurrentAddItemKeepsOneLine(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "race@bookshop.test")
	b := e.bookByISBN(t, "OL26331930M")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.cart.AddItem(ctx, u.ID, b.ID, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := e.cart.View(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 8, cart.Items[0].Quantity)
}

func TestCartTotalTracksCurrentPrices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "live@bookshop.test")
	hobbit := e.bookByISBN(t, "OL26331930M")
	austen := e.bookByISBN(t, "OL7353617M")

	_, err := e.cart.AddItem(ctx, u.ID, hobbit.ID, 2)
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, u.ID, austen.ID, 1)
	require.NoError(t, err)

	_, err = e.catalog.UpdateBook(ctx, hobbit.ID, services.BookInput{Price: ptr(decimal.RequireFromString("20.00"))})
	require.NoError(t, err)

	cart, err := e.cart.View(ctx, u.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, it := range cart.Items {
		sum = sum.Add(it.Book.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	assert.True(t, sum.Equal(cart.TotalPrice))
	assert.Equal(t, "49.50", cart.TotalPrice.StringFixed(2))
}

func TestUpdateAndRemoveItemOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.user(t, "alice@bookshop.test")
	bob := e.user(t, "bob@bookshop.test")
	b := e.bookByISBN(t, "OL26331930M")

	cart, err := e.cart.AddItem(ctx, alice.ID, b.ID, 1)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	_, err = e.cart.UpdateItem(ctx, bob.ID, itemID, ptr(5))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.cart.RemoveItem(ctx, bob.ID, itemID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	cart, err = e.cart.UpdateItem(ctx, alice.ID, itemID, ptr(5))
	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)

	cart, err = e.cart.RemoveItem(ctx, alice.ID, itemID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.True(t, cart.TotalPrice.IsZero())
}

func TestPlaceOrderOnEmptyCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "empty@bookshop.test")

	_, err := e.orders.Place(ctx, u, "")
	require.ErrorIs(t, err, domain.ErrValidation)

	orders, err := e.orders.List(ctx, u)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Empty(t, e.events.types())
}

func TestPlaceOrderSnapshotsCart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := e.user(t, "buyer@bookshop.test")
	hobbit := e.bookByISBN(t, "OL26331930M")
	austen := e.bookByISBN(t, "OL7353617M")

	_, err := e.cart.AddItem(ctx, u.ID, hobbit.ID, 2)
	require.NoError(t, err)
	before, err := e.cart.AddItem(ctx, u.ID, austen.ID, 1)
	require.NoError(t, err)

	order, err := e.orders.Place(ctx, u, "req-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, order.Status)
	assert.True(t, before.TotalPrice.Equal(order.TotalPrice))
	require.Len(t, order.Items, 2)
	assert.Equal(t, "12.99", order.Items[0].Price.StringFixed(2))

	after, err := e.cart.View(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, after.Items)
	assert.Equal(t, before.ID, after.ID, "cart row persists")

	// later price changes do not touch the placed order
	_, err = e.catalog.UpdateBook(ctx, hobbit.ID, services.BookInput{Price: ptr(decimal.RequireFromString("99.00"))})
	require.NoError(t, err)
	stored, err := e.orders.Get(ctx, u, order.ID)
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(stored.TotalPrice))
	assert.Equal(t, "12.99", stored.Items[0].Price.StringFixed(2))
	assert.Equal(t, "99.00", stored.Items[0].Book.Price.StringFixed(2))

	assert.Equal(t, []string{events.TypeOrderPlaced}, e.events.types())
}

func TestPlaceOrderSurvivesPublishFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.events.err = assert.AnError
	u := e.user(t, "flaky@bookshop.test")
	_, err := e.cart.AddItem(ctx, u.ID, e.bookByISBN(t, "OL26331930M").ID, 1)
	require.NoError(t, err)

	order, err := e.orders.Place(ctx, u, "")
	require.NoError(t, err)
	_, err = e.orders.Get(ctx, u, order.ID)
	assert.NoError(t, err)
}

func TestOrderVisibilityAndStatus(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.user(t, "owner@bookshop.test")
	other := e.user(t, "other@bookshop.test")
	staff := e.staff(t)

	_, err := e.cart.AddItem(ctx, owner.ID, e.bookByISBN(t, "OL26331930M").ID, 1)
	require.NoError(t, err)
	order, err := e.orders.Place(ctx, owner, "")
	require.NoError(t, err)

	_, err = e.orders.Get(ctx, other, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.orders.UpdateStatus(ctx, other, order.ID, "Cancelled", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := e.orders.List(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, list)
	list, err = e.orders.List(ctx, staff)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = e.orders.UpdateStatus(ctx, owner, order.ID, "Shipped", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	unchanged, err := e.orders.Get(ctx, owner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, unchanged.Status)

	updated, err := e.orders.UpdateStatus(ctx, staff, order.ID, "Completed", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
	assert.Contains(t, e.events.types(), events.TypeOrderStatusChanged)
}
