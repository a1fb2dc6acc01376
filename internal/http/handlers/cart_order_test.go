package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cartJSON struct {
	ID    int64 `json:"id"`
	Items []struct {
		ID       int64    `json:"id"`
		Book     bookJSON `json:"book"`
		Quantity int      `json:"quantity"`
		Subtotal string   `json:"subtotal"`
	} `json:"items"`
	TotalPrice string `json:"total_price"`
}

type orderJSON struct {
	ID         int64  `json:"id"`
	User       int64  `json:"user"`
	Status     string `json:"status"`
	TotalPrice string `json:"total_price"`
	Items      []struct {
		Quantity int    `json:"quantity"`
		Price    string `json:"price"`
	} `json:"items"`
}

func TestCartLifecycle(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.readerToken(t)
	hobbit := ta.bookIDByISBN(t, "OL26331930M")

	resp, raw := ta.do(t, "GET", "/api/cart/cart", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decode[cartJSON](t, raw).Items)

	resp, raw = ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": hobbit}, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	resp, raw = ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": hobbit, "quantity": 2}, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	cart := decode[cartJSON](t, raw)
	require.Len(t, cart.Items, 1, "same book merges into one line")
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assertMoney(t, "38.97", cart.TotalPrice)

	item := itoa(cart.Items[0].ID)
	resp, raw = ta.do(t, "PATCH", "/api/cart/cart/"+item+"/update_item", map[string]any{"quantity": 1}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assertMoney(t, "12.99", decode[cartJSON](t, raw).TotalPrice)

	resp, raw = ta.do(t, "PATCH", "/api/cart/cart/"+item+"/update_item", map[string]any{"quantity": 0}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, raw).Fields, "quantity")

	resp, raw = ta.do(t, "DELETE", "/api/cart/cart/"+item+"/remove_item", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.Empty(t, decode[cartJSON](t, raw).Items)
}

func TestCartItemsArePrivate(t *testing.T) {
	ta := newTestApp(t)
	reader := ta.readerToken(t)
	other := ta.register(t, "other@bookshop.test")

	_, raw := ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": ta.bookIDByISBN(t, "OL7353617M")}, reader)
	item := itoa(decode[cartJSON](t, raw).Items[0].ID)

	resp, raw := ta.do(t, "PATCH", "/api/cart/cart/"+item+"/update_item", map[string]any{"quantity": 5}, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "item not found in cart", decode[errorBody](t, raw).Detail)

	resp, _ = ta.do(t, "DELETE", "/api/cart/cart/"+item+"/remove_item", nil, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddItemRejectsUnknownBookAndBadQuantity(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.readerToken(t)

	resp, raw := ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": 99999}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, raw).Fields, "book_id")

	resp, raw = ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": ta.bookIDByISBN(t, "OL7353617M"), "quantity": -2}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decode[errorBody](t, raw).Fields, "quantity")
}

func TestAddItemReadsBookIDField(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.readerToken(t)
	hobbit := ta.bookIDByISBN(t, "OL26331930M")

	resp, raw := ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": hobbit, "quantity": 1}, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	cart := decode[cartJSON](t, raw)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, hobbit, cart.Items[0].Book.ID)

	for name, body := range map[string]map[string]any{
		"book_id":  {"book": hobbit},
		"quantity": {"book_id": hobbit, "quantity": 1000},
	} {
		resp, raw := ta.do(t, "POST", "/api/cart/cart/add_item", body, tok)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
		assert.Contains(t, decode[errorBody](t, raw).Fields, name)
	}
}

func TestPlaceOrderFreezesPricesAndEmptiesCart(t *testing.T) {
	ta := newTestApp(t)
	tok := ta.readerToken(t)
	hobbit := ta.bookIDByISBN(t, "OL26331930M")
	austen := ta.bookIDByISBN(t, "OL7353617M")

	ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": hobbit, "quantity": 2}, tok)
	ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": austen}, tok)

	resp, raw := ta.do(t, "POST", "/api/orders/orders/place_order", nil, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "body=%s", raw)
	order := decode[orderJSON](t, raw)
	assert.Equal(t, "Pending", order.Status)
	assertMoney(t, "35.48", order.TotalPrice)
	assert.Len(t, order.Items, 2)

	_, raw = ta.do(t, "GET", "/api/cart/cart", nil, tok)
	assert.Empty(t, decode[cartJSON](t, raw).Items)

	// later price changes do not touch the placed order
	staff := ta.staffToken(t)
	resp, _ = ta.do(t, "PATCH", "/api/books-store/books/"+itoa(hobbit), map[string]any{"price": "99.00"}, staff)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_, raw = ta.do(t, "GET", "/api/orders/orders/"+itoa(order.ID), nil, tok)
	assertMoney(t, "35.48", decode[orderJSON](t, raw).TotalPrice)

	resp, raw = ta.do(t, "POST", "/api/orders/orders/place_order", nil, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Cart is empty", decode[errorBody](t, raw).Detail)
}

func TestOrderVisibilityAndStatus(t *testing.T) {
	ta := newTestApp(t)
	reader := ta.readerToken(t)
	other := ta.register(t, "other@bookshop.test")
	staff := ta.staffToken(t)

	ta.do(t, "POST", "/api/cart/cart/add_item", map[string]any{"book_id": ta.bookIDByISBN(t, "OL7353617M")}, reader)
	_, raw := ta.do(t, "POST", "/api/orders/orders/place_order", nil, reader)
	id := itoa(decode[orderJSON](t, raw).ID)

	resp, raw := ta.do(t, "GET", "/api/orders/orders/"+id, nil, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Order not found", decode[errorBody](t, raw).Detail)

	_, raw = ta.do(t, "GET", "/api/orders/orders", nil, other)
	assert.Empty(t, decode[[]orderJSON](t, raw))

	// hidden orders stay hidden even with a bogus status
	resp, _ = ta.do(t, "PATCH", "/api/orders/orders/"+id+"/update_status", map[string]string{"status": "Shipped"}, other)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, raw = ta.do(t, "PATCH", "/api/orders/orders/"+id+"/update_status", map[string]string{"status": "Shipped"}, reader)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status", decode[errorBody](t, raw).Detail)

	resp, raw = ta.do(t, "PATCH", "/api/orders/orders/"+id+"/update_status", map[string]string{"status": "Cancelled"}, reader)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.Equal(t, "Cancelled", decode[orderJSON](t, raw).Status)

	_, raw = ta.do(t, "GET", "/api/orders/orders", nil, staff)
	assert.Len(t, decode[[]orderJSON](t, raw), 1)
	resp, raw = ta.do(t, "PATCH", "/api/orders/orders/"+id+"/update_status", map[string]string{"status": "Completed"}, staff)
	require.Equal(t, http.StatusOK, resp.StatusCode, "body=%s", raw)
	assert.Equal(t, "Completed", decode[orderJSON](t, raw).Status)
}
