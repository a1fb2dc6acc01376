package domain

import "github.com/shopspring/decimal"

type CartItem struct {
	ID       int64           `json:"id"`
	Book     Book            `json:"book"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Cart is recomputed on every read; TotalPrice tracks the current book prices.
type Cart struct {
	ID         int64           `json:"id"`
	UserID     *int64          `json:"user"`
	Items      []CartItem      `json:"items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}
