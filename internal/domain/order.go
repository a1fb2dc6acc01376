package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusCompleted OrderStatus = "Completed"
	StatusCancelled OrderStatus = "Cancelled"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case StatusPending, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

type OrderItem struct {
	ID       int64           `json:"id"`
	Book     Book            `json:"book"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type Order struct {
	ID         int64           `json:"id"`
	UserID     *int64          `json:"user"`
	CreatedAt  time.Time       `json:"created_at"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
	Items      []OrderItem     `json:"items"`
}
