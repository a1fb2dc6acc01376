package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"bookshop/internal/domain"
	"bookshop/internal/events"
	applog "bookshop/internal/log"
	"bookshop/internal/metrics"
	"bookshop/internal/repos"
)

const publishTimeout = 3 * time.Second

type OrderService struct {
	Orders *repos.OrderRepo
	Events events.Publisher
	Now    func() time.Time
}

func NewOrderService(orders *repos.OrderRepo, pub events.Publisher) *OrderService {
	return &OrderService{Orders: orders, Events: pub, Now: time.Now}
}

// scope returns the owner filter for viewer: staff see every order.
func scope(viewer *domain.User) *int64 {
	if viewer.IsStaff {
		return nil
	}
	id := viewer.ID
	return &id
}

// Place converts the user's cart into a Pending order and empties the cart.
func (s *OrderService) Place(ctx context.Context, user *domain.User, correlationID string) (domain.Order, error) {
	order, err := s.Orders.CreateFromCart(ctx, user.ID, s.Now())
	if errors.Is(err, repos.ErrEmptyCart) {
		return domain.Order{}, domain.Invalid("", "Cart is empty")
	}
	if err != nil {
		return domain.Order{}, err
	}
	metrics.OrdersPlaced.Inc()
	s.publish(ctx, events.New(events.TypeOrderPlaced, correlationID, map[string]any{
		"order_id":    order.ID,
		"user_id":     user.ID,
		"total_price": order.TotalPrice.String(),
		"item_count":  len(order.Items),
	}))
	return order, nil
}

func (s *OrderService) List(ctx context.Context, viewer *domain.User) ([]domain.Order, error) {
	return s.Orders.List(ctx, scope(viewer))
}

func (s *OrderService) Get(ctx context.Context, viewer *domain.User, id int64) (domain.Order, error) {
	o, err := s.Orders.Get(ctx, id, scope(viewer))
	if errors.Is(err, repos.ErrOrderNotFound) {
		return o, domain.NotFound("Order not found")
	}
	return o, err
}

// UpdateStatus reports orders outside the viewer's scope as not found before
// looking at the requested status.
func (s *OrderService) UpdateStatus(ctx context.Context, viewer *domain.User, id int64, status, correlationID string) (domain.Order, error) {
	before, err := s.Get(ctx, viewer, id)
	if err != nil {
		return domain.Order{}, err
	}
	st, ok := domain.ParseOrderStatus(status)
	if !ok {
		return domain.Order{}, domain.Invalid("status", "Invalid status")
	}
	if err := s.Orders.UpdateStatus(ctx, id, scope(viewer), st); err != nil {
		if errors.Is(err, repos.ErrOrderNotFound) {
			return domain.Order{}, domain.NotFound("Order not found")
		}
		return domain.Order{}, err
	}
	metrics.OrderStatusUpdates.WithLabelValues(string(st)).Inc()
	s.publish(ctx, events.New(events.TypeOrderStatusChanged, correlationID, map[string]any{
		"order_id":   id,
		"old_status": string(before.Status),
		"new_status": string(st),
		"changed_by": viewer.ID,
	}))
	before.Status = st
	return before, nil
}

// publish never fails the caller; the order is already committed.
func (s *OrderService) publish(ctx context.Context, e events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Events.Publish(ctx, e); err != nil {
		applog.L().Error("events.publish.fail",
			zap.String("event_type", e.EventType), zap.String("event_id", e.EventID), zap.Error(err))
	}
}
