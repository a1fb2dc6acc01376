package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "bookshop/internal/log"
	"bookshop/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

func requestID(c *fiber.Ctx) string {
	rid, _ := c.Locals("requestid").(string)
	return rid
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	orders, err := h.Orders.List(c.UserContext(), CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(orders)
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "order")
	if err != nil {
		return err
	}
	o, err := h.Orders.Get(c.UserContext(), CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(o)
}

func (h *OrderHandler) Place(c *fiber.Ctx) error {
	o, err := h.Orders.Place(c.UserContext(), CurrentUser(c), requestID(c))
	if err != nil {
		applog.Info(c, "order.place.fail", map[string]any{"reason": err.Error()})
		return err
	}
	applog.Audit(c, "order.place", map[string]any{"order_id": o.ID, "total": o.TotalPrice.String(), "items": len(o.Items)})
	return c.Status(fiber.StatusCreated).JSON(o)
}

func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "order")
	if err != nil {
		return err
	}
	in := struct {
		Status string `json:"status"`
	}{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), CurrentUser(c), id, in.Status, requestID(c))
	if err != nil {
		applog.Security(c, "order.status.fail", map[string]any{"order_id": id, "status": in.Status})
		return err
	}
	applog.Audit(c, "order.status", map[string]any{"order_id": id, "status": string(o.Status)})
	return c.JSON(o)
}
