package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "bookshop/internal/log"
	"bookshop/internal/services"
	"bookshop/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) View(c *fiber.Ctx) error {
	cart, err := h.Cart.View(c.UserContext(), CurrentUser(c).ID)
	if err != nil {
		return err
	}
	return c.JSON(cart)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	in := struct {
		BookID   int64 `json:"book_id" validate:"required"`
		Quantity *int  `json:"quantity" validate:"omitnil,min=1,max=999"`
	}{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	cart, err := h.Cart.AddItem(c.UserContext(), CurrentUser(c).ID, in.BookID, qty)
	if err != nil {
		return err
	}
	applog.Audit(c, "cart.add", map[string]any{"book_id": in.BookID, "qty": qty})
	return c.Status(fiber.StatusCreated).JSON(cart)
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "item")
	if err != nil {
		return err
	}
	in := struct {
		Quantity *int `json:"quantity" validate:"omitnil,min=1,max=999"`
	}{}
	if err := parseBody(c, &in); err != nil {
		return err
	}
	if err := validate.Struct(in); err != nil {
		return err
	}
	cart, err := h.Cart.UpdateItem(c.UserContext(), CurrentUser(c).ID, id, in.Quantity)
	if err != nil {
		return err
	}
	applog.Audit(c, "cart.update", map[string]any{"item_id": id})
	return c.JSON(cart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "item")
	if err != nil {
		return err
	}
	cart, err := h.Cart.RemoveItem(c.UserContext(), CurrentUser(c).ID, id)
	if err != nil {
		return err
	}
	applog.Audit(c, "cart.remove", map[string]any{"item_id": id})
	return c.JSON(cart)
}
