package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "bookshop/internal/log"
	"bookshop/internal/services"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

type categoryInput struct {
	Name string `json:"name"`
}

func (h *CategoryHandler) List(c *fiber.Ctx) error {
	cats, err := h.Catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(cats)
}

func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "category")
	if err != nil {
		return err
	}
	cat, err := h.Catalog.GetCategory(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(cat)
}

// Create accepts {"name": ...} or a list of such objects.
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var inputs []categoryInput
	many := isList(c)
	if many {
		if err := parseBody(c, &inputs); err != nil {
			return err
		}
	} else {
		var one categoryInput
		if err := parseBody(c, &one); err != nil {
			return err
		}
		inputs = []categoryInput{one}
	}
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	cats, err := h.Catalog.CreateCategories(c.UserContext(), names)
	if err != nil {
		return err
	}
	applog.Audit(c, "catalog.category.create", map[string]any{"count": len(cats)})
	if many {
		return c.Status(fiber.StatusCreated).JSON(cats)
	}
	return c.Status(fiber.StatusCreated).JSON(cats[0])
}

func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "category")
	if err != nil {
		return err
	}
	var in categoryInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	cat, err := h.Catalog.RenameCategory(c.UserContext(), id, in.Name)
	if err != nil {
		return err
	}
	applog.Audit(c, "catalog.category.update", map[string]any{"category_id": id})
	return c.JSON(cat)
}

func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "category")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteCategory(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "catalog.category.delete", map[string]any{"category_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}
