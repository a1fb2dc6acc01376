package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"bookshop/internal/domain"
	applog "bookshop/internal/log"
	"bookshop/internal/services"
	"bookshop/internal/validate"
)

type BookHandler struct {
	Catalog *services.CatalogService
}

func (h *BookHandler) List(c *fiber.Ctx) error {
	page, size := validate.Page(c.Query("page"), c.Query("page_size"))
	q := services.BookQuery{
		Q:         c.Query("q"),
		Author:    c.Query("author"),
		Language:  c.Query("language"),
		Format:    c.Query("format"),
		MinPrice:  c.Query("min_price"),
		MaxPrice:  c.Query("max_price"),
		MinRating: c.Query("min_rating"),
		Page:      page,
		PageSize:  size,
	}
	if raw := c.Query("category"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "category", "value": raw})
			return domain.Invalid("category", "enter a valid category id")
		}
		q.CategoryID = id
	}
	res, err := h.Catalog.ListBooks(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (h *BookHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "book")
	if err != nil {
		return err
	}
	b, err := h.Catalog.GetBook(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(b)
}

func (h *BookHandler) Availability(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "book")
	if err != nil {
		return err
	}
	a, err := h.Catalog.Availability(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// Create accepts one book object or a list of them.
func (h *BookHandler) Create(c *fiber.Ctx) error {
	var inputs []services.BookInput
	many := isList(c)
	if many {
		if err := parseBody(c, &inputs); err != nil {
			return err
		}
	} else {
		var one services.BookInput
		if err := parseBody(c, &one); err != nil {
			return err
		}
		inputs = []services.BookInput{one}
	}
	books, err := h.Catalog.CreateBooks(c.UserContext(), inputs)
	if err != nil {
		return err
	}
	applog.Audit(c, "catalog.book.create", map[string]any{"count": len(books)})
	if many {
		return c.Status(fiber.StatusCreated).JSON(books)
	}
	return c.Status(fiber.StatusCreated).JSON(books[0])
}

func (h *BookHandler) Update(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "book")
	if err != nil {
		return err
	}
	var in services.BookInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	b, err := h.Catalog.UpdateBook(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	applog.Audit(c, "catalog.book.update", map[string]any{"book_id": id})
	return c.JSON(b)
}

func (h *BookHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "book")
	if err != nil {
		return err
	}
	if err := h.Catalog.DeleteBook(c.UserContext(), id); err != nil {
		return err
	}
	applog.Audit(c, "catalog.book.delete", map[string]any{"book_id": id})
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadCover takes a multipart "cover_image" file.
func (h *BookHandler) UploadCover(c *fiber.Ctx) error {
	id, err := pathID(c, "id", "book")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("cover_image")
	if err != nil {
		return domain.Invalid("cover_image", "no file was submitted")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	b, cover, err := h.Catalog.SetCover(c.UserContext(), id, data)
	if err != nil {
		return err
	}
	applog.Audit(c, "catalog.book.cover", map[string]any{"book_id": id, "bytes": len(data)})
	return c.JSON(fiber.Map{"book": b, "cover": cover})
}
