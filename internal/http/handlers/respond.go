package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"bookshop/internal/domain"
	applog "bookshop/internal/log"
	"bookshop/internal/validate"
)

type errorBody struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields,omitempty"`
}

func detail(err, sentinel error) string {
	return strings.TrimPrefix(err.Error(), sentinel.Error()+": ")
}

// ErrorHandler turns any error a handler returns into the JSON error shape.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	if status >= fiber.StatusInternalServerError {
		applog.Error(c, "server.error", err, nil)
	}
	return c.Status(status).JSON(body)
}

func classify(err error) (int, errorBody) {
	var ve *domain.ValidationError
	var fe *fiber.Error
	switch {
	case errors.As(err, &ve):
		b := errorBody{Error: "validation_error", Detail: ve.Msg}
		if ve.Field != "" {
			b.Fields = map[string]string{ve.Field: ve.Msg}
		}
		return fiber.StatusBadRequest, b
	case errors.Is(err, domain.ErrBadRequest):
		return fiber.StatusBadRequest, errorBody{Error: "bad_request", Detail: detail(err, domain.ErrBadRequest)}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, errorBody{Error: "unauthorized", Detail: detail(err, domain.ErrUnauthorized)}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, errorBody{Error: "forbidden", Detail: detail(err, domain.ErrForbidden)}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, errorBody{Error: "not_found", Detail: detail(err, domain.ErrNotFound)}
	case errors.As(err, &fe):
		kind := "error"
		switch fe.Code {
		case fiber.StatusNotFound:
			kind = "not_found"
		case fiber.StatusRequestEntityTooLarge:
			kind = "payload_too_large"
		case fiber.StatusTooManyRequests:
			kind = "rate_limited"
		case fiber.StatusMethodNotAllowed:
			kind = "method_not_allowed"
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			kind = "bad_request"
		}
		return fe.Code, errorBody{Error: kind, Detail: fe.Message}
	}
	return fiber.StatusInternalServerError, errorBody{Error: "internal_error", Detail: "something went wrong, please try again"}
}

// parseBody decodes a JSON body, reporting malformed input as a bad request.
func parseBody(c *fiber.Ctx, out any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return domain.BadRequest("malformed request body")
	}
	return nil
}

// isList reports whether the JSON body is an array.
func isList(c *fiber.Ctx) bool {
	b := strings.TrimSpace(string(c.Body()))
	return strings.HasPrefix(b, "[")
}

func pathID(c *fiber.Ctx, name, what string) (int64, error) {
	id, ok := validate.ID(c.Params(name))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": name})
		return 0, domain.NotFound(what + " not found")
	}
	return id, nil
}
