package handlers

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"bookshop/internal/domain"
	applog "bookshop/internal/log"
	"bookshop/internal/services"
)

type Capability int

const (
	Anonymous Capability = iota
	Authenticated
	Staff
)

func (c Capability) String() string {
	switch c {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	}
	return "staff"
}

// Policy maps every routed operation to the capability it requires.
var Policy = map[string]Capability{
	"accounts.register":              Anonymous,
	"accounts.login":                 Anonymous,
	"accounts.token_refresh":         Anonymous,
	"accounts.password_reset_link":   Anonymous,
	"accounts.password_reset_commit": Anonymous,
	"accounts.password_reset_otp":    Anonymous,
	"accounts.password_reset":        Anonymous,
	"accounts.logout":                Authenticated,
	"accounts.verify_token":          Authenticated,

	"catalog.books.list":          Anonymous,
	"catalog.books.get":           Anonymous,
	"catalog.books.availability":  Anonymous,
	"catalog.books.create":        Staff,
	"catalog.books.update":        Staff,
	"catalog.books.delete":        Staff,
	"catalog.books.cover":         Staff,
	"catalog.categories.list":     Anonymous,
	"catalog.categories.get":      Anonymous,
	"catalog.categories.create":   Staff,
	"catalog.categories.update":   Staff,
	"catalog.categories.delete":   Staff,

	"cart.view":        Authenticated,
	"cart.add_item":    Authenticated,
	"cart.update_item": Authenticated,
	"cart.remove_item": Authenticated,

	"orders.list":          Authenticated,
	"orders.get":           Authenticated,
	"orders.place":         Authenticated,
	"orders.update_status": Authenticated,
}

// CurrentUser returns the user resolved by Authenticate, or nil.
func CurrentUser(c *fiber.Ctx) *domain.User {
	u, _ := c.Locals("user").(*domain.User)
	return u
}

// Authenticate resolves a bearer token when one is sent. A bad token fails the
// request even on anonymous routes.
func Authenticate(auth *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		h := c.Get(fiber.HeaderAuthorization)
		if h == "" {
			return c.Next()
		}
		raw, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			applog.Security(c, "auth.token.malformed", nil)
			return domain.Unauthorized("authorization header must be 'Bearer <token>'")
		}
		u, err := auth.Authenticate(c.UserContext(), strings.TrimSpace(raw))
		if err != nil {
			applog.Security(c, "auth.token.invalid", nil)
			return err
		}
		c.Locals("user", u)
		c.Locals("user_id", u.ID)
		return c.Next()
	}
}

// Guard enforces the policy entry for op. Unknown operations panic at route
// registration.
func Guard(op string) fiber.Handler {
	need, ok := Policy[op]
	if !ok {
		panic(fmt.Sprintf("handlers: no policy for operation %q", op))
	}
	return func(c *fiber.Ctx) error {
		c.Locals("op", op)
		if need == Anonymous {
			return c.Next()
		}
		u := CurrentUser(c)
		if u == nil {
			return domain.Unauthorized("authentication credentials were not provided")
		}
		if need == Staff && !u.IsStaff {
			applog.Security(c, "access.denied.staff", map[string]any{"op": op})
			return fmt.Errorf("%w: you do not have permission to perform this action", domain.ErrForbidden)
		}
		return c.Next()
	}
}
