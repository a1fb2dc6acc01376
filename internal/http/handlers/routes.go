package handlers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookshop/internal/config"
	applog "bookshop/internal/log"
	"bookshop/internal/metrics"
)

const bodyLimit = 1 << 20 // 1 MiB

func authLimiter(cfg config.Config, name string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        cfg.AuthRateLimit,
		Expiration: 10 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|" + name
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate."+name+".hit", nil)
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, please try again later")
		},
	})
}

// NewApp builds the HTTP application with middleware and every route.
func NewApp(d *Deps, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      cfg.ServiceName,
		BodyLimit:    bodyLimit,
		ErrorHandler: ErrorHandler,
	})

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(helmet.New(helmet.Config{CrossOriginResourcePolicy: "cross-origin"}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
	app.Use(metrics.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			p := c.Path()
			return strings.HasPrefix(p, "/media/") || p == "/healthz" || p == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.global.hit", nil)
			return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded, retry soon")
		},
	}))

	// ---------- Infra ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	mountMedia(app, cfg.MediaDir)

	app.Use(Authenticate(d.Auth))

	// ---------- Accounts ----------
	a := d.AuthHandler
	users := app.Group("/api/accounts/users")
	users.Post("/register", Guard("accounts.register"), a.Register)
	users.Post("/login", authLimiter(cfg, "login"), Guard("accounts.login"), a.Login)
	users.Post("/logout", Guard("accounts.logout"), a.Logout)
	users.Get("/verify_token", Guard("accounts.verify_token"), a.VerifyToken)
	users.Post("/token/refresh", Guard("accounts.token_refresh"), a.Refresh)
	users.Post("/password_reset_request", authLimiter(cfg, "reset"), Guard("accounts.password_reset_link"), a.PasswordResetRequest)
	users.Patch("/reset-password/:uidb64/:token", Guard("accounts.password_reset_commit"), a.PasswordResetConfirm)
	users.Post("/password_reset_request_otp", authLimiter(cfg, "otp"), Guard("accounts.password_reset_otp"), a.PasswordResetRequestOTP)
	users.Post("/password_reset", Guard("accounts.password_reset"), a.PasswordResetOTP)

	// ---------- Catalog ----------
	store := app.Group("/api/books-store")
	b := d.BookHandler
	store.Get("/books", Guard("catalog.books.list"), b.List)
	store.Post("/books", Guard("catalog.books.create"), b.Create)
	store.Get("/books/:id", Guard("catalog.books.get"), b.Get)
	store.Get("/books/:id/availability", Guard("catalog.books.availability"), b.Availability)
	store.Put("/books/:id", Guard("catalog.books.update"), b.Update)
	store.Patch("/books/:id", Guard("catalog.books.update"), b.Update)
	store.Delete("/books/:id", Guard("catalog.books.delete"), b.Delete)
	store.Post("/books/:id/cover", Guard("catalog.books.cover"), b.UploadCover)

	cat := d.CategoryHandler
	store.Get("/categories", Guard("catalog.categories.list"), cat.List)
	store.Post("/categories", Guard("catalog.categories.create"), cat.Create)
	store.Get("/categories/:id", Guard("catalog.categories.get"), cat.Get)
	store.Put("/categories/:id", Guard("catalog.categories.update"), cat.Update)
	store.Patch("/categories/:id", Guard("catalog.categories.update"), cat.Update)
	store.Delete("/categories/:id", Guard("catalog.categories.delete"), cat.Delete)

	// ---------- Cart & Orders ----------
	ch := d.CartHandler
	cart := app.Group("/api/cart/cart")
	cart.Get("/", Guard("cart.view"), ch.View)
	cart.Post("/add_item", Guard("cart.add_item"), ch.AddItem)
	cart.Patch("/:id/update_item", Guard("cart.update_item"), ch.UpdateItem)
	cart.Delete("/:id/remove_item", Guard("cart.remove_item"), ch.RemoveItem)

	oh := d.OrderHandler
	orders := app.Group("/api/orders/orders")
	orders.Get("/", Guard("orders.list"), oh.List)
	orders.Post("/place_order", Guard("orders.place"), oh.Place)
	orders.Get("/:id", Guard("orders.get"), oh.Get)
	orders.Patch("/:id/update_status", Guard("orders.update_status"), oh.UpdateStatus)

	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "not found")
	})
	return app
}

// mountMedia serves stored covers, refusing traversal attempts.
func mountMedia(app *fiber.App, mediaDir string) {
	if abs, err := filepath.Abs(mediaDir); err == nil {
		mediaDir = abs
	}
	app.Get("/media/*", func(c *fiber.Ctx) error {
		path := c.Params("*")
		rawLower := strings.ToLower(path)
		if strings.Contains(rawLower, "..") || strings.Contains(rawLower, "%2e") || strings.Contains(rawLower, "\x00") {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		clean := filepath.Clean(path)
		if clean == "." || strings.Contains(clean, "..") || filepath.IsAbs(clean) {
			applog.Security(c, "media.traversal.block", map[string]any{"path": path})
			return c.SendStatus(fiber.StatusNotFound)
		}
		return c.SendFile(filepath.Join(mediaDir, clean), true)
	})
}
