package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "orders_placed_total",
		Help:      "Orders created from carts.",
	})

	OrderStatusUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "order_status_updates_total",
		Help:      "Order status changes by new status.",
	}, []string{"status"})

	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bookshop",
		Name:      "auth_events_total",
		Help:      "Authentication events by kind.",
	}, []string{"kind"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bookshop",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Auth event kinds.
const (
	LoginSuccess = "login_success"
	LoginFail    = "login_fail"
	Logout       = "logout"
	ResetRequest = "reset_request"
	ResetConfirm = "reset_confirm"
)

func Auth(kind string) { AuthEvents.WithLabelValues(kind).Inc() }

// Middleware observes request latency labelled by the matched route pattern.
// Errors are rendered here through the app's error handler so the recorded
// status matches what the client receives.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}
		// fiber strings alias the request buffer, which is reused once the
		// handler returns.
		method := utils.CopyString(c.Method())
		route := utils.CopyString(c.Route().Path)
		status := strconv.Itoa(c.Response().StatusCode())
		httpDuration.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
		return nil
	}
}
