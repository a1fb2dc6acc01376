package log

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var current atomic.Pointer[zap.Logger]

func init() { current.Store(zap.NewNop()) }

// New builds the production JSON logger for a service at the given level.
func New(service, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	lvl := zapcore.InfoLevel
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.InitialFields = map[string]interface{}{"service": service}

	return cfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// SetLogger replaces the logger used by the request helpers and returns the previous one.
func SetLogger(l *zap.Logger) *zap.Logger {
	return current.Swap(l)
}

func L() *zap.Logger { return current.Load() }

func requestFields(c *fiber.Ctx, action string, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+7)
	out = append(out, zap.String("action", action))
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
		if uid, ok := c.Locals("user_id").(int64); ok && uid != 0 {
			out = append(out, zap.Int64("user_id", uid))
		}
	}
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, requestFields(c, action, fields)...)
}

// Audit records a state change made on behalf of a user.
func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	L().Info(action, append(requestFields(c, action, fields), zap.String("kind", "audit"))...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	L().Warn(action, append(requestFields(c, action, fields), zap.String("kind", "security"))...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	L().Error(action, append(requestFields(c, action, fields), zap.Error(err))...)
}
