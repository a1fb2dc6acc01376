package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName  string
	Port         string
	DBDSN        string
	MediaDir     string
	MediaBaseURL string
	LogLevel     string
	CORSOrigins  string
	// RateLimit is the per-IP request budget per minute; AuthRateLimit the
	// budget per ten minutes for login and reset requests.
	RateLimit     int
	AuthRateLimit int

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	ResetLinkBase string
	ResetLinkTTL  time.Duration
	OTPTTL        time.Duration
	// OTPEcho returns the generated code to the caller of the OTP request.
	OTPEcho bool

	SMTP SMTPConfig

	RedisAddr   string
	RabbitMQURL string
}

type SMTPConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	From     string
}

func defaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "bookshop")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_DSN", "bookshop.db")
	v.SetDefault("MEDIA_DIR", "./media")
	v.SetDefault("MEDIA_BASE_URL", "/media")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT", 60)
	v.SetDefault("AUTH_RATE_LIMIT", 5)
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("RESET_LINK_BASE", "http://localhost:3000/reset-password")
	v.SetDefault("RESET_LINK_TTL", "72h")
	v.SetDefault("OTP_TTL", "300s")
	v.SetDefault("OTP_ECHO", true)
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_FROM", "noreply@example.com")
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)
	cfg := fromViper(v)
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: JWT_SECRET must be set")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 || cfg.OTPTTL <= 0 || cfg.ResetLinkTTL <= 0 {
		return cfg, errors.New("config: token lifetimes must be positive")
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ServiceName:     v.GetString("SERVICE_NAME"),
		Port:            v.GetString("PORT"),
		DBDSN:           v.GetString("DB_DSN"),
		MediaDir:        v.GetString("MEDIA_DIR"),
		MediaBaseURL:    strings.TrimRight(v.GetString("MEDIA_BASE_URL"), "/"),
		LogLevel:        strings.ToLower(v.GetString("LOG_LEVEL")),
		CORSOrigins:     v.GetString("CORS_ORIGINS"),
		RateLimit:       v.GetInt("RATE_LIMIT"),
		AuthRateLimit:   v.GetInt("AUTH_RATE_LIMIT"),
		JWTSecret:       v.GetString("JWT_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		ResetLinkBase:   strings.TrimRight(v.GetString("RESET_LINK_BASE"), "/"),
		ResetLinkTTL:    v.GetDuration("RESET_LINK_TTL"),
		OTPTTL:          v.GetDuration("OTP_TTL"),
		OTPEcho:         v.GetBool("OTP_ECHO"),
		SMTP: SMTPConfig{
			Host:     v.GetString("SMTP_HOST"),
			Port:     v.GetString("SMTP_PORT"),
			User:     v.GetString("SMTP_USER"),
			Password: v.GetString("SMTP_PASSWORD"),
			From:     v.GetString("SMTP_FROM"),
		},
		RedisAddr:   v.GetString("REDIS_ADDR"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
	}
}

// Test returns the defaults with an in-memory database, for wiring test apps.
func Test() Config {
	v := viper.New()
	defaults(v)
	cfg := fromViper(v)
	cfg.DBDSN = ":memory:"
	cfg.JWTSecret = "test-secret"
	cfg.RateLimit = 10000
	cfg.AuthRateLimit = 10000
	return cfg
}
