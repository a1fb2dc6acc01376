package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bookshop/internal/config"
	"bookshop/internal/events"
	"bookshop/internal/http/handlers"
	applog "bookshop/internal/log"
	"bookshop/internal/mail"
	"bookshop/internal/repos"
	"bookshop/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := applog.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	applog.SetLogger(logger)

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		logger.Fatal("db.open.fail", zap.Error(err))
	}
	defer db.Close()

	ext := handlers.External{Log: logger}

	// Optional Redis denylist; the SQL table is used otherwise.
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Fatal("redis.connect.fail", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		ext.Denylist = tokens.NewRedisDenylist(rdb)
		logger.Info("redis.connected", zap.String("addr", cfg.RedisAddr))
	}

	// Event publishing is best effort: a broker outage at startup disables it.
	if cfg.RabbitMQURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("events.connect.fail", zap.Error(err))
		} else {
			defer pub.Close()
			ext.Events = pub
		}
	}

	if cfg.SMTP.Host != "" {
		ext.Mail = &mail.SMTPSender{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}
	}

	if abs, err := filepath.Abs(cfg.MediaDir); err == nil {
		cfg.MediaDir = abs
	}
	if err := os.MkdirAll(cfg.MediaDir, 0o755); err != nil {
		logger.Fatal("media.dir.fail", zap.String("dir", cfg.MediaDir), zap.Error(err))
	}
	logger.Info("media.dir", zap.String("dir", cfg.MediaDir), zap.String("url", cfg.MediaBaseURL))

	app := handlers.NewApp(handlers.NewDeps(db, cfg, ext), cfg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Fatal("server.listen.fail", zap.Error(err))
		}
	}()
	logger.Info("server.started", zap.String("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server.shutdown")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server.shutdown.fail", zap.Error(err))
	}
}
