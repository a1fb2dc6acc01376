package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"bookshop/internal/catalogimport"
	"bookshop/internal/config"
	applog "bookshop/internal/log"
	"bookshop/internal/repos"
	"bookshop/internal/storage"
)

func main() {
	limit := flag.Int("limit", 10, "works fetched per subject")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := applog.New(cfg.ServiceName+"-import", cfg.LogLevel)
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	im := catalogimport.New(
		repos.NewCategoryRepo(db),
		repos.NewBookRepo(db),
		&storage.LocalStore{Dir: cfg.MediaDir, BaseURL: cfg.MediaBaseURL},
		logger,
	)
	im.Limit = *limit

	stats, err := im.Run(ctx)
	if err != nil {
		logger.Error("import.aborted", zap.Error(err))
	}
	logger.Info("import.done", zap.Int("added", stats.Added), zap.Int("skipped", stats.Skipped), zap.Int("failed", stats.Failed))
}
