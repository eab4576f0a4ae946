package main

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/prestonh/lcr-backend/internal/config"
	"github.com/prestonh/lcr-backend/internal/httpapi"
	"github.com/prestonh/lcr-backend/internal/hub"
	"github.com/prestonh/lcr-backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database unavailable", zap.Error(err))
		}
		st = pg
	} else {
		logger.Warn("DATABASE_URL not set, state will not survive restarts")
		st = store.NewMemory()
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, hub.Deps{
		Store:    st,
		Log:      logger,
		BotDelay: time.Duration(cfg.BotThinkMS) * time.Millisecond,
	})

	handler := httpapi.SetupRoutes(h, logger)

	logger.Info("listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var zcfg zap.Config
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zcfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
