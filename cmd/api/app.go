package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/theatre-api/internal/config"
	"github.com/jwalitptl/theatre-api/internal/repository/postgres"
	"github.com/jwalitptl/theatre-api/pkg/logger"
)

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfig()
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Console: cfg.Environment == "development",
		Service: "theatre-api",
	})
}

func openDB(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
