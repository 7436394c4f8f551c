package main

import (
	"log/slog"
	"os"

	"go-tour-auth/internal/app"
	"go-tour-auth/internal/config"
	"go-tour-auth/internal/logger"
)

func main() {
	// Pretty output until the environment is known.
	slog.SetDefault(logger.New(os.Stdout, false, slog.LevelInfo))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.IsProduction(), slog.LevelInfo))

	application, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
