package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cashbook/internal/config"
	"cashbook/internal/infrastructure"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}

	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := infrastructure.Bootstrap(ctx, cfg, logger)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("cashbook is running", "bus", cfg.BusProvider, "grpc", cfg.GRPCListenAddr())
	if err := app.Run(ctx); err != nil {
		logger.Error("application stopped with error", "error", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info("cashbook stopped")
}
