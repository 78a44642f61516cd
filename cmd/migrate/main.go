package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cashbook/internal/config"
	"cashbook/internal/repository"
)

const usage = `usage: migrate <command> [args]

commands:
  up           apply all pending migrations
  up-to N      apply migrations up to version N
  down         roll back the latest migration
  down-to N    roll back to version N
  redo         roll back and re-apply the latest migration
  status       print migration status
  version      print the current schema version`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.New()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	command, args := flag.Arg(0), flag.Args()[1:]
	if err := repository.RunMigrations(ctx, logger, cfg.DSN(), command, args...); err != nil {
		logger.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	logger.Info("migration finished", "command", command)
}
