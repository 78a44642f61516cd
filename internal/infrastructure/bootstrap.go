package infrastructure

import (
	"context"
	"log/slog"
	"time"

	"cashbook/internal/config"
	"cashbook/internal/repository"
	"cashbook/internal/service"
	transportGRPC "cashbook/internal/transport/grpc"
	transportHTTP "cashbook/internal/transport/http"
	transportNATS "cashbook/internal/transport/nats"
	"cashbook/internal/worker"
)

const retryBase = 10 * time.Millisecond

// Bootstrap initialises all dependencies from config and wires up the application.
// Returns the App, a cleanup function, or an error.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, func(), error) {
	db, err := connectPostgres(cfg.DSN())
	if err != nil {
		return nil, nil, err
	}

	rdb, err := connectRedis(cfg.RedisAddr())
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	var cleanupFns []func()
	cleanupFns = append(cleanupFns, func() {
		db.Close()
		_ = rdb.Close()
	})

	store := repository.NewPostgresEventStore(db)
	balances := repository.NewBalanceRepo(rdb)
	newService := func(bus repository.MessageBus) service.AccountService {
		return service.NewAccounts(store, balances, bus,
			service.WithLogger(logger),
			service.WithRetries(uint64(cfg.CommandRetries), retryBase),
		)
	}

	// ── Infrastructure wiring ──────────────────────────────────────────────────
	var svc service.AccountService
	var servers []Server

	switch cfg.BusProvider {
	case "nats":
		nc, err := connectNats(cfg.NatsAddr())
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		cleanupFns = append(cleanupFns, nc.Close)

		svc = newService(transportNATS.NewBus(nc))

		// If worker is NATS, add the projection worker
		if cfg.WorkerProvider == "nats" {
			servers = append(servers, worker.NewProjectionWorker(svc, nc))
		}
		// NATS can also handle commands
		servers = append(servers, transportNATS.NewHandler(svc, nc))
		servers = append(servers, transportGRPC.NewServer(cfg.GRPCListenAddr(), svc))

	case "grpc":
		grpcBus, cleanup, err := transportGRPC.NewGrpcBusFromAddr(cfg.GRPCAddr())
		if err != nil {
			return nil, runCleanup(cleanupFns), err
		}
		cleanupFns = append(cleanupFns, cleanup)

		// The gRPC server doubles as the projection worker through EventService.Publish.
		svc = newService(grpcBus)
		servers = append(servers, transportGRPC.NewServer(cfg.GRPCListenAddr(), svc))
	}

	if addr, apiErr := cfg.ApiAddr(); apiErr == nil {
		servers = append(servers, transportHTTP.NewServer(addr, svc))
	} else {
		logger.Info("HTTP API not started", "reason", apiErr)
	}

	return NewApp(servers), runCleanup(cleanupFns), nil
}

// runCleanup returns a single function that calls all cleanup functions in reverse order.
func runCleanup(fns []func()) func() {
	return func() {
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
	}
}
