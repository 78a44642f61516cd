package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"cashbook/internal/model"
	"cashbook/internal/repository"
	"cashbook/internal/service"

	"github.com/nats-io/nats.go"
)

const projectionQueue = "projection_group"

// ProjectionWorker listens on the account events topic and keeps the
// balance read model up to date.
type ProjectionWorker struct {
	svc      service.AccountService
	natsConn *nats.Conn
}

func NewProjectionWorker(svc service.AccountService, nc *nats.Conn) *ProjectionWorker {
	return &ProjectionWorker{
		svc:      svc,
		natsConn: nc,
	}
}

// Run subscribes to the events topic and blocks until ctx is cancelled.
func (w *ProjectionWorker) Run(ctx context.Context) error {
	// Each message goes to one member of the queue group. Within this
	// subscription callbacks run one at a time.
	sub, err := w.natsConn.QueueSubscribe(repository.EventsTopic, projectionQueue, w.callback(ctx))
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	slog.Info("Projection worker is running")

	// Wait for shutdown signal.
	<-ctx.Done()

	slog.Info("Worker received shutdown signal, draining subscription...")
	// Close subscription gracefully, waiting for current processing to complete.
	return sub.Drain()
}

// callback detaches from ctx cancellation: messages still delivered while
// the subscription drains are projected in full.
func (w *ProjectionWorker) callback(ctx context.Context) nats.MsgHandler {
	ctx = context.WithoutCancel(ctx)
	return func(m *nats.Msg) {
		w.handle(ctx, m.Data)
	}
}

func (w *ProjectionWorker) handle(ctx context.Context, data []byte) {
	var event model.EventMessage
	if err := json.Unmarshal(data, &event); err != nil {
		slog.Error("worker: failed to unmarshal nats message", "error", err)
		return
	}

	if err := w.svc.ProjectEvent(ctx, event); err != nil {
		slog.Error("worker: failed to project event",
			"account_id", event.AccountID,
			"version", event.Version,
			"error", err,
		)
		return
	}

	slog.Debug("worker: event projected",
		"account_id", event.AccountID,
		"version", event.Version,
	)
}

// Start implements the infrastructure.Server interface.
func (w *ProjectionWorker) Start(ctx context.Context) error {
	return w.Run(ctx)
}

// Stop implements the infrastructure.Server interface (no-op, shutdown is via ctx).
func (w *ProjectionWorker) Stop(ctx context.Context) error {
	return nil
}
