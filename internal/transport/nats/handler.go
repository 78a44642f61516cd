package nats

import (
	"context"
	"encoding/json"
	"log/slog"

	"cashbook/internal/model"
	"cashbook/internal/service"

	"github.com/nats-io/nats.go"
)

const (
	SubjectOpen     = "accounts.commands.open"
	SubjectDeposit  = "accounts.commands.deposit"
	SubjectWithdraw = "accounts.commands.withdraw"

	commandQueue = "account_group"
)

// Handler subscribes to NATS command subjects and delegates to the account service.
// Every command is answered with a model.CommandResult when the sender asked for a reply.
type Handler struct {
	svc  service.AccountService
	nc   *nats.Conn
	subs []*nats.Subscription
}

func NewHandler(svc service.AccountService, nc *nats.Conn) *Handler {
	return &Handler{svc: svc, nc: nc}
}

// Start subscribes to command subjects and blocks until ctx is cancelled (graceful shutdown).
func (h *Handler) Start(ctx context.Context) error {
	handlers := map[string]func(context.Context, []byte) model.CommandResult{
		SubjectOpen:     h.open,
		SubjectDeposit:  h.deposit,
		SubjectWithdraw: h.withdraw,
	}

	for subject, handle := range handlers {
		sub, err := h.nc.QueueSubscribe(subject, commandQueue, callback(ctx, handle))
		if err != nil {
			return err
		}
		h.subs = append(h.subs, sub)
	}

	slog.Info("NATS command handler is running")

	// Block until context is cancelled.
	<-ctx.Done()
	slog.Info("NATS command handler shutting down, draining subscriptions...")

	for _, s := range h.subs {
		_ = s.Drain()
	}
	return nil
}

func (h *Handler) Stop(ctx context.Context) error {
	for _, s := range h.subs {
		_ = s.Unsubscribe()
	}
	return nil
}

func (h *Handler) open(ctx context.Context, data []byte) model.CommandResult {
	var req model.OpenAccountRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return invalidJSON(err)
	}
	id, err := h.svc.OpenAccount(ctx, req)
	return result(id, err)
}

func (h *Handler) deposit(ctx context.Context, data []byte) model.CommandResult {
	var req model.CashRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return invalidJSON(err)
	}
	return result(req.AccountID, h.svc.DepositCash(ctx, req))
}

func (h *Handler) withdraw(ctx context.Context, data []byte) model.CommandResult {
	var req model.CashRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return invalidJSON(err)
	}
	return result(req.AccountID, h.svc.WithdrawCash(ctx, req))
}

func result(accountID string, err error) model.CommandResult {
	if err != nil {
		return model.CommandResult{
			AccountID:    accountID,
			ErrorCode:    service.ErrorCode(err),
			ErrorMessage: err.Error(),
		}
	}
	return model.CommandResult{AccountID: accountID, Success: true}
}

func invalidJSON(err error) model.CommandResult {
	return model.CommandResult{ErrorCode: service.CodeInvalidArgument, ErrorMessage: "invalid_json: " + err.Error()}
}

// callback detaches from ctx cancellation so commands delivered while the
// subscription drains still run to completion.
func callback(ctx context.Context, handle func(context.Context, []byte) model.CommandResult) nats.MsgHandler {
	ctx = context.WithoutCancel(ctx)
	return func(m *nats.Msg) {
		result := handle(ctx, m.Data)
		if !result.Success {
			slog.Error("nats: command failed",
				"subject", m.Subject,
				"account_id", result.AccountID,
				"error", result.ErrorMessage,
			)
		}
		reply(m, result)
	}
}

func reply(m *nats.Msg, res model.CommandResult) {
	if m.Reply == "" {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		slog.Error("nats: failed to marshal reply", "error", err)
		return
	}
	if err := m.Respond(data); err != nil {
		slog.Error("nats: failed to send reply", "subject", m.Subject, "error", err)
	}
}
