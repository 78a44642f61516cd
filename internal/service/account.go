package service

import (
	"context"

	"cashbook/internal/model"
)

// AccountService defines the business operations on accounts.
// All transport layers (HTTP, gRPC, NATS) depend on this interface, not on the concrete service.
type AccountService interface {
	OpenAccount(ctx context.Context, req model.OpenAccountRequest) (string, error)
	DepositCash(ctx context.Context, req model.CashRequest) error
	WithdrawCash(ctx context.Context, req model.CashRequest) error
	GetBalance(ctx context.Context, accountID string) (*model.Balance, error)
	ProjectEvent(ctx context.Context, event model.EventMessage) error
}
