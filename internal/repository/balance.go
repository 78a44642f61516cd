package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"cashbook/internal/account"
	"cashbook/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

//go:embed project.lua
var projectLuaScript string

//go:embed reset.lua
var resetLuaScript string

var (
	ErrBalanceNotFound = errors.New("balance not found in read model")
	ErrProjectionGap   = errors.New("read model is behind the event stream")
)

// BalanceReadModel is the query side for account balances.
type BalanceReadModel interface {
	Apply(ctx context.Context, accountID uuid.UUID, version, delta int64) (bool, error)
	Reset(ctx context.Context, accountID uuid.UUID, version, balance int64) error
	Get(ctx context.Context, accountID uuid.UUID) (*model.Balance, error)
}

var _ BalanceReadModel = (*BalanceRepo)(nil)

// BalanceRepo keeps one hash per account in Redis: balance and the last
// applied stream version.
type BalanceRepo struct {
	redisClient *redis.Client
}

func NewBalanceRepo(rdb *redis.Client) *BalanceRepo {
	return &BalanceRepo{redisClient: rdb}
}

func balanceKey(accountID uuid.UUID) string {
	return fmt.Sprintf("balance:%s", accountID)
}

// Apply adds delta if version directly follows the stored one. It reports
// false for an event that was already applied.
func (r *BalanceRepo) Apply(ctx context.Context, accountID uuid.UUID, version, delta int64) (bool, error) {
	keys := []string{balanceKey(accountID)}
	status, err := r.redisClient.Eval(ctx, projectLuaScript, keys, version, delta).Int64()
	if err != nil {
		return false, fmt.Errorf("error executing Lua script: %w", err)
	}

	switch status {
	case 1:
		return true, nil
	case 0:
		return false, nil
	case -1:
		return false, fmt.Errorf("%w: account %s at version %d", ErrProjectionGap, accountID, version)
	default:
		return false, fmt.Errorf("unknown status from Lua: %d", status)
	}
}

func (r *BalanceRepo) Reset(ctx context.Context, accountID uuid.UUID, version, balance int64) error {
	keys := []string{balanceKey(accountID)}
	if err := r.redisClient.Eval(ctx, resetLuaScript, keys, version, balance).Err(); err != nil {
		return fmt.Errorf("failed to reset balance in Redis: %w", err)
	}
	return nil
}

func (r *BalanceRepo) Get(ctx context.Context, accountID uuid.UUID) (*model.Balance, error) {
	fields, err := r.redisClient.HGetAll(ctx, balanceKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read balance from Redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrBalanceNotFound
	}

	balance, err := strconv.ParseInt(fields["balance"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt balance for %s: %w", accountID, err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt version for %s: %w", accountID, err)
	}

	return &model.Balance{
		AccountID: accountID.String(),
		Balance:   balance,
		Version:   version,
	}, nil
}

// Delta is the balance change implied by an event type and amount.
func Delta(eventType string, amount int64) int64 {
	switch eventType {
	case account.TypeCashDeposited:
		return amount
	case account.TypeCashWithdrawn:
		return -amount
	default:
		return 0
	}
}

// EventAmount is the amount carried by cash events, zero for the rest.
func EventAmount(e account.Event) int64 {
	switch event := e.(type) {
	case account.CashDeposited:
		return event.Amount
	case account.CashWithdrawn:
		return event.Amount
	default:
		return 0
	}
}

// FoldBalance computes the read-model balance of a stream from scratch.
func FoldBalance(records []Record) (int64, int64, error) {
	var balance, version int64
	for _, r := range records {
		e, err := DecodeEvent(r.Type, r.Payload)
		if err != nil {
			return 0, 0, err
		}
		balance += Delta(r.Type, EventAmount(e))
		version = r.Version
	}
	return balance, version, nil
}
