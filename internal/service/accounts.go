package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashbook/internal/account"
	"cashbook/internal/model"
	"cashbook/internal/repository"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)

var _ AccountService = (*Accounts)(nil)

// Accounts runs one unit of work per command: load the stream, rehydrate,
// execute, append the new events under the loaded version and publish them.
type Accounts struct {
	store    repository.EventStore
	balances repository.BalanceReadModel
	bus      repository.MessageBus
	logger   *slog.Logger

	retries   uint64
	retryBase time.Duration
}

type Option func(*Accounts)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Accounts) {
		s.logger = logger
	}
}

// WithRetries sets how many times a command is retried after losing an
// optimistic-concurrency race.
func WithRetries(retries uint64, base time.Duration) Option {
	return func(s *Accounts) {
		s.retries = retries
		s.retryBase = base
	}
}

func NewAccounts(store repository.EventStore, balances repository.BalanceReadModel, bus repository.MessageBus, opts ...Option) *Accounts {
	s := &Accounts{
		store:     store,
		balances:  balances,
		bus:       bus,
		logger:    slog.Default(),
		retries:   3,
		retryBase: 10 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Accounts) OpenAccount(ctx context.Context, req model.OpenAccountRequest) (string, error) {
	accountID := uuid.New()
	if req.AccountID != "" {
		id, err := parseID(req.AccountID)
		if err != nil {
			return "", err
		}
		accountID = id
	}

	acc, err := account.New(accountID, account.WithLogger(s.logger))
	if err != nil {
		return "", err
	}

	records, err := s.store.Append(ctx, accountID, 0, acc.ExtractNewEvents())
	if errors.Is(err, repository.ErrConcurrencyConflict) {
		return "", fmt.Errorf("%w: %s", ErrAccountExists, accountID)
	}
	if err != nil {
		return "", err
	}

	s.publish(ctx, records)
	return accountID.String(), nil
}

func (s *Accounts) DepositCash(ctx context.Context, req model.CashRequest) error {
	accountID, err := parseID(req.AccountID)
	if err != nil {
		return err
	}
	return s.execute(ctx, accountID, func(acc *account.Account) error {
		return acc.DepositCash(req.Amount)
	})
}

func (s *Accounts) WithdrawCash(ctx context.Context, req model.CashRequest) error {
	accountID, err := parseID(req.AccountID)
	if err != nil {
		return err
	}
	return s.execute(ctx, accountID, func(acc *account.Account) error {
		return acc.WithdrawCash(req.Amount)
	})
}

// GetBalance reads the projection. A stream the projection has not seen yet
// is folded on demand.
func (s *Accounts) GetBalance(ctx context.Context, accountID string) (*model.Balance, error) {
	id, err := parseID(accountID)
	if err != nil {
		return nil, err
	}

	balance, err := s.balances.Get(ctx, id)
	if !errors.Is(err, repository.ErrBalanceNotFound) {
		return balance, err
	}

	s.logger.Info("balance not projected yet, rebuilding from event store", "account_id", id)
	if err := s.rebuild(ctx, id); err != nil {
		return nil, err
	}
	return s.balances.Get(ctx, id)
}

// ProjectEvent applies a published event to the balance read model.
// Duplicates are ignored; a gap triggers a rebuild from the event store.
func (s *Accounts) ProjectEvent(ctx context.Context, event model.EventMessage) error {
	id, err := parseID(event.AccountID)
	if err != nil {
		return err
	}

	applied, err := s.balances.Apply(ctx, id, event.Version, repository.Delta(event.Type, event.Amount))
	if errors.Is(err, repository.ErrProjectionGap) {
		s.logger.Warn("projection gap detected, rebuilding",
			"account_id", id,
			"version", event.Version,
		)
		return s.rebuild(ctx, id)
	}
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Debug("event already projected", "account_id", id, "version", event.Version)
	}
	return nil
}

func (s *Accounts) execute(ctx context.Context, accountID uuid.UUID, command func(*account.Account) error) error {
	var records []repository.Record

	backoff := retry.WithMaxRetries(s.retries, retry.NewExponential(s.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		history, err := s.store.Load(ctx, accountID)
		if err != nil {
			return err
		}
		events, version, err := repository.History(history)
		if err != nil {
			return err
		}

		acc := account.Rehydrate(events, account.WithLogger(s.logger))
		if acc.ID() == uuid.Nil {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
		}
		if err := command(acc); err != nil {
			return err
		}

		changes := acc.ExtractNewEvents()
		if len(changes) == 0 {
			return nil
		}

		records, err = s.store.Append(ctx, accountID, version, changes)
		if errors.Is(err, repository.ErrConcurrencyConflict) {
			s.logger.Warn("concurrent write, retrying command",
				"account_id", accountID,
				"version", version,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	s.publish(ctx, records)
	return nil
}

// publish is best effort: the event store is the source of truth and the
// projection repairs itself from it on the next gap.
func (s *Accounts) publish(ctx context.Context, records []repository.Record) {
	if s.bus == nil {
		return
	}

	for _, r := range records {
		e, err := repository.DecodeEvent(r.Type, r.Payload)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to decode appended event", "error", err)
			continue
		}
		msg := model.EventMessage{
			AccountID:  r.AccountID.String(),
			Version:    r.Version,
			Type:       r.Type,
			Amount:     repository.EventAmount(e),
			OccurredAt: r.OccurredAt,
		}
		data, err := json.Marshal(msg)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to marshal event message", "error", err)
			continue
		}
		if err := s.bus.Publish(repository.EventsTopic, data); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish event",
				"account_id", msg.AccountID,
				"version", msg.Version,
				"error", err,
			)
		}
	}
}

func (s *Accounts) rebuild(ctx context.Context, accountID uuid.UUID) error {
	records, err := s.store.Load(ctx, accountID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}

	balance, version, err := repository.FoldBalance(records)
	if err != nil {
		return err
	}
	return s.balances.Reset(ctx, accountID, version, balance)
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: account id %q: %v", account.ErrInvalidArgument, raw, err)
	}
	return id, nil
}
