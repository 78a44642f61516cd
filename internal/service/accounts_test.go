package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cashbook/internal/account"
	"cashbook/internal/model"
	"cashbook/internal/repository"

	"github.com/google/uuid"
)

type mockBus struct {
	mu       sync.Mutex
	messages []model.EventMessage
	err      error
}

func (m *mockBus) Publish(topic string, data []byte) error {
	if topic != repository.EventsTopic {
		return errors.New("unexpected topic " + topic)
	}
	var msg model.EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

type balanceEntry struct {
	version int64
	balance int64
}

// memoryBalances mirrors the Redis scripts in memory.
type memoryBalances struct {
	entries map[uuid.UUID]balanceEntry
	resets  int
}

func newMemoryBalances() *memoryBalances {
	return &memoryBalances{entries: make(map[uuid.UUID]balanceEntry)}
}

func (m *memoryBalances) Apply(ctx context.Context, id uuid.UUID, version, delta int64) (bool, error) {
	e := m.entries[id]
	if version <= e.version {
		return false, nil
	}
	if version != e.version+1 {
		return false, repository.ErrProjectionGap
	}
	m.entries[id] = balanceEntry{version: version, balance: e.balance + delta}
	return true, nil
}

func (m *memoryBalances) Reset(ctx context.Context, id uuid.UUID, version, balance int64) error {
	m.resets++
	if version < m.entries[id].version {
		return nil
	}
	m.entries[id] = balanceEntry{version: version, balance: balance}
	return nil
}

func (m *memoryBalances) Get(ctx context.Context, id uuid.UUID) (*model.Balance, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, repository.ErrBalanceNotFound
	}
	return &model.Balance{AccountID: id.String(), Balance: e.balance, Version: e.version}, nil
}

// racingStore lets another writer append right before the first n appends.
type racingStore struct {
	*repository.MemoryEventStore
	races int
}

func (s *racingStore) Append(ctx context.Context, id uuid.UUID, expected int64, events []account.Event) ([]repository.Record, error) {
	if s.races > 0 {
		s.races--
		if _, err := s.MemoryEventStore.Append(ctx, id, expected, []account.Event{account.CashDeposited{AccountID: id, Amount: 1}}); err != nil {
			return nil, err
		}
	}
	return s.MemoryEventStore.Append(ctx, id, expected, events)
}

func newTestService(store repository.EventStore) (*Accounts, *mockBus, *memoryBalances) {
	bus := &mockBus{}
	balances := newMemoryBalances()
	svc := NewAccounts(store, balances, bus, WithRetries(3, time.Millisecond))
	return svc, bus, balances
}

func TestAccounts_OpenDepositWithdraw(t *testing.T) {
	ctx := context.Background()
	svc, bus, _ := newTestService(repository.NewMemoryEventStore())

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 20}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := svc.WithdrawCash(ctx, model.CashRequest{AccountID: id, Amount: 15}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := svc.WithdrawCash(ctx, model.CashRequest{AccountID: id, Amount: 6}); !errors.Is(err, account.ErrInvalidOperation) {
		t.Fatalf("expected overdraft, got %v", err)
	}

	want := []model.EventMessage{
		{AccountID: id, Version: 1, Type: account.TypeCreated},
		{AccountID: id, Version: 2, Type: account.TypeCashDeposited, Amount: 20},
		{AccountID: id, Version: 3, Type: account.TypeCashWithdrawn, Amount: 15},
	}
	if len(bus.messages) != len(want) {
		t.Fatalf("expected %d published events, got %d", len(want), len(bus.messages))
	}
	for i, w := range want {
		got := bus.messages[i]
		if got.AccountID != w.AccountID || got.Version != w.Version || got.Type != w.Type || got.Amount != w.Amount {
			t.Errorf("message %d: expected %+v, got %+v", i, w, got)
		}
	}

	for _, msg := range bus.messages {
		if err := svc.ProjectEvent(ctx, msg); err != nil {
			t.Fatalf("project: %v", err)
		}
	}
	balance, err := svc.GetBalance(ctx, id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 5 || balance.Version != 3 {
		t.Errorf("expected balance 5 at version 3, got %+v", balance)
	}
}

func TestAccounts_OpenAccountTwice(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(repository.NewMemoryEventStore())
	id := uuid.NewString()

	if _, err := svc.OpenAccount(ctx, model.OpenAccountRequest{AccountID: id}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.OpenAccount(ctx, model.OpenAccountRequest{AccountID: id}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestAccounts_InvalidInput(t *testing.T) {
	ctx := context.Background()
	svc, bus, _ := newTestService(repository.NewMemoryEventStore())

	if _, err := svc.OpenAccount(ctx, model.OpenAccountRequest{AccountID: uuid.Nil.String()}); !errors.Is(err, account.ErrInvalidArgument) {
		t.Errorf("nil id: expected ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.OpenAccount(ctx, model.OpenAccountRequest{AccountID: "not-a-uuid"}); !errors.Is(err, account.ErrInvalidArgument) {
		t.Errorf("bad id: expected ErrInvalidArgument, got %v", err)
	}
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: uuid.NewString(), Amount: 5}); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 0}); !errors.Is(err, account.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
	if len(bus.messages) != 1 {
		t.Errorf("rejected commands must not publish, got %d messages", len(bus.messages))
	}
}

func TestAccounts_RetriesOnConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryEventStore: repository.NewMemoryEventStore()}
	svc, _, _ := newTestService(store)

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	store.races = 2
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 10}); err != nil {
		t.Fatalf("expected deposit to succeed after retries, got %v", err)
	}

	records, _ := store.Load(ctx, uuid.MustParse(id))
	balance, version, err := repository.FoldBalance(records)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if balance != 12 || version != 4 {
		t.Errorf("expected balance 12 at version 4, got %d at %d", balance, version)
	}
}

func TestAccounts_GivesUpAfterRetries(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryEventStore: repository.NewMemoryEventStore()}
	svc, _, _ := newTestService(store)

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	store.races = 10
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 10}); !errors.Is(err, repository.ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
}

func TestAccounts_ProjectEventRebuildsOnGap(t *testing.T) {
	ctx := context.Background()
	svc, bus, balances := newTestService(repository.NewMemoryEventStore())

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for _, amount := range []int64{4, 6} {
		if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: amount}); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	// Only the last event reaches the projector.
	if err := svc.ProjectEvent(ctx, bus.messages[2]); err != nil {
		t.Fatalf("project: %v", err)
	}
	if balances.resets != 1 {
		t.Errorf("expected a rebuild, got %d resets", balances.resets)
	}

	// Replaying earlier events afterwards is a no-op.
	for _, msg := range bus.messages {
		if err := svc.ProjectEvent(ctx, msg); err != nil {
			t.Fatalf("project: %v", err)
		}
	}

	balance, err := svc.GetBalance(ctx, id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 10 || balance.Version != 3 {
		t.Errorf("expected balance 10 at version 3, got %+v", balance)
	}
}

func TestAccounts_GetBalanceBeforeProjection(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(repository.NewMemoryEventStore())

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 9}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	balance, err := svc.GetBalance(ctx, id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Balance != 9 {
		t.Errorf("expected 9, got %d", balance.Balance)
	}

	if _, err := svc.GetBalance(ctx, uuid.NewString()); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccounts_PublishFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc, bus, _ := newTestService(repository.NewMemoryEventStore())
	bus.err = errors.New("bus down")

	id, err := svc.OpenAccount(ctx, model.OpenAccountRequest{})
	if err != nil {
		t.Fatalf("open must succeed when publishing fails: %v", err)
	}
	if err := svc.DepositCash(ctx, model.CashRequest{AccountID: id, Amount: 1}); err != nil {
		t.Fatalf("deposit must succeed when publishing fails: %v", err)
	}
}
