package repository

import (
	"context"
	"errors"
	"testing"

	"cashbook/internal/account"

	"github.com/google/uuid"
)

func TestDecodeEvent_UnknownType(t *testing.T) {
	e, err := DecodeEvent("account.frozen", []byte(`{"account_id":"x","reason":"kyc"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	unknown, ok := e.(UnknownEvent)
	if !ok {
		t.Fatalf("expected UnknownEvent, got %T", e)
	}
	if unknown.EventType() != "account.frozen" {
		t.Errorf("unexpected type %q", unknown.EventType())
	}

	eventType, payload, err := EncodeEvent(unknown)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eventType != "account.frozen" || string(payload) != `{"account_id":"x","reason":"kyc"}` {
		t.Errorf("unknown event not passed through: %s %s", eventType, payload)
	}
}

func TestDecodeEvent_BadPayload(t *testing.T) {
	if _, err := DecodeEvent(account.TypeCashDeposited, []byte(`{"amount":"ten"}`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestMemoryEventStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	id := uuid.New()

	records, err := store.Append(ctx, id, 0, []account.Event{
		account.Created{AccountID: id},
		account.CashDeposited{AccountID: id, Amount: 10},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || records[0].Version != 1 || records[1].Version != 2 {
		t.Fatalf("unexpected versions: %+v", records)
	}

	if _, err := store.Append(ctx, id, 1, []account.Event{account.CashDeposited{AccountID: id, Amount: 1}}); !errors.Is(err, ErrConcurrencyConflict) {
		t.Fatalf("expected ErrConcurrencyConflict, got %v", err)
	}
	if _, err := store.Append(ctx, id, 2, nil); !errors.Is(err, ErrNothingToAppend) {
		t.Fatalf("expected ErrNothingToAppend, got %v", err)
	}

	loaded, err := store.Load(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, version, err := History(loaded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if version != 2 || len(events) != 2 {
		t.Fatalf("expected 2 events at version 2, got %d at %d", len(events), version)
	}
	if d, ok := events[1].(account.CashDeposited); !ok || d.Amount != 10 || d.AccountID != id {
		t.Errorf("unexpected event %#v", events[1])
	}
}

func TestMemoryEventStore_LoadMissing(t *testing.T) {
	records, err := NewMemoryEventStore().Load(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty stream, got %d", len(records))
	}
}

func TestFoldBalance(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	id := uuid.New()

	_, err := store.Append(ctx, id, 0, []account.Event{
		account.Created{AccountID: id},
		account.CashDeposited{AccountID: id, Amount: 30},
		UnknownEvent{Type: "account.renamed", Payload: []byte(`{}`)},
		account.CashWithdrawn{AccountID: id, Amount: 12},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, _ := store.Load(ctx, id)
	balance, version, err := FoldBalance(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 18 || version != 4 {
		t.Errorf("expected balance 18 at version 4, got %d at %d", balance, version)
	}
}

func TestHistory_ReplaysIntoAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEventStore()
	id := uuid.New()

	_, err := store.Append(ctx, id, 0, []account.Event{
		account.Created{AccountID: id},
		account.CashDeposited{AccountID: id, Amount: 5},
		UnknownEvent{Type: "account.interest_accrued", Payload: []byte(`{"amount":100}`)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, _ := store.Load(ctx, id)
	events, _, err := History(records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := account.Rehydrate(events)
	if err := a.WithdrawCash(6); !errors.Is(err, account.ErrInvalidOperation) {
		t.Fatalf("unknown event must not change balance, got %v", err)
	}
	if err := a.WithdrawCash(5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
