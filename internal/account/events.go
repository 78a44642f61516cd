package account

import "github.com/google/uuid"

// Event type names, stable across versions. Serializers key on these.
const (
	TypeCreated       = "account.created"
	TypeCashDeposited = "account.cash_deposited"
	TypeCashWithdrawn = "account.cash_withdrawn"
)

// Event is a domain event. The set of variants is open: types this package
// does not know about are skipped during replay.
type Event interface {
	EventType() string
}

// Created marks the birth of an account.
type Created struct {
	AccountID uuid.UUID `json:"account_id"`
}

func (Created) EventType() string { return TypeCreated }

// CashDeposited records a deposit in minor currency units.
type CashDeposited struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
}

func (CashDeposited) EventType() string { return TypeCashDeposited }

// CashWithdrawn records a withdrawal in minor currency units.
type CashWithdrawn struct {
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
}

func (CashWithdrawn) EventType() string { return TypeCashWithdrawn }
