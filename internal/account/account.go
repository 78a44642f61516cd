// Package account holds the write side of the account domain: an
// event-sourced aggregate that validates commands and records new events.
//
// State is never exposed. Callers rehydrate from stored history, run a
// command, then take the new events with ExtractNewEvents and persist them.
package account

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Account is the aggregate root. It is not safe for concurrent use; each
// instance belongs to a single unit of work.
type Account struct {
	id      uuid.UUID
	balance int64

	changes []Event
	logger  *slog.Logger
}

type Option func(*Account)

// WithLogger reports events skipped during replay at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Account) {
		a.logger = logger
	}
}

// New opens a brand-new account and raises Created.
func New(id uuid.UUID, opts ...Option) (*Account, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: empty account id is not allowed", ErrInvalidArgument)
	}

	a := newAccount(opts)
	a.raise(Created{AccountID: id})
	return a, nil
}

// Rehydrate folds previously persisted events into a new aggregate, in the
// order given. Nothing is recorded as a new event and nothing is validated.
func Rehydrate(history []Event, opts ...Option) *Account {
	a := newAccount(opts)
	for _, e := range history {
		a.apply(e)
	}
	return a
}

func newAccount(opts []Option) *Account {
	a := &Account{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ID returns the account id, or uuid.Nil if the history had no Created event.
func (a *Account) ID() uuid.UUID {
	return a.id
}

func (a *Account) DepositCash(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: can't deposit 0 or negative money (%d)", ErrOutOfRange, amount)
	}

	a.raise(CashDeposited{AccountID: a.id, Amount: amount})
	return nil
}

// WithdrawCash refuses any withdrawal that would leave the balance negative.
func (a *Account) WithdrawCash(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: can't withdraw 0 or negative money (%d)", ErrOutOfRange, amount)
	}
	if a.balance-amount < 0 {
		return fmt.Errorf("%w: overdraft", ErrInvalidOperation)
	}

	a.raise(CashWithdrawn{AccountID: a.id, Amount: amount})
	return nil
}

// ExtractNewEvents returns the events raised since construction or the
// previous call, and forgets them.
func (a *Account) ExtractNewEvents() []Event {
	events := make([]Event, len(a.changes))
	copy(events, a.changes)
	a.changes = a.changes[:0]
	return events
}

func (a *Account) raise(e Event) {
	a.changes = append(a.changes, e)
	a.apply(e)
}

// apply is the only place state changes. It must not fail.
//
// Events are value types; pointers to the known events are dereferenced and a
// nil pointer is dropped like any other unhandled event.
func (a *Account) apply(e Event) {
	switch event := e.(type) {
	case Created:
		if a.id != uuid.Nil {
			a.skip(e, "account already created")
			return
		}
		a.id = event.AccountID
	case CashDeposited:
		if event.AccountID != a.id {
			a.skip(e, "event targets another account")
			return
		}
		a.balance += event.Amount
	case CashWithdrawn:
		if event.AccountID != a.id {
			a.skip(e, "event targets another account")
			return
		}
		a.balance -= event.Amount
	case *Created:
		applyPointer(a, e, event)
	case *CashDeposited:
		applyPointer(a, e, event)
	case *CashWithdrawn:
		applyPointer(a, e, event)
	default:
		// Unknown or retired event types are dropped so older code can read
		// newer streams and vice versa.
		a.skip(e, "unhandled event")
	}
}

func applyPointer[T Event](a *Account, e Event, event *T) {
	if event == nil {
		a.skip(e, "nil event")
		return
	}
	a.apply(*event)
}

// skip never calls methods on e: a typed nil must not panic here.
func (a *Account) skip(e Event, reason string) {
	if a.logger == nil || e == nil {
		return
	}
	a.logger.Debug("account: skipping event",
		"account_id", a.id,
		"event", fmt.Sprintf("%T", e),
		"reason", reason,
	)
}
