package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cashbook/internal/account"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrConcurrencyConflict = errors.New("stream was modified concurrently")
	ErrNothingToAppend     = errors.New("no events to append")
)

// Record is one persisted event. Version starts at 1 for each account and is
// assigned by the store.
type Record struct {
	AccountID  uuid.UUID
	Version    int64
	Type       string
	Payload    []byte
	OccurredAt time.Time
}

// EventStore is the append-only log of account events.
type EventStore interface {
	// Load returns the stream of an account in version order. A missing
	// stream is an empty slice, not an error.
	Load(ctx context.Context, accountID uuid.UUID) ([]Record, error)
	// Append writes events after expectedVersion. It fails with
	// ErrConcurrencyConflict if the stream is no longer at that version.
	Append(ctx context.Context, accountID uuid.UUID, expectedVersion int64, events []account.Event) ([]Record, error)
}

// History decodes records for replay and returns the stream version.
func History(records []Record) ([]account.Event, int64, error) {
	events := make([]account.Event, 0, len(records))
	var version int64
	for _, r := range records {
		e, err := DecodeEvent(r.Type, r.Payload)
		if err != nil {
			return nil, 0, fmt.Errorf("account %s v%d: %w", r.AccountID, r.Version, err)
		}
		events = append(events, e)
		version = r.Version
	}
	return events, version, nil
}

func newRecords(accountID uuid.UUID, expectedVersion int64, events []account.Event, now time.Time) ([]Record, error) {
	records := make([]Record, 0, len(events))
	for i, e := range events {
		eventType, payload, err := EncodeEvent(e)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{
			AccountID:  accountID,
			Version:    expectedVersion + int64(i) + 1,
			Type:       eventType,
			Payload:    payload,
			OccurredAt: now,
		})
	}
	return records, nil
}

type PostgresEventStore struct {
	dbPool *pgxpool.Pool
}

func NewPostgresEventStore(db *pgxpool.Pool) *PostgresEventStore {
	return &PostgresEventStore{dbPool: db}
}

func (s *PostgresEventStore) Load(ctx context.Context, accountID uuid.UUID) ([]Record, error) {
	query := `
		SELECT version, event_type, payload, occurred_at
		FROM account_events
		WHERE account_id = $1
		ORDER BY version`

	rows, err := s.dbPool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("database query error: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		r := Record{AccountID: accountID}
		if err := rows.Scan(&r.Version, &r.Type, &r.Payload, &r.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read event rows: %w", err)
	}
	return records, nil
}

func (s *PostgresEventStore) Append(ctx context.Context, accountID uuid.UUID, expectedVersion int64, events []account.Event) ([]Record, error) {
	if len(events) == 0 {
		return nil, ErrNothingToAppend
	}
	records, err := newRecords(accountID, expectedVersion, events, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	tx, err := s.dbPool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM account_events WHERE account_id = $1`,
		accountID,
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("read stream version: %w", err)
	}
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: expected version %d, actual %d", ErrConcurrencyConflict, expectedVersion, current)
	}

	insert := `
		INSERT INTO account_events (account_id, version, event_type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insert, r.AccountID, r.Version, r.Type, r.Payload, r.OccurredAt)
	}
	br := tx.SendBatch(ctx, batch)
	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return nil, fmt.Errorf("%w: version %d already taken", ErrConcurrencyConflict, expectedVersion+1)
			}
			return nil, fmt.Errorf("insert event: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("insert events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("commit events: %w", err)
	}
	return records, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
