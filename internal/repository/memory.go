package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashbook/internal/account"

	"github.com/google/uuid"
)

var _ EventStore = (*MemoryEventStore)(nil)

// MemoryEventStore keeps streams in process memory. Used by tests and by
// local runs without a database.
type MemoryEventStore struct {
	mu      sync.Mutex
	streams map[uuid.UUID][]Record
	now     func() time.Time
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[uuid.UUID][]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryEventStore) Load(ctx context.Context, accountID uuid.UUID) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[accountID]
	records := make([]Record, len(stream))
	copy(records, stream)
	return records, nil
}

func (s *MemoryEventStore) Append(ctx context.Context, accountID uuid.UUID, expectedVersion int64, events []account.Event) ([]Record, error) {
	if len(events) == 0 {
		return nil, ErrNothingToAppend
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(len(s.streams[accountID]))
	if current != expectedVersion {
		return nil, fmt.Errorf("%w: expected version %d, actual %d", ErrConcurrencyConflict, expectedVersion, current)
	}

	records, err := newRecords(accountID, expectedVersion, events, s.now())
	if err != nil {
		return nil, err
	}
	s.streams[accountID] = append(s.streams[accountID], records...)

	out := make([]Record, len(records))
	copy(out, records)
	return out, nil
}
