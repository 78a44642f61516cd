package repository

import (
	"encoding/json"
	"fmt"

	"cashbook/internal/account"
)

// UnknownEvent carries an event whose type this build does not know. It
// satisfies account.Event so replay can skip it instead of failing.
type UnknownEvent struct {
	Type    string
	Payload json.RawMessage
}

func (e UnknownEvent) EventType() string { return e.Type }

// EncodeEvent returns the type name and JSON payload to store for e.
func EncodeEvent(e account.Event) (string, []byte, error) {
	if e == nil {
		return "", nil, fmt.Errorf("encode event: nil event")
	}
	if unknown, ok := e.(UnknownEvent); ok {
		return unknown.Type, unknown.Payload, nil
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", e.EventType(), err)
	}
	return e.EventType(), payload, nil
}

// DecodeEvent rebuilds an event from its stored type name and payload.
func DecodeEvent(eventType string, payload []byte) (account.Event, error) {
	switch eventType {
	case account.TypeCreated:
		var e account.Created
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case account.TypeCashDeposited:
		var e account.CashDeposited
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	case account.TypeCashWithdrawn:
		var e account.CashWithdrawn
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", eventType, err)
		}
		return e, nil
	default:
		return UnknownEvent{Type: eventType, Payload: append(json.RawMessage(nil), payload...)}, nil
	}
}
