package model

import "time"

type OpenAccountRequest struct {
	AccountID string `json:"account_id"`
}

type CashRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
}

type Balance struct {
	AccountID string `json:"account_id"`
	Balance   int64  `json:"balance"`
	Version   int64  `json:"version"`
}

// CommandResult is the reply body for commands received over the bus.
type CommandResult struct {
	AccountID    string `json:"account_id,omitempty"`
	Success      bool   `json:"success"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// EventMessage is what gets published on the bus after an append.
type EventMessage struct {
	AccountID  string    `json:"account_id"`
	Version    int64     `json:"version"`
	Type       string    `json:"type"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
