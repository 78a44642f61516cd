package service

import (
	"errors"

	"cashbook/internal/account"
	"cashbook/internal/repository"
)

// Error codes shared by every transport.
const (
	CodeInvalidArgument  = "invalid_argument"
	CodeOutOfRange       = "out_of_range"
	CodeInvalidOperation = "invalid_operation"
	CodeNotFound         = "not_found"
	CodeAlreadyExists    = "already_exists"
	CodeConflict         = "conflict"
	CodeInternal         = "internal"
)

// ErrorCode classifies err for transports. It returns "" for nil.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, account.ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, account.ErrOutOfRange):
		return CodeOutOfRange
	case errors.Is(err, account.ErrInvalidOperation):
		return CodeInvalidOperation
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, repository.ErrBalanceNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAccountExists):
		return CodeAlreadyExists
	case errors.Is(err, repository.ErrConcurrencyConflict):
		return CodeConflict
	default:
		return CodeInternal
	}
}
