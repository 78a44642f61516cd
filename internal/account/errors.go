package account

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrOutOfRange       = errors.New("amount out of range")
	ErrInvalidOperation = errors.New("invalid operation")
)
