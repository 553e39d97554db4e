package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrOrderRejected  = errors.New("order rejected by exchange")
	ErrDuplicateOrder = errors.New("duplicate order link id")
	ErrLegTooSmall    = errors.New("exit leg rounds to zero")
)
