package entity

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrMethodNotSupported     = errors.New("payment method not supported")
	ErrPaymentFailed          = errors.New("payment failed")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrInvalidRefundState     = errors.New("invalid refund state")
	ErrRefundDeclined         = errors.New("refund declined")
	ErrRefundFailed           = errors.New("refund outcome unknown")
	ErrTransactionCancelled   = errors.New("transaction cancelled")
)

// ValidationError carries per-field messages from request validation.
type ValidationError struct {
	Fields map[string]string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrValidation.Error(), e.Reason)
	}
	return ErrValidation.Error()
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PaymentFailedError is returned when every planned provider failed.
type PaymentFailedError struct {
	ExternalID string
	Attempts   int
}

func (e *PaymentFailedError) Error() string {
	return fmt.Sprintf("payment %s failed after %d provider attempt(s)", e.ExternalID, e.Attempts)
}

func (e *PaymentFailedError) Unwrap() error { return ErrPaymentFailed }

// TransitionError describes a rejected ledger mutation.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s cannot move from %s to %s", ErrInvalidStateTransition.Error(), e.Entity, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }
