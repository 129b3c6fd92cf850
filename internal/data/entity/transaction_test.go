package entity

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTransactionStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from TransactionStatus
		to   TransactionStatus
		want bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusPending, TransactionStatusFailed, true},
		{TransactionStatusPending, TransactionStatusCancelled, true},
		{TransactionStatusPending, TransactionStatusCompleted, false},
		{TransactionStatusProcessing, TransactionStatusCompleted, true},
		{TransactionStatusProcessing, TransactionStatusFailed, true},
		{TransactionStatusProcessing, TransactionStatusCancelled, true},
		{TransactionStatusProcessing, TransactionStatusPending, false},
		{TransactionStatusCompleted, TransactionStatusRefunded, true},
		{TransactionStatusCompleted, TransactionStatusRefundFailed, true},
		{TransactionStatusCompleted, TransactionStatusDisputed, true},
		{TransactionStatusCompleted, TransactionStatusCancelled, false},
		{TransactionStatusCompleted, TransactionStatusProcessing, false},
		{TransactionStatusDisputed, TransactionStatusResolvedWon, true},
		{TransactionStatusDisputed, TransactionStatusResolvedLost, true},
		{TransactionStatusDisputed, TransactionStatusRefunded, false},
		{TransactionStatusFailed, TransactionStatusProcessing, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusRefunded, TransactionStatusCompleted, false},
		{TransactionStatusCancelled, TransactionStatusProcessing, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestTransactionStatus_Terminal(t *testing.T) {
	t.Parallel()

	terminal := []TransactionStatus{
		TransactionStatusFailed,
		TransactionStatusCancelled,
		TransactionStatusRefunded,
		TransactionStatusRefundFailed,
		TransactionStatusResolvedWon,
		TransactionStatusResolvedLost,
	}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), s)
	}

	for _, s := range []TransactionStatus{TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusDisputed} {
		assert.False(t, s.IsTerminal(), s)
	}

	assert.False(t, TransactionStatus("archived").Valid())
	assert.True(t, TransactionStatusRefundFailed.Valid())
}

func TestFallbackStatus_CanTransitionTo(t *testing.T) {
	t.Parallel()

	assert.True(t, FallbackStatusPending.CanTransitionTo(FallbackStatusAttempted))
	assert.True(t, FallbackStatusPending.CanTransitionTo(FallbackStatusSkipped))
	assert.True(t, FallbackStatusAttempted.CanTransitionTo(FallbackStatusSucceeded))
	assert.True(t, FallbackStatusAttempted.CanTransitionTo(FallbackStatusFailed))
	assert.False(t, FallbackStatusPending.CanTransitionTo(FallbackStatusSucceeded))
	assert.False(t, FallbackStatusSucceeded.CanTransitionTo(FallbackStatusFailed))
	assert.False(t, FallbackStatusFailed.CanTransitionTo(FallbackStatusAttempted))
	assert.True(t, FallbackStatusSkipped.IsFinal())
}

func TestPaymentTransaction_RefundableAmount(t *testing.T) {
	t.Parallel()

	trx := &PaymentTransaction{
		Amount:         decimal.RequireFromString("150.00"),
		RefundedAmount: decimal.RequireFromString("40.50"),
	}
	assert.True(t, trx.RefundableAmount().Equal(decimal.RequireFromString("109.50")))
}

func TestErrors_Unwrap(t *testing.T) {
	t.Parallel()

	var err error = &PaymentFailedError{ExternalID: "PAY-1", Attempts: 3}
	assert.True(t, errors.Is(err, ErrPaymentFailed))
	assert.Contains(t, err.Error(), "3 provider attempt(s)")

	err = &TransitionError{Entity: "transaction", From: "failed", To: "completed"}
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))

	err = &ValidationError{Reason: "amount must be greater than zero"}
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "validation failed: amount must be greater than zero", err.Error())
}

func TestPaymentProvider_Clone(t *testing.T) {
	t.Parallel()

	p := &PaymentProvider{Name: "stripe", Config: map[string]string{"base_url": "https://a"}}
	c := p.Clone()
	p.Config["base_url"] = "https://b"
	p.Name = "paypal"

	assert.Equal(t, "stripe", c.Name)
	assert.Equal(t, "https://a", c.Config["base_url"])
}
