package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusPending      TransactionStatus = "pending"
	TransactionStatusProcessing   TransactionStatus = "processing"
	TransactionStatusCompleted    TransactionStatus = "completed"
	TransactionStatusFailed       TransactionStatus = "failed"
	TransactionStatusCancelled    TransactionStatus = "cancelled"
	TransactionStatusRefunded     TransactionStatus = "refunded"
	TransactionStatusRefundFailed TransactionStatus = "refund_failed"
	TransactionStatusDisputed     TransactionStatus = "disputed"
	TransactionStatusResolvedWon  TransactionStatus = "resolved_won"
	TransactionStatusResolvedLost TransactionStatus = "resolved_lost"
)

// transactionTransitions lists every forward edge of the transaction state machine.
// Statuses without an entry are terminal.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusProcessing,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusProcessing: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusCompleted: {
		TransactionStatusRefunded,
		TransactionStatusRefundFailed,
		TransactionStatusDisputed,
	},
	TransactionStatusDisputed: {
		TransactionStatusResolvedWon,
		TransactionStatusResolvedLost,
	},
}

// CanTransitionTo reports whether next is a legal forward step from s.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible from s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

// IsSettled reports whether the payment run has finished, successfully or not.
// processed_at is stamped the first time a transaction becomes settled.
func (s TransactionStatus) IsSettled() bool {
	return s != TransactionStatusPending && s != TransactionStatusProcessing
}

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted,
		TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusRefunded,
		TransactionStatusRefundFailed, TransactionStatusDisputed, TransactionStatusResolvedWon,
		TransactionStatusResolvedLost:
		return true
	}
	return false
}

type PaymentTransaction struct {
	BaseNoDelete
	TenantID       string            `db:"tenant_id"`
	ExternalID     string            `db:"external_id"`
	Amount         decimal.Decimal   `db:"amount"`
	Currency       string            `db:"currency"`
	Status         TransactionStatus `db:"status"`
	ProviderGroup  string            `db:"provider_group"`
	PackageCostID  *string           `db:"package_cost_id"`
	Metadata       map[string]string `db:"metadata"`
	ProviderID     *uuid.UUID        `db:"provider_id"`
	ProviderRef    *string           `db:"provider_ref"`
	RefundedAmount decimal.Decimal   `db:"refunded_amount"`
	ProcessedAt    *time.Time        `db:"processed_at"`
}

// RefundableAmount is what is left of the original amount after previous refunds.
func (t *PaymentTransaction) RefundableAmount() decimal.Decimal {
	return t.Amount.Sub(t.RefundedAmount)
}
