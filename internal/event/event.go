package event

import (
	"time"

	"payment-orchestrator/internal/data/entity"

	"github.com/google/uuid"
)

type Type string

const (
	PaymentInitiated       Type = "payment.initiated"
	PaymentAttemptFailed   Type = "payment.attempt_failed"
	PaymentCompleted       Type = "payment.completed"
	PaymentFailed          Type = "payment.failed"
	PaymentCancelled       Type = "payment.cancelled"
	PaymentRefunded        Type = "payment.refunded"
	PaymentRefundFailed    Type = "payment.refund_failed"
	PaymentDisputed        Type = "payment.disputed"
	PaymentDisputeResolved Type = "payment.dispute_resolved"
)

// Event is a lifecycle notification about one transaction. Level is the
// audit severity the event is recorded with.
type Event struct {
	Type          Type
	TransactionID uuid.UUID
	ExternalID    string
	TenantID      string
	Status        entity.TransactionStatus
	Level         entity.AuditLevel
	Message       string
	Payload       map[string]any
	OccurredAt    time.Time
}

// New fills the transaction fields from trx.
func New(t Type, trx *entity.PaymentTransaction, level entity.AuditLevel, message string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		Type:          t,
		TransactionID: trx.ID,
		ExternalID:    trx.ExternalID,
		TenantID:      trx.TenantID,
		Status:        trx.Status,
		Level:         level,
		Message:       message,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}
