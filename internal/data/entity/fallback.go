package entity

import (
	"time"

	"github.com/google/uuid"
)

type FallbackStatus string

const (
	FallbackStatusPending   FallbackStatus = "pending"
	FallbackStatusAttempted FallbackStatus = "attempted"
	FallbackStatusSucceeded FallbackStatus = "succeeded"
	FallbackStatusFailed    FallbackStatus = "failed"
	FallbackStatusSkipped   FallbackStatus = "skipped"
)

var fallbackTransitions = map[FallbackStatus][]FallbackStatus{
	FallbackStatusPending:   {FallbackStatusAttempted, FallbackStatusSkipped},
	FallbackStatusAttempted: {FallbackStatusSucceeded, FallbackStatusFailed},
}

func (s FallbackStatus) CanTransitionTo(next FallbackStatus) bool {
	for _, allowed := range fallbackTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s FallbackStatus) IsFinal() bool {
	return len(fallbackTransitions[s]) == 0
}

// PaymentFallback is one planned try against one provider for one transaction.
// ProviderName is copied from the registry when the plan is created.
type PaymentFallback struct {
	BaseNoDelete
	TransactionID uuid.UUID      `db:"transaction_id"`
	ProviderID    uuid.UUID      `db:"provider_id"`
	ProviderName  string         `db:"provider_name"`
	AttemptOrder  int            `db:"attempt_order"`
	Status        FallbackStatus `db:"status"`
	ErrorMessage  *string        `db:"error_message"`
	AttemptedAt   *time.Time     `db:"attempted_at"`
}
