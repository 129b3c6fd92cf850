package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

// Normalized provider-side statuses reported in Outcome.Status.
const (
	StatusSucceeded = "succeeded"
	StatusDeclined  = "declined"
	StatusPending   = "pending"
	StatusRefunded  = "refunded"
	StatusUnknown   = "unknown"
)

// Intent is what a provider is asked to charge.
type Intent struct {
	ExternalID string
	TenantID   string
	Amount     decimal.Decimal
	Currency   string
	Metadata   map[string]string
}

// Outcome is a provider answer. A business decline is Success=false with a
// nil error; errors are reserved for transport or configuration failures.
type Outcome struct {
	Success     bool
	ProviderRef string
	Status      string
	Message     string
}

type Adapter interface {
	Name() string
}

type Charger interface {
	Adapter
	Charge(ctx context.Context, intent Intent) (Outcome, error)
}

type Verifier interface {
	Adapter
	Verify(ctx context.Context, providerRef string) (Outcome, error)
}

type Refunder interface {
	Adapter
	Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (Outcome, error)
}
