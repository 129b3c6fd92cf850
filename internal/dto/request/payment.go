package request

import "github.com/shopspring/decimal"

// CreatePaymentRequest is the verified payload forwarded by the signature gateway.
type CreatePaymentRequest struct {
	TenantID      string            `json:"tenant_id" validate:"required,max=64"`
	Amount        decimal.Decimal   `json:"amount" validate:"gt=0"`
	Currency      string            `json:"currency" validate:"omitempty,iso4217"`
	TransactionID *string           `json:"transaction_id,omitempty" validate:"omitempty,min=1,max=64,printascii"`
	Metadata      map[string]string `json:"metadata,omitempty" validate:"omitempty,max=50"`
	PackageCostID *string           `json:"package_cost_id,omitempty" validate:"omitempty,max=64"`
}

// RefundRequest refunds the remaining amount when Amount is nil.
type RefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
}

type DisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type ResolveDisputeRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=won lost"`
}

func (r ResolveDisputeRequest) Won() bool {
	return r.Outcome == "won"
}
