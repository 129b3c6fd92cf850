package response

import (
	"time"

	"payment-orchestrator/internal/data/entity"

	"github.com/shopspring/decimal"
)

// PaymentResult is the body of a successful POST /{providerGroup}/payment.
type PaymentResult struct {
	Success       bool                     `json:"success"`
	TransactionID string                   `json:"transaction_id"`
	Status        entity.TransactionStatus `json:"status"`
	MethodUsed    string                   `json:"method_used"`
	Amount        decimal.Decimal          `json:"amount"`
	Currency      string                   `json:"currency"`
}

type VerificationResult struct {
	Success        bool                     `json:"success"`
	TransactionID  string                   `json:"transaction_id"`
	Status         entity.TransactionStatus `json:"status"`
	Provider       string                   `json:"provider,omitempty"`
	ProviderStatus string                   `json:"provider_status,omitempty"`
	Verified       bool                     `json:"verified"`
	CheckedAt      time.Time                `json:"checked_at"`
}

type RefundResult struct {
	Success        bool                     `json:"success"`
	TransactionID  string                   `json:"transaction_id"`
	Status         entity.TransactionStatus `json:"status"`
	RefundedAmount decimal.Decimal          `json:"refunded_amount"`
	Currency       string                   `json:"currency"`
}

type TransactionResponse struct {
	TransactionID  string                   `json:"transaction_id"`
	TenantID       string                   `json:"tenant_id"`
	Amount         decimal.Decimal          `json:"amount"`
	Currency       string                   `json:"currency"`
	Status         entity.TransactionStatus `json:"status"`
	ProviderGroup  string                   `json:"provider_group"`
	PackageCostID  *string                  `json:"package_cost_id,omitempty"`
	Metadata       map[string]string        `json:"metadata,omitempty"`
	RefundedAmount decimal.Decimal          `json:"refunded_amount"`
	ProcessedAt    *time.Time               `json:"processed_at,omitempty"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

type AttemptResponse struct {
	AttemptOrder int                   `json:"attempt_order"`
	Provider     string                `json:"provider"`
	Status       entity.FallbackStatus `json:"status"`
	ErrorMessage *string               `json:"error_message,omitempty"`
	AttemptedAt  *time.Time            `json:"attempted_at,omitempty"`
}

type AuditResponse struct {
	Level     entity.AuditLevel `json:"level"`
	Message   string            `json:"message"`
	Context   map[string]any    `json:"context,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type TransactionDetailResponse struct {
	TransactionResponse
	MethodUsed string            `json:"method_used,omitempty"`
	Attempts   []AttemptResponse `json:"attempts"`
	AuditTrail []AuditResponse   `json:"audit_trail,omitempty"`
}

type ProviderResponse struct {
	Name      string `json:"name"`
	Group     string `json:"group"`
	Rank      int    `json:"rank"`
	Supported bool   `json:"supported"`
}

// Helper converters
func TransactionToResponse(trx *entity.PaymentTransaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:  trx.ExternalID,
		TenantID:       trx.TenantID,
		Amount:         trx.Amount,
		Currency:       trx.Currency,
		Status:         trx.Status,
		ProviderGroup:  trx.ProviderGroup,
		PackageCostID:  trx.PackageCostID,
		Metadata:       trx.Metadata,
		RefundedAmount: trx.RefundedAmount,
		ProcessedAt:    trx.ProcessedAt,
		CreatedAt:      trx.CreatedAt,
		UpdatedAt:      trx.UpdatedAt,
	}
}

// AttemptToResponse drops the provider diagnostic unless withDiagnostics is set.
func AttemptToResponse(f *entity.PaymentFallback, withDiagnostics bool) AttemptResponse {
	resp := AttemptResponse{
		AttemptOrder: f.AttemptOrder,
		Provider:     f.ProviderName,
		Status:       f.Status,
		AttemptedAt:  f.AttemptedAt,
	}
	if withDiagnostics {
		resp.ErrorMessage = f.ErrorMessage
	}
	return resp
}

func AuditToResponse(e *entity.AuditEntry) AuditResponse {
	return AuditResponse{
		Level:     e.Level,
		Message:   e.Message,
		Context:   e.Context,
		CreatedAt: e.CreatedAt,
	}
}
