package adaptor

import (
	"errors"
	"net/http"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/pkg/utils"

	"go.uber.org/zap"
)

const (
	opProcessPayment = "process payment"
	opVerifyPayment  = "verify payment"
	opRefundPayment  = "refund payment"
	opGetTransaction = "get transaction"
	opCancelPayment  = "cancel payment"
	opOpenDispute    = "open dispute"
	opResolveDispute = "resolve dispute"
	opListPending    = "list pending payments"
	opListRecent     = "list recent payments"
	opListProviders  = "list payment providers"
)

// operations where a rejected transition is the caller asking for something
// the transaction's current state does not allow
var callerActions = map[string]bool{
	opCancelPayment:  true,
	opOpenDispute:    true,
	opResolveDispute: true,
}

// handleServiceError maps service errors to the error envelope
func handleServiceError(log *zap.Logger, w http.ResponseWriter, err error, operation string) {
	var (
		validationErr *entity.ValidationError
		paymentErr    *entity.PaymentFailedError
	)

	switch {
	case errors.As(err, &validationErr):
		log.Warn(operation+" validation failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseBadRequest(w, "Validation failed", validationErr.Fields)

	case errors.Is(err, entity.ErrDuplicateTransaction):
		log.Warn(operation+" failed - duplicate transaction", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusConflict, "duplicate_transaction", "Transaction id already used", nil)

	case errors.Is(err, entity.ErrMethodNotSupported):
		log.Warn(operation+" failed - method not supported", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusBadRequest, "method_not_supported", "Payment method not supported", nil)

	case errors.As(err, &paymentErr):
		log.Warn(operation+" failed - all providers failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusUnprocessableEntity, "payment_failed", "Payment failed",
			map[string]any{"transaction_id": paymentErr.ExternalID, "attempts": paymentErr.Attempts})

	case errors.Is(err, entity.ErrPaymentFailed):
		log.Warn(operation+" failed - payment failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusUnprocessableEntity, "payment_failed", "Payment failed", nil)

	case errors.Is(err, entity.ErrTransactionNotFound):
		log.Warn(operation+" failed - not found", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusNotFound, "transaction_not_found", "Transaction not found", nil)

	case errors.Is(err, entity.ErrInvalidRefundState):
		log.Warn(operation+" failed - not refundable", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusConflict, "invalid_refund_state", "Transaction cannot be refunded in its current state", nil)

	case errors.Is(err, entity.ErrRefundDeclined):
		log.Warn(operation+" failed - declined by provider", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusUnprocessableEntity, "refund_declined", "Refund declined by provider", nil)

	case errors.Is(err, entity.ErrRefundFailed):
		log.Error(operation+" failed - outcome unknown", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusBadGateway, "refund_failed", "Refund outcome unknown, transaction flagged for reconciliation", nil)

	case errors.Is(err, entity.ErrTransactionCancelled):
		log.Warn(operation+" failed - cancelled", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusConflict, "transaction_cancelled", "Transaction was cancelled", nil)

	case errors.Is(err, entity.ErrInvalidStateTransition) && callerActions[operation]:
		log.Warn(operation+" failed - invalid state", zap.Error(err), zap.String("operation", operation))
		utils.ResponseError(w, http.StatusConflict, "invalid_state_transition", "Transaction state does not allow this action", nil)

	default:
		log.Error(operation+" failed", zap.Error(err), zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
	}
}

func (h *PaymentHandler) handleServiceError(w http.ResponseWriter, err error, operation string) {
	handleServiceError(h.log, w, err, operation)
}
