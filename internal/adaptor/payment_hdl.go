package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"payment-orchestrator/internal/dto/request"
	"payment-orchestrator/internal/dto/response"
	"payment-orchestrator/internal/usecase"
	"payment-orchestrator/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// ProcessPayment handles POST /{providerGroup}/payment
func (h *PaymentHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.service.ProcessPayment(r.Context(), chi.URLParam(r, "providerGroup"), &req)
	if err != nil {
		h.handleServiceError(w, err, opProcessPayment)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

// VerifyPayment handles GET /payment/verify/{transactionId}
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.handleServiceError(w, err, opVerifyPayment)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

// RefundPayment handles POST /payment/refund/{transactionId}
func (h *PaymentHandler) RefundPayment(w http.ResponseWriter, r *http.Request) {
	// body boleh kosong: refund sisa amount
	var req request.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.service.Refund(r.Context(), chi.URLParam(r, "transactionId"), &req)
	if err != nil {
		h.handleServiceError(w, err, opRefundPayment)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}

// GetTransaction handles GET /payment/{transactionId} (public, no provider diagnostics)
func (h *PaymentHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	h.getTransaction(w, r, false)
}

func (h *PaymentHandler) getTransaction(w http.ResponseWriter, r *http.Request, withDiagnostics bool) {
	detail, err := h.service.GetTransaction(r.Context(), chi.URLParam(r, "transactionId"), withDiagnostics)
	if err != nil {
		h.handleServiceError(w, err, opGetTransaction)
		return
	}

	utils.ResponseSuccess(w, "success", detail)
}

// ==================== ADMIN METHODS ====================

// GetTransactionAdmin handles GET /admin/payments/{transactionId}
func (h *PaymentHandler) GetTransactionAdmin(w http.ResponseWriter, r *http.Request) {
	h.getTransaction(w, r, true)
}

// CancelPayment handles POST /admin/payments/{transactionId}/cancel
func (h *PaymentHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	trx, err := h.service.Cancel(r.Context(), chi.URLParam(r, "transactionId"))
	if err != nil {
		h.handleServiceError(w, err, opCancelPayment)
		return
	}

	utils.ResponseSuccess(w, "Payment cancelled", trx)
}

// OpenDispute handles POST /admin/payments/{transactionId}/dispute
func (h *PaymentHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	var req request.DisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	trx, err := h.service.OpenDispute(r.Context(), chi.URLParam(r, "transactionId"), req.Reason)
	if err != nil {
		h.handleServiceError(w, err, opOpenDispute)
		return
	}

	utils.ResponseSuccess(w, "Dispute opened", trx)
}

// ResolveDispute handles POST /admin/payments/{transactionId}/dispute/resolve
func (h *PaymentHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	var req request.ResolveDisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	trx, err := h.service.ResolveDispute(r.Context(), chi.URLParam(r, "transactionId"), req.Won())
	if err != nil {
		h.handleServiceError(w, err, opResolveDispute)
		return
	}

	utils.ResponseSuccess(w, "Dispute resolved", trx)
}

// ListPending handles GET /admin/payments/pending?limit=
func (h *PaymentHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	req, ok := h.listRequest(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListPending(r.Context(), req.Limit())
	if err != nil {
		h.handleServiceError(w, err, opListPending)
		return
	}

	utils.ResponseSuccess(w, "success", response.NewListResponse(transactions, req.Limit()))
}

// ListRecent handles GET /admin/payments/recent?window=24h&limit=
func (h *PaymentHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	req, ok := h.listRequest(w, r)
	if !ok {
		return
	}

	transactions, err := h.service.ListRecent(r.Context(), req.Window, req.Limit())
	if err != nil {
		h.handleServiceError(w, err, opListRecent)
		return
	}

	utils.ResponseSuccess(w, "success", response.NewListResponse(transactions, req.Limit()))
}

func (h *PaymentHandler) listRequest(w http.ResponseWriter, r *http.Request) (request.ListRequest, bool) {
	query := r.URL.Query()

	window, err := utils.ParseDuration(query.Get("window"), request.DefaultWindow)
	if err != nil {
		utils.ResponseBadRequest(w, "Validation failed", map[string]string{"window": "Must be a duration such as 90m, 24h or 7d"})
		return request.ListRequest{}, false
	}

	req := request.ListRequest{
		RawLimit: utils.ParseInt(query.Get("limit"), request.DefaultListLimit),
		Window:   window,
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return request.ListRequest{}, false
	}
	return req, true
}
