package adaptor

import (
	"net/http"

	"payment-orchestrator/internal/usecase"
	"payment-orchestrator/pkg/utils"

	"go.uber.org/zap"
)

type ProviderHandler struct {
	service usecase.ProviderService
	log     *zap.Logger
}

func NewProviderHandler(service usecase.ProviderService, log *zap.Logger) *ProviderHandler {
	return &ProviderHandler{
		service: service,
		log:     log.With(zap.String("handler", "provider")),
	}
}

// GetPaymentProviders handles GET /payment-providers?group= (public)
func (h *ProviderHandler) GetPaymentProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.GetPaymentProviders(r.Context(), r.URL.Query().Get("group"))
	if err != nil {
		handleServiceError(h.log, w, err, opListProviders)
		return
	}

	utils.ResponseSuccess(w, "success", providers)
}
