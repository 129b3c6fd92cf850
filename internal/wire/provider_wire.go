package wire

import (
	"payment-orchestrator/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireProvider(r chi.Router, providerHandler *adaptor.ProviderHandler) {
	// ==================== PUBLIC ROUTES ====================
	// GET /payment-providers?group= - Active providers in fallback order
	r.Get("/payment-providers", providerHandler.GetPaymentProviders)
}
