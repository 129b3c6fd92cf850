package adaptor

import (
	"payment-orchestrator/internal/usecase"

	"go.uber.org/zap"
)

type Handler struct {
	Payment  *PaymentHandler
	Provider *ProviderHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Payment:  NewPaymentHandler(service.Payment, log),
		Provider: NewProviderHandler(service.Provider, log),
	}
}
