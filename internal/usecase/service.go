package usecase

import (
	"payment-orchestrator/internal/audit"
	"payment-orchestrator/internal/data/repository"
	"payment-orchestrator/internal/event"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/pkg/utils"

	"go.uber.org/zap"
)

type Service struct {
	Payment  PaymentService
	Provider ProviderService
}

func NewService(repo *repository.Repository, resolver *gateway.Resolver, events *event.Dispatcher, auditLog *audit.Log, config *utils.Config, log *zap.Logger) *Service {
	providers := NewProviderService(repo.Provider, resolver, log)

	return &Service{
		Payment:  NewPaymentService(repo, providers, resolver, events, auditLog, config.Payment, log),
		Provider: providers,
	}
}
