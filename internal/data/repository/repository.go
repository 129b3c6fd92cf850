package repository

import (
	"payment-orchestrator/pkg/database"

	"go.uber.org/zap"
)

type Repository struct {
	Transaction TransactionRepository
	Fallback    FallbackRepository
	Provider    ProviderRepository
	Audit       AuditRepository
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	return &Repository{
		Transaction: NewTransactionRepository(db, log),
		Fallback:    NewFallbackRepository(db, log),
		Provider:    NewProviderRepository(db, log),
		Audit:       NewAuditRepository(db, log),
	}
}
