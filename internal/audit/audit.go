package audit

import (
	"context"
	"time"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/data/repository"
	"payment-orchestrator/internal/event"
	"payment-orchestrator/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Log is the transaction audit trail. Writes never fail the caller: when the
// store rejects an entry it is written to the process logger instead.
type Log struct {
	repo repository.AuditRepository
	log  *zap.Logger
}

func NewLog(repo repository.AuditRepository, log *zap.Logger) *Log {
	return &Log{
		repo: repo,
		log:  log.With(zap.String("component", "audit")),
	}
}

func (a *Log) Record(ctx context.Context, transactionID uuid.UUID, level entity.AuditLevel, message string, fields map[string]any) {
	entry := &entity.AuditEntry{
		BaseSimple:    entity.BaseSimple{ID: utils.GenerateUUID(), CreatedAt: time.Now().UTC()},
		TransactionID: transactionID,
		Level:         level,
		Message:       message,
		Context:       fields,
	}

	// audit harus tetap tertulis walaupun request sudah dibatalkan
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := a.repo.Create(writeCtx, entry); err != nil {
		a.log.Error("Audit write failed, entry kept in process log",
			zap.Error(err),
			zap.String("transaction_id", transactionID.String()),
			zap.String("level", string(level)),
			zap.String("message", message),
			zap.Any("context", fields),
			zap.Time("created_at", entry.CreatedAt),
		)
	}
}

func (a *Log) Trail(ctx context.Context, transactionID uuid.UUID) ([]*entity.AuditEntry, error) {
	return a.repo.FindByTransactionID(ctx, transactionID)
}

// Name and Handle make the audit log an event hook.
func (a *Log) Name() string { return "audit" }

func (a *Log) Handle(ctx context.Context, evt event.Event) error {
	fields := make(map[string]any, len(evt.Payload)+3)
	for k, v := range evt.Payload {
		fields[k] = v
	}
	fields["event"] = string(evt.Type)
	fields["external_id"] = evt.ExternalID
	fields["status"] = string(evt.Status)

	a.Record(ctx, evt.TransactionID, evt.Level, evt.Message, fields)
	return nil
}
