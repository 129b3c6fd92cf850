package repository

import (
	"context"
	"fmt"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AuditRepository is append-only: there is no update or delete.
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditEntry) error
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.AuditEntry, error)
}

type auditRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewAuditRepository(db database.PgxIface, log *zap.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log.With(zap.String("repository", "audit")),
	}
}

func (r *auditRepository) Create(ctx context.Context, entry *entity.AuditEntry) error {
	if entry.Context == nil {
		entry.Context = map[string]any{}
	}

	query := `
		INSERT INTO payment_audit_logs (id, transaction_id, level, message, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.TransactionID,
		entry.Level,
		entry.Message,
		entry.Context,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create audit entry for transaction %s: %w", entry.TransactionID.String(), err)
	}

	return nil
}

func (r *auditRepository) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.AuditEntry, error) {
	query := `
		SELECT id, transaction_id, level, message, context, created_at
		FROM payment_audit_logs
		WHERE transaction_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		r.log.Error("Failed to find audit entries",
			zap.Error(err),
			zap.String("transaction_id", transactionID.String()),
		)
		return nil, fmt.Errorf("find audit entries for transaction %s: %w", transactionID.String(), err)
	}
	defer rows.Close()

	var entries []*entity.AuditEntry
	for rows.Next() {
		var e entity.AuditEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Level, &e.Message, &e.Context, &e.CreatedAt); err != nil {
			r.log.Error("Failed to scan audit row", zap.Error(err))
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find audit entries for transaction %s: %w", transactionID.String(), err)
	}

	return entries, nil
}
