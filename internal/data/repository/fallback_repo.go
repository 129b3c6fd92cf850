package repository

import (
	"context"
	"fmt"
	"time"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type FallbackRepository interface {
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.PaymentFallback, error)
	UpdateStatus(ctx context.Context, fallback *entity.PaymentFallback, status entity.FallbackStatus, message *string) error
}

type fallbackRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewFallbackRepository(db database.PgxIface, log *zap.Logger) FallbackRepository {
	return &fallbackRepository{
		db:  db,
		log: log.With(zap.String("repository", "fallback")),
	}
}

// insertFallbacks writes the plan inside the caller's database transaction.
func insertFallbacks(ctx context.Context, tx pgx.Tx, plan []*entity.PaymentFallback) error {
	query := `
		INSERT INTO payment_fallbacks (id, transaction_id, provider_id, provider_name, attempt_order, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, f := range plan {
		_, err := tx.Exec(ctx, query,
			f.ID,
			f.TransactionID,
			f.ProviderID,
			f.ProviderName,
			f.AttemptOrder,
			f.Status,
			f.CreatedAt,
			f.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert fallback attempt %d (%s): %w", f.AttemptOrder, f.ProviderName, err)
		}
	}

	return nil
}

func (r *fallbackRepository) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.PaymentFallback, error) {
	query := `
		SELECT id, transaction_id, provider_id, provider_name, attempt_order, status, error_message,
		       attempted_at, created_at, updated_at
		FROM payment_fallbacks
		WHERE transaction_id = $1
		ORDER BY attempt_order ASC
	`

	rows, err := r.db.Query(ctx, query, transactionID)
	if err != nil {
		r.log.Error("Failed to find fallbacks by transaction",
			zap.Error(err),
			zap.String("transaction_id", transactionID.String()),
		)
		return nil, fmt.Errorf("find fallbacks for transaction %s: %w", transactionID.String(), err)
	}
	defer rows.Close()

	var fallbacks []*entity.PaymentFallback
	for rows.Next() {
		var f entity.PaymentFallback
		err := rows.Scan(
			&f.ID,
			&f.TransactionID,
			&f.ProviderID,
			&f.ProviderName,
			&f.AttemptOrder,
			&f.Status,
			&f.ErrorMessage,
			&f.AttemptedAt,
			&f.CreatedAt,
			&f.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan fallback row", zap.Error(err))
			return nil, fmt.Errorf("scan fallback row: %w", err)
		}
		fallbacks = append(fallbacks, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find fallbacks for transaction %s: %w", transactionID.String(), err)
	}

	return fallbacks, nil
}

func (r *fallbackRepository) UpdateStatus(ctx context.Context, f *entity.PaymentFallback, status entity.FallbackStatus, message *string) error {
	if !f.Status.CanTransitionTo(status) {
		return &entity.TransitionError{
			Entity: fmt.Sprintf("attempt %d (%s)", f.AttemptOrder, f.ProviderName),
			From:   string(f.Status),
			To:     string(status),
		}
	}

	now := time.Now()
	attemptedAt := f.AttemptedAt
	if status == entity.FallbackStatusAttempted {
		attemptedAt = &now
	}

	query := `
		UPDATE payment_fallbacks
		SET status = $3, error_message = $4, attempted_at = $5, updated_at = $6
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, f.ID, f.Status, status, message, attemptedAt, now)
	if err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			// partial unique index: satu transaksi hanya boleh punya satu attempt succeeded
			return fmt.Errorf("second successful attempt for transaction %s: %w", f.TransactionID.String(),
				&entity.TransitionError{Entity: fmt.Sprintf("attempt %d (%s)", f.AttemptOrder, f.ProviderName), From: string(f.Status), To: string(status)})
		}
		r.log.Error("Failed to update fallback status",
			zap.Error(err),
			zap.String("fallback_id", f.ID.String()),
			zap.String("status", string(status)),
		)
		return fmt.Errorf("update fallback %s status to %s: %w", f.ID.String(), status, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("fallback %s changed concurrently: %w", f.ID.String(),
			&entity.TransitionError{Entity: fmt.Sprintf("attempt %d (%s)", f.AttemptOrder, f.ProviderName), From: string(f.Status), To: string(status)})
	}

	f.Status = status
	f.ErrorMessage = message
	f.AttemptedAt = attemptedAt
	f.UpdatedAt = now
	return nil
}
