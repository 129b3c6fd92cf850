package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const transactionColumns = `id, tenant_id, external_id, amount, currency, status, provider_group, package_cost_id,
		metadata, provider_id, provider_ref, refunded_amount, processed_at, created_at, updated_at`

type TransactionRepository interface {
	// CreateWithPlan inserts the transaction and its whole fallback plan atomically.
	CreateWithPlan(ctx context.Context, trx *entity.PaymentTransaction, plan []*entity.PaymentFallback) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentTransaction, error)
	FindByExternalID(ctx context.Context, externalID string) (*entity.PaymentTransaction, error)

	// Business queries
	UpdateStatus(ctx context.Context, trx *entity.PaymentTransaction, status entity.TransactionStatus) error
	Cancel(ctx context.Context, trx *entity.PaymentTransaction) error
	ListPending(ctx context.Context, limit int) ([]*entity.PaymentTransaction, error)
	// ListStale returns pending/processing runs where neither the transaction nor
	// any of its attempts changed after cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.PaymentTransaction, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]*entity.PaymentTransaction, error)
}

type transactionRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTransactionRepository(db database.PgxIface, log *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "transaction")),
	}
}

func (r *transactionRepository) CreateWithPlan(ctx context.Context, trx *entity.PaymentTransaction, plan []*entity.PaymentFallback) error {
	if trx.Metadata == nil {
		trx.Metadata = map[string]string{}
	}

	query := `
		INSERT INTO payment_transactions (id, tenant_id, external_id, amount, currency, status, provider_group,
			package_cost_id, metadata, refunded_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, query,
			trx.ID,
			trx.TenantID,
			trx.ExternalID,
			trx.Amount,
			trx.Currency,
			trx.Status,
			trx.ProviderGroup,
			trx.PackageCostID,
			trx.Metadata,
			trx.RefundedAmount,
			trx.CreatedAt,
			trx.UpdatedAt,
		)
		if err != nil {
			if _, dup := database.UniqueViolation(err); dup {
				return fmt.Errorf("external id %s: %w", trx.ExternalID, entity.ErrDuplicateTransaction)
			}
			return fmt.Errorf("insert transaction %s: %w", trx.ExternalID, err)
		}

		return insertFallbacks(ctx, tx, plan)
	})

	if err != nil {
		if errors.Is(err, entity.ErrDuplicateTransaction) {
			r.log.Warn("Duplicate external transaction id", zap.String("external_id", trx.ExternalID))
			return err
		}
		r.log.Error("Failed to create transaction with plan",
			zap.Error(err),
			zap.String("external_id", trx.ExternalID),
			zap.Int("plan_size", len(plan)),
		)
		return fmt.Errorf("create transaction %s: %w", trx.ExternalID, err)
	}

	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`

	trx, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction by ID",
			zap.Error(err),
			zap.String("transaction_id", id.String()),
		)
		return nil, fmt.Errorf("find transaction by ID %s: %w", id.String(), err)
	}

	return trx, nil
}

func (r *transactionRepository) FindByExternalID(ctx context.Context, externalID string) (*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE external_id = $1`

	trx, err := scanTransaction(r.db.QueryRow(ctx, query, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction by external ID",
			zap.Error(err),
			zap.String("external_id", externalID),
		)
		return nil, fmt.Errorf("find transaction by external ID %s: %w", externalID, err)
	}

	return trx, nil
}

// UpdateStatus moves trx forward and persists the bookkeeping fields carried on
// it. The write is a compare-and-set on the status trx was loaded with, so a
// concurrent transition makes this call fail instead of overwriting it.
func (r *transactionRepository) UpdateStatus(ctx context.Context, trx *entity.PaymentTransaction, status entity.TransactionStatus) error {
	if !trx.Status.CanTransitionTo(status) {
		return &entity.TransitionError{Entity: "transaction " + trx.ExternalID, From: string(trx.Status), To: string(status)}
	}

	now := time.Now()
	processedAt := trx.ProcessedAt
	if processedAt == nil && status.IsSettled() {
		processedAt = &now
	}

	query := `
		UPDATE payment_transactions
		SET status = $3, provider_id = $4, provider_ref = $5, refunded_amount = $6,
		    processed_at = $7, updated_at = $8
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query,
		trx.ID,
		trx.Status,
		status,
		trx.ProviderID,
		trx.ProviderRef,
		trx.RefundedAmount,
		processedAt,
		now,
	)
	if err != nil {
		r.log.Error("Failed to update transaction status",
			zap.Error(err),
			zap.String("external_id", trx.ExternalID),
			zap.String("from", string(trx.Status)),
			zap.String("to", string(status)),
		)
		return fmt.Errorf("update transaction %s status to %s: %w", trx.ExternalID, status, err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("transaction %s changed concurrently: %w", trx.ExternalID,
			&entity.TransitionError{Entity: "transaction " + trx.ExternalID, From: string(trx.Status), To: string(status)})
	}

	trx.Status = status
	trx.ProcessedAt = processedAt
	trx.UpdatedAt = now
	return nil
}

// Cancel only succeeds while the run has not produced a successful attempt.
func (r *transactionRepository) Cancel(ctx context.Context, trx *entity.PaymentTransaction) error {
	now := time.Now()

	query := `
		UPDATE payment_transactions t
		SET status = $2, processed_at = COALESCE(t.processed_at, $3), updated_at = $3
		WHERE t.id = $1
		  AND t.status IN ('pending', 'processing')
		  AND NOT EXISTS (
		      SELECT 1 FROM payment_fallbacks f
		      WHERE f.transaction_id = t.id AND f.status = 'succeeded'
		  )
	`

	result, err := r.db.Exec(ctx, query, trx.ID, entity.TransactionStatusCancelled, now)
	if err != nil {
		r.log.Error("Failed to cancel transaction",
			zap.Error(err),
			zap.String("external_id", trx.ExternalID),
		)
		return fmt.Errorf("cancel transaction %s: %w", trx.ExternalID, err)
	}

	if result.RowsAffected() == 0 {
		return &entity.TransitionError{
			Entity: "transaction " + trx.ExternalID,
			From:   string(trx.Status),
			To:     string(entity.TransactionStatusCancelled),
		}
	}

	trx.Status = entity.TransactionStatusCancelled
	if trx.ProcessedAt == nil {
		trx.ProcessedAt = &now
	}
	trx.UpdatedAt = now
	return nil
}

func (r *transactionRepository) ListPending(ctx context.Context, limit int) ([]*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE status IN ('pending', 'processing')
		ORDER BY updated_at ASC
		LIMIT $1
	`

	return r.list(ctx, "list pending transactions", query, limit)
}

func (r *transactionRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions t
		WHERE t.status IN ('pending', 'processing')
		  AND t.updated_at <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM payment_fallbacks f
			WHERE f.transaction_id = t.id AND f.updated_at > $1
		  )
		ORDER BY t.updated_at ASC
		LIMIT $2
	`

	return r.list(ctx, "list stale transactions", query, cutoff, limit)
}

func (r *transactionRepository) ListRecent(ctx context.Context, since time.Time, limit int) ([]*entity.PaymentTransaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM payment_transactions
		WHERE created_at >= $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	return r.list(ctx, "list recent transactions", query, since, limit)
}

func (r *transactionRepository) list(ctx context.Context, op, query string, args ...any) ([]*entity.PaymentTransaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to "+op, zap.Error(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var transactions []*entity.PaymentTransaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			r.log.Error("Failed to scan transaction row", zap.Error(err))
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, trx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*entity.PaymentTransaction, error) {
	var trx entity.PaymentTransaction
	err := row.Scan(
		&trx.ID,
		&trx.TenantID,
		&trx.ExternalID,
		&trx.Amount,
		&trx.Currency,
		&trx.Status,
		&trx.ProviderGroup,
		&trx.PackageCostID,
		&trx.Metadata,
		&trx.ProviderID,
		&trx.ProviderRef,
		&trx.RefundedAmount,
		&trx.ProcessedAt,
		&trx.CreatedAt,
		&trx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &trx, nil
}
