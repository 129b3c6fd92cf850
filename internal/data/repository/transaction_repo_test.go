package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"payment-orchestrator/internal/data/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func sampleTransaction(status entity.TransactionStatus) *entity.PaymentTransaction {
	now := time.Now()
	return &entity.PaymentTransaction{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		TenantID:     "tenant-1",
		ExternalID:   "PAY-TEST-1",
		Amount:       decimal.RequireFromString("100.00"),
		Currency:     "USD",
		Status:       status,
	}
}

func samplePlan(trx *entity.PaymentTransaction, names ...string) []*entity.PaymentFallback {
	plan := make([]*entity.PaymentFallback, len(names))
	for i, name := range names {
		plan[i] = &entity.PaymentFallback{
			BaseNoDelete:  entity.BaseNoDelete{ID: uuid.New()},
			TransactionID: trx.ID,
			ProviderID:    uuid.New(),
			ProviderName:  name,
			AttemptOrder:  i + 1,
			Status:        entity.FallbackStatusPending,
		}
	}
	return plan
}

func anyArgs(n int) []interface{} {
	args := make([]interface{}, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestTransactionRepository_CreateWithPlan_Commits(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusPending)
	plan := samplePlan(trx, "stripe", "paypal")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payment_fallbacks").
		WithArgs(plan[0].ID, trx.ID, plan[0].ProviderID, "stripe", 1, entity.FallbackStatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payment_fallbacks").
		WithArgs(plan[1].ID, trx.ID, plan[1].ProviderID, "paypal", 2, entity.FallbackStatusPending, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithPlan(context.Background(), trx, plan))
	assert.NotNil(t, trx.Metadata)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CreateWithPlan_DuplicateExternalID(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusPending)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").WithArgs(anyArgs(12)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "payment_transactions_external_id_key"})
	mock.ExpectRollback()

	err := repo.CreateWithPlan(context.Background(), trx, samplePlan(trx, "stripe"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrDuplicateTransaction))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_CreateWithPlan_RollsBackWhenPlanFails(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusPending)
	plan := samplePlan(trx, "stripe", "paypal")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payment_transactions").WithArgs(anyArgs(12)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payment_fallbacks").WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payment_fallbacks").WithArgs(anyArgs(8)...).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.CreateWithPlan(context.Background(), trx, plan)
	require.Error(t, err)
	assert.False(t, errors.Is(err, entity.ErrDuplicateTransaction))
	assert.Contains(t, err.Error(), "insert fallback attempt 2 (paypal)")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_UpdateStatus_RejectsBackwardMove(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusFailed)

	err := repo.UpdateStatus(context.Background(), trx, entity.TransactionStatusProcessing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidStateTransition))
	assert.Equal(t, entity.TransactionStatusFailed, trx.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_UpdateStatus_Completed(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusProcessing)
	providerID := uuid.New()
	ref := "ch_123"
	trx.ProviderID = &providerID
	trx.ProviderRef = &ref

	mock.ExpectExec("UPDATE payment_transactions").
		WithArgs(trx.ID, entity.TransactionStatusProcessing, entity.TransactionStatusCompleted,
			trx.ProviderID, trx.ProviderRef, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), trx, entity.TransactionStatusCompleted))
	assert.Equal(t, entity.TransactionStatusCompleted, trx.Status)
	assert.NotNil(t, trx.ProcessedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_UpdateStatus_ConcurrentChange(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusCompleted)

	mock.ExpectExec("UPDATE payment_transactions").WithArgs(anyArgs(8)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateStatus(context.Background(), trx, entity.TransactionStatusRefunded)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidStateTransition))
	assert.Equal(t, entity.TransactionStatusCompleted, trx.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Cancel(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	trx := sampleTransaction(entity.TransactionStatusProcessing)

	mock.ExpectExec("UPDATE payment_transactions t").
		WithArgs(trx.ID, entity.TransactionStatusCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Cancel(context.Background(), trx))
	assert.Equal(t, entity.TransactionStatusCancelled, trx.Status)

	trx2 := sampleTransaction(entity.TransactionStatusProcessing)
	mock.ExpectExec("UPDATE payment_transactions t").
		WithArgs(trx2.ID, entity.TransactionStatusCancelled, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Cancel(context.Background(), trx2)
	assert.True(t, errors.Is(err, entity.ErrInvalidStateTransition))
	assert.Equal(t, entity.TransactionStatusProcessing, trx2.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_FindByExternalID(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	mock.ExpectQuery("FROM payment_transactions WHERE external_id").
		WithArgs("PAY-MISSING").
		WillReturnError(pgx.ErrNoRows)

	trx, err := repo.FindByExternalID(context.Background(), "PAY-MISSING")
	require.NoError(t, err)
	assert.Nil(t, trx)

	id := uuid.New()
	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "tenant_id", "external_id", "amount", "currency", "status", "provider_group", "package_cost_id",
		"metadata", "provider_id", "provider_ref", "refunded_amount", "processed_at", "created_at", "updated_at",
	}).AddRow(
		id, "tenant-1", "PAY-1", decimal.RequireFromString("25.50"), "USD", entity.TransactionStatusPending, "all", nil,
		map[string]string{"order": "A-1"}, nil, nil, decimal.Zero, nil, now, now,
	)
	mock.ExpectQuery("FROM payment_transactions WHERE external_id").WithArgs("PAY-1").WillReturnRows(rows)

	trx, err = repo.FindByExternalID(context.Background(), "PAY-1")
	require.NoError(t, err)
	require.NotNil(t, trx)
	assert.Equal(t, id, trx.ID)
	assert.True(t, trx.Amount.Equal(decimal.RequireFromString("25.50")))
	assert.Equal(t, entity.TransactionStatusPending, trx.Status)
	assert.Equal(t, "A-1", trx.Metadata["order"])
	assert.Nil(t, trx.ProviderID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_ListStale(t *testing.T) {
	mock := newMock(t)
	repo := NewTransactionRepository(mock, zap.NewNop())

	cutoff := time.Now().Add(-10 * time.Minute)
	old := cutoff.Add(-time.Hour)
	rows := pgxmock.NewRows([]string{
		"id", "tenant_id", "external_id", "amount", "currency", "status", "provider_group", "package_cost_id",
		"metadata", "provider_id", "provider_ref", "refunded_amount", "processed_at", "created_at", "updated_at",
	}).AddRow(
		uuid.New(), "tenant-1", "PAY-STUCK", decimal.RequireFromString("10.00"), "USD", entity.TransactionStatusProcessing, "all", nil,
		map[string]string{}, nil, nil, decimal.Zero, nil, old, old,
	)
	mock.ExpectQuery(`FROM payment_transactions t WHERE t.status IN .+ AND t.updated_at <= \$1 AND NOT EXISTS .+ f.updated_at > \$1 .+ ORDER BY t.updated_at ASC LIMIT \$2`).
		WithArgs(cutoff, 100).
		WillReturnRows(rows)

	stale, err := repo.ListStale(context.Background(), cutoff, 100)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "PAY-STUCK", stale[0].ExternalID)
	assert.Equal(t, entity.TransactionStatusProcessing, stale[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
