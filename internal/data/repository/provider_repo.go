package repository

import (
	"context"
	"errors"
	"fmt"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ProviderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentProvider, error)
	// FindActiveOrdered returns active providers by rank, then name. An empty
	// group or entity.ProviderGroupAll selects every group.
	FindActiveOrdered(ctx context.Context, group string) ([]*entity.PaymentProvider, error)
}

type providerRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewProviderRepository(db database.PgxIface, log *zap.Logger) ProviderRepository {
	return &providerRepository{
		db:  db,
		log: log.With(zap.String("repository", "provider")),
	}
}

func (r *providerRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentProvider, error) {
	query := `
		SELECT id, name, provider_group, config, is_active, rank, created_at, updated_at, deleted_at
		FROM payment_providers
		WHERE id = $1
	`

	var p entity.PaymentProvider
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Group,
		&p.Config,
		&p.IsActive,
		&p.Rank,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.DeletedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find provider by ID",
			zap.Error(err),
			zap.String("provider_id", id.String()),
		)
		return nil, fmt.Errorf("find provider by ID %s: %w", id.String(), err)
	}

	return &p, nil
}

func (r *providerRepository) FindActiveOrdered(ctx context.Context, group string) ([]*entity.PaymentProvider, error) {
	query := `
		SELECT id, name, provider_group, config, is_active, rank, created_at, updated_at
		FROM payment_providers
		WHERE is_active = true AND deleted_at IS NULL
		  AND ($1 = '' OR $1 = 'all' OR provider_group = $1)
		ORDER BY rank ASC, name ASC
	`

	rows, err := r.db.Query(ctx, query, group)
	if err != nil {
		r.log.Error("Failed to find active providers", zap.Error(err), zap.String("group", group))
		return nil, fmt.Errorf("find active providers: %w", err)
	}
	defer rows.Close()

	var providers []*entity.PaymentProvider
	for rows.Next() {
		var p entity.PaymentProvider
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Group,
			&p.Config,
			&p.IsActive,
			&p.Rank,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan provider row", zap.Error(err))
			return nil, fmt.Errorf("scan provider row: %w", err)
		}
		providers = append(providers, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find active providers: %w", err)
	}

	return providers, nil
}
