package usecase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/data/repository"
	"payment-orchestrator/internal/dto/response"
	"payment-orchestrator/internal/gateway"

	"go.uber.org/zap"
)

type ProviderService interface {
	// ActiveProvidersOrdered returns an owned snapshot: rank ascending, then name.
	ActiveProvidersOrdered(ctx context.Context, group string) ([]*entity.PaymentProvider, error)
	GetPaymentProviders(ctx context.Context, group string) ([]response.ProviderResponse, error)
}

type providerService struct {
	repo     repository.ProviderRepository
	resolver *gateway.Resolver
	log      *zap.Logger
}

func NewProviderService(repo repository.ProviderRepository, resolver *gateway.Resolver, log *zap.Logger) ProviderService {
	return &providerService{
		repo:     repo,
		resolver: resolver,
		log:      log.With(zap.String("service", "provider")),
	}
}

func (s *providerService) ActiveProvidersOrdered(ctx context.Context, group string) ([]*entity.PaymentProvider, error) {
	group = NormalizeGroup(group)

	providers, err := s.repo.FindActiveOrdered(ctx, group)
	if err != nil {
		s.log.Error("Failed to read provider registry", zap.Error(err), zap.String("group", group))
		return nil, fmt.Errorf("read provider registry: %w", err)
	}

	snapshot := make([]*entity.PaymentProvider, 0, len(providers))
	for _, p := range providers {
		if !p.IsActive || p.DeletedAt != nil {
			continue
		}
		snapshot = append(snapshot, p.Clone())
	}

	slices.SortStableFunc(snapshot, func(a, b *entity.PaymentProvider) int {
		return cmp.Or(cmp.Compare(a.Rank, b.Rank), cmp.Compare(a.Name, b.Name))
	})
	return snapshot, nil
}

func (s *providerService) GetPaymentProviders(ctx context.Context, group string) ([]response.ProviderResponse, error) {
	providers, err := s.ActiveProvidersOrdered(ctx, group)
	if err != nil {
		return nil, err
	}

	result := make([]response.ProviderResponse, len(providers))
	for i, p := range providers {
		result[i] = response.ProviderResponse{
			Name:      p.Name,
			Group:     p.Group,
			Rank:      p.Rank,
			Supported: s.resolver.Supports(p.Name),
		}
	}
	return result, nil
}

// NormalizeGroup maps the URL routing segment onto a registry group.
func NormalizeGroup(group string) string {
	group = strings.ToLower(strings.TrimSpace(group))
	if group == "" {
		return entity.ProviderGroupAll
	}
	return group
}
