// Package testutil provides an in-memory ledger that honours the same
// uniqueness and compare-and-set rules as the Postgres repositories.
package testutil

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/data/repository"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.Mutex
	transactions map[uuid.UUID]*entity.PaymentTransaction
	byExternalID map[string]uuid.UUID
	fallbacks    map[uuid.UUID][]*entity.PaymentFallback
	providers    []*entity.PaymentProvider
	audit        []*entity.AuditEntry

	// Injected failures.
	ProviderErr error
	AuditErr    error
	CreateErr   error
}

func NewStore() *Store {
	return &Store{
		transactions: make(map[uuid.UUID]*entity.PaymentTransaction),
		byExternalID: make(map[string]uuid.UUID),
		fallbacks:    make(map[uuid.UUID][]*entity.PaymentFallback),
	}
}

func (s *Store) Repository() *repository.Repository {
	return &repository.Repository{
		Transaction: &transactionRepo{s},
		Fallback:    &fallbackRepo{s},
		Provider:    &providerRepo{s},
		Audit:       &auditRepo{s},
	}
}

// AddProvider registers a provider and returns it.
func (s *Store) AddProvider(name string, rank int, active bool, config map[string]string) *entity.PaymentProvider {
	return s.AddGroupProvider(name, entity.ProviderGroupAll, rank, active, config)
}

func (s *Store) AddGroupProvider(name, group string, rank int, active bool, config map[string]string) *entity.PaymentProvider {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	p := &entity.PaymentProvider{
		Base:     entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		Name:     name,
		Group:    group,
		Config:   config,
		IsActive: active,
		Rank:     rank,
	}
	s.providers = append(s.providers, p)
	return p
}

// SetProviderActive mutates the registry the way an admin action would.
func (s *Store) SetProviderActive(name string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.providers {
		if p.Name == name {
			p.IsActive = active
		}
	}
}

func (s *Store) TransactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

func (s *Store) Transaction(externalID string) *entity.PaymentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternalID[externalID]
	if !ok {
		return nil
	}
	return cloneTransaction(s.transactions[id])
}

func (s *Store) Fallbacks(externalID string) []*entity.PaymentFallback {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternalID[externalID]
	if !ok {
		return nil
	}
	return cloneFallbacks(s.fallbacks[id])
}

func (s *Store) AuditEntries(externalID string) []*entity.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.byExternalID[externalID]
	var out []*entity.AuditEntry
	for _, e := range s.audit {
		if e.TransactionID == id {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// Backdate moves every timestamp of a transaction and its plan into the past.
func (s *Store) Backdate(externalID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	trx := s.transactions[s.byExternalID[externalID]]
	if trx == nil {
		return
	}
	trx.CreatedAt = trx.CreatedAt.Add(-d)
	trx.UpdatedAt = trx.UpdatedAt.Add(-d)
	for _, f := range s.fallbacks[trx.ID] {
		f.CreatedAt = f.CreatedAt.Add(-d)
		f.UpdatedAt = f.UpdatedAt.Add(-d)
	}
}

// ForceStatus overwrites a status without validation, to set up a scenario.
func (s *Store) ForceStatus(externalID string, status entity.TransactionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if trx := s.transactions[s.byExternalID[externalID]]; trx != nil {
		trx.Status = status
	}
}

func cloneTransaction(t *entity.PaymentTransaction) *entity.PaymentTransaction {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	if t.ProviderID != nil {
		id := *t.ProviderID
		c.ProviderID = &id
	}
	if t.ProviderRef != nil {
		ref := *t.ProviderRef
		c.ProviderRef = &ref
	}
	if t.ProcessedAt != nil {
		at := *t.ProcessedAt
		c.ProcessedAt = &at
	}
	return &c
}

func cloneFallbacks(in []*entity.PaymentFallback) []*entity.PaymentFallback {
	out := make([]*entity.PaymentFallback, len(in))
	for i, f := range in {
		c := *f
		out[i] = &c
	}
	return out
}

// ==================== TRANSACTIONS ====================

type transactionRepo struct{ s *Store }

func (r *transactionRepo) CreateWithPlan(ctx context.Context, trx *entity.PaymentTransaction, plan []*entity.PaymentFallback) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.CreateErr != nil {
		return s.CreateErr
	}
	if _, exists := s.byExternalID[trx.ExternalID]; exists {
		return fmt.Errorf("external id %s: %w", trx.ExternalID, entity.ErrDuplicateTransaction)
	}

	seen := make(map[string]bool, len(plan))
	for _, f := range plan {
		key := fmt.Sprintf("%s/%d", f.ProviderID, f.AttemptOrder)
		if seen[key] {
			return fmt.Errorf("duplicate plan row %s", key)
		}
		seen[key] = true
	}

	if trx.Metadata == nil {
		trx.Metadata = map[string]string{}
	}
	s.transactions[trx.ID] = cloneTransaction(trx)
	s.byExternalID[trx.ExternalID] = trx.ID
	s.fallbacks[trx.ID] = cloneFallbacks(plan)
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	trx, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	return cloneTransaction(trx), nil
}

func (r *transactionRepo) FindByExternalID(ctx context.Context, externalID string) (*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.byExternalID[externalID]
	if !ok {
		return nil, nil
	}
	return cloneTransaction(r.s.transactions[id]), nil
}

func (r *transactionRepo) UpdateStatus(ctx context.Context, trx *entity.PaymentTransaction, status entity.TransactionStatus) error {
	transitionErr := &entity.TransitionError{Entity: "transaction " + trx.ExternalID, From: string(trx.Status), To: string(status)}
	if !trx.Status.CanTransitionTo(status) {
		return transitionErr
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.transactions[trx.ID]
	if !ok || stored.Status != trx.Status {
		return fmt.Errorf("transaction %s changed concurrently: %w", trx.ExternalID, transitionErr)
	}

	now := time.Now()
	processedAt := trx.ProcessedAt
	if processedAt == nil && status.IsSettled() {
		processedAt = &now
	}

	trx.Status = status
	trx.ProcessedAt = processedAt
	trx.UpdatedAt = now

	updated := cloneTransaction(trx)
	updated.CreatedAt = stored.CreatedAt
	r.s.transactions[trx.ID] = updated
	return nil
}

func (r *transactionRepo) Cancel(ctx context.Context, trx *entity.PaymentTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.transactions[trx.ID]
	reject := &entity.TransitionError{Entity: "transaction " + trx.ExternalID, From: string(trx.Status), To: string(entity.TransactionStatusCancelled)}
	if !ok || (stored.Status != entity.TransactionStatusPending && stored.Status != entity.TransactionStatusProcessing) {
		return reject
	}
	for _, f := range r.s.fallbacks[trx.ID] {
		if f.Status == entity.FallbackStatusSucceeded {
			return reject
		}
	}

	now := time.Now()
	stored.Status = entity.TransactionStatusCancelled
	if stored.ProcessedAt == nil {
		stored.ProcessedAt = &now
	}
	stored.UpdatedAt = now

	trx.Status = stored.Status
	trx.ProcessedAt = stored.ProcessedAt
	trx.UpdatedAt = now
	return nil
}

func (r *transactionRepo) ListPending(ctx context.Context, limit int) ([]*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.PaymentTransaction
	for _, trx := range r.s.transactions {
		if trx.Status == entity.TransactionStatusPending || trx.Status == entity.TransactionStatusProcessing {
			out = append(out, cloneTransaction(trx))
		}
	}
	slices.SortFunc(out, func(a, b *entity.PaymentTransaction) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *transactionRepo) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.PaymentTransaction
	for _, trx := range r.s.transactions {
		if trx.Status != entity.TransactionStatusPending && trx.Status != entity.TransactionStatusProcessing {
			continue
		}
		if trx.UpdatedAt.After(cutoff) {
			continue
		}
		moving := false
		for _, f := range r.s.fallbacks[trx.ID] {
			if f.UpdatedAt.After(cutoff) {
				moving = true
			}
		}
		if !moving {
			out = append(out, cloneTransaction(trx))
		}
	}
	slices.SortFunc(out, func(a, b *entity.PaymentTransaction) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *transactionRepo) ListRecent(ctx context.Context, since time.Time, limit int) ([]*entity.PaymentTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*entity.PaymentTransaction
	for _, trx := range r.s.transactions {
		if !trx.CreatedAt.Before(since) {
			out = append(out, cloneTransaction(trx))
		}
	}
	slices.SortFunc(out, func(a, b *entity.PaymentTransaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== FALLBACKS ====================

type fallbackRepo struct{ s *Store }

func (r *fallbackRepo) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.PaymentFallback, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return cloneFallbacks(r.s.fallbacks[transactionID]), nil
}

func (r *fallbackRepo) UpdateStatus(ctx context.Context, f *entity.PaymentFallback, status entity.FallbackStatus, message *string) error {
	transitionErr := &entity.TransitionError{Entity: fmt.Sprintf("attempt %d (%s)", f.AttemptOrder, f.ProviderName), From: string(f.Status), To: string(status)}
	if !f.Status.CanTransitionTo(status) {
		return transitionErr
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var stored *entity.PaymentFallback
	for _, row := range r.s.fallbacks[f.TransactionID] {
		if row.ID == f.ID {
			stored = row
		}
		if status == entity.FallbackStatusSucceeded && row.Status == entity.FallbackStatusSucceeded {
			return fmt.Errorf("second successful attempt for transaction %s: %w", f.TransactionID, transitionErr)
		}
	}
	if stored == nil || stored.Status != f.Status {
		return fmt.Errorf("fallback %s changed concurrently: %w", f.ID, transitionErr)
	}

	now := time.Now()
	attemptedAt := f.AttemptedAt
	if status == entity.FallbackStatusAttempted {
		attemptedAt = &now
	}

	f.Status = status
	f.ErrorMessage = message
	f.AttemptedAt = attemptedAt
	f.UpdatedAt = now

	*stored = *f
	return nil
}

// ==================== PROVIDERS ====================

type providerRepo struct{ s *Store }

func (r *providerRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.providers {
		if p.ID == id {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

// FindActiveOrdered hands out the live records, like a driver returning
// shared rows, so callers that keep them would see later admin changes.
func (r *providerRepo) FindActiveOrdered(ctx context.Context, group string) ([]*entity.PaymentProvider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.s.ProviderErr != nil {
		return nil, r.s.ProviderErr
	}

	var out []*entity.PaymentProvider
	for _, p := range r.s.providers {
		if !p.IsActive || p.DeletedAt != nil {
			continue
		}
		if group != "" && group != entity.ProviderGroupAll && p.Group != group {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b *entity.PaymentProvider) int {
		if a.Rank != b.Rank {
			return a.Rank - b.Rank
		}
		if a.Name < b.Name {
			return -1
		}
		if a.Name > b.Name {
			return 1
		}
		return 0
	})
	return out, nil
}

// ==================== AUDIT ====================

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(ctx context.Context, entry *entity.AuditEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.AuditErr != nil {
		return r.s.AuditErr
	}
	c := *entry
	c.Context = maps.Clone(entry.Context)
	r.s.audit = append(r.s.audit, &c)
	return nil
}

func (r *auditRepo) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*entity.AuditEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.AuditEntry
	for _, e := range r.s.audit {
		if e.TransactionID == transactionID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}
