package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/audit"
	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/data/repository"
	"payment-orchestrator/internal/dto/request"
	"payment-orchestrator/internal/dto/response"
	"payment-orchestrator/internal/event"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/pkg/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentService interface {
	// Payment run
	ProcessPayment(ctx context.Context, group string, req *request.CreatePaymentRequest) (*response.PaymentResult, error)
	Verify(ctx context.Context, externalID string) (*response.VerificationResult, error)
	Refund(ctx context.Context, externalID string, req *request.RefundRequest) (*response.RefundResult, error)
	GetTransaction(ctx context.Context, externalID string, withDiagnostics bool) (*response.TransactionDetailResponse, error)

	// Admin
	Cancel(ctx context.Context, externalID string) (*response.TransactionResponse, error)
	OpenDispute(ctx context.Context, externalID, reason string) (*response.TransactionResponse, error)
	ResolveDispute(ctx context.Context, externalID string, won bool) (*response.TransactionResponse, error)
	ListPending(ctx context.Context, limit int) ([]response.TransactionResponse, error)
	ListRecent(ctx context.Context, window time.Duration, limit int) ([]response.TransactionResponse, error)
	SweepStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type paymentService struct {
	repo      *repository.Repository
	providers ProviderService
	resolver  *gateway.Resolver
	events    *event.Dispatcher
	audit     *audit.Log
	config    utils.PaymentConfig
	log       *zap.Logger
}

const defaultAttemptTimeout = 15 * time.Second

func NewPaymentService(
	repo *repository.Repository,
	providers ProviderService,
	resolver *gateway.Resolver,
	events *event.Dispatcher,
	auditLog *audit.Log,
	config utils.PaymentConfig,
	log *zap.Logger,
) PaymentService {
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = defaultAttemptTimeout
	}
	return &paymentService{
		repo:      repo,
		providers: providers,
		resolver:  resolver,
		events:    events,
		audit:     auditLog,
		config:    config,
		log:       log.With(zap.String("service", "payment")),
	}
}

func (s *paymentService) ProcessPayment(ctx context.Context, group string, req *request.CreatePaymentRequest) (*response.PaymentResult, error) {
	// Validate request
	if errs := utils.ValidateStruct(req); len(errs) > 0 {
		s.log.Warn("Payment validation failed", zap.Any("errors", errs))
		return nil, &entity.ValidationError{Fields: errs, Reason: utils.FormatValidationErrors(errs)}
	}
	if err := checkAmount("amount", req.Amount); err != nil {
		return nil, err
	}

	group = NormalizeGroup(group)
	currency := req.Currency
	if currency == "" {
		currency = s.config.DefaultCurrency
	}

	providers, err := s.providers.ActiveProvidersOrdered(ctx, group)
	if err != nil {
		return nil, err
	}

	externalID := utils.GenerateTransactionID()
	if req.TransactionID != nil {
		externalID = *req.TransactionID
	}

	now := time.Now().UTC()
	trx := &entity.PaymentTransaction{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        utils.GenerateUUID(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		TenantID:       req.TenantID,
		ExternalID:     externalID,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         entity.TransactionStatusPending,
		ProviderGroup:  group,
		PackageCostID:  req.PackageCostID,
		Metadata:       req.Metadata,
		RefundedAmount: decimal.Zero,
	}

	// Plan di-snapshot sekarang; perubahan registry setelah ini tidak berpengaruh
	plan := make([]*entity.PaymentFallback, len(providers))
	for i, p := range providers {
		plan[i] = &entity.PaymentFallback{
			BaseNoDelete: entity.BaseNoDelete{
				ID:        utils.GenerateUUID(),
				CreatedAt: now,
				UpdatedAt: now,
			},
			TransactionID: trx.ID,
			ProviderID:    p.ID,
			ProviderName:  p.Name,
			AttemptOrder:  i + 1,
			Status:        entity.FallbackStatusPending,
		}
	}

	if err := s.repo.Transaction.CreateWithPlan(ctx, trx, plan); err != nil {
		if errors.Is(err, entity.ErrDuplicateTransaction) {
			return nil, err
		}
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	// A started run always reaches a terminal state, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	if len(plan) == 0 {
		if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusFailed); err != nil {
			return nil, s.ledgerFailure(ctx, trx, "mark transaction failed", err)
		}
		s.emit(ctx, event.PaymentFailed, trx, entity.AuditLevelError, "no active payment provider", map[string]any{
			"provider_group": group,
			"attempts":       0,
		})
		return nil, fmt.Errorf("provider group %q has no active provider: %w", group, entity.ErrMethodNotSupported)
	}

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusProcessing); err != nil {
		return nil, s.ledgerFailure(ctx, trx, "mark transaction processing", err)
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name
	}
	s.emit(ctx, event.PaymentInitiated, trx, entity.AuditLevelInfo, "payment initiated", map[string]any{
		"amount":         trx.Amount.String(),
		"currency":       trx.Currency,
		"provider_group": group,
		"plan":           names,
	})

	s.log.Info("Payment run started",
		zap.String("external_id", trx.ExternalID),
		zap.String("tenant_id", trx.TenantID),
		zap.String("amount", trx.Amount.String()),
		zap.Strings("plan", names),
	)

	return s.run(ctx, trx, plan, providers)
}

// run drives the plan strictly in order and stops at the first success.
func (s *paymentService) run(ctx context.Context, trx *entity.PaymentTransaction, plan []*entity.PaymentFallback, providers []*entity.PaymentProvider) (*response.PaymentResult, error) {
	intent := gateway.Intent{
		ExternalID: trx.ExternalID,
		TenantID:   trx.TenantID,
		Amount:     trx.Amount,
		Currency:   trx.Currency,
		Metadata:   trx.Metadata,
	}

	for i, attempt := range plan {
		provider := providers[i]

		cancelled, err := s.cancelledMeanwhile(ctx, trx)
		if err != nil {
			return nil, err
		}
		if cancelled {
			return nil, s.abandon(ctx, trx, plan[i:])
		}

		if err := s.repo.Fallback.UpdateStatus(ctx, attempt, entity.FallbackStatusAttempted, nil); err != nil {
			return nil, s.ledgerFailure(ctx, trx, "mark attempt started", err)
		}

		outcome, err := s.charge(ctx, provider, intent)
		if err == nil && outcome.Success {
			return s.complete(ctx, trx, attempt, provider, outcome, plan[i+1:])
		}

		level := entity.AuditLevelWarning
		message := outcome.Message
		if err != nil {
			level = entity.AuditLevelError
			message = err.Error()
		}
		if message == "" {
			message = "declined by provider"
		}

		if err := s.repo.Fallback.UpdateStatus(ctx, attempt, entity.FallbackStatusFailed, &message); err != nil {
			return nil, s.ledgerFailure(ctx, trx, "mark attempt failed", err)
		}

		s.emit(ctx, event.PaymentAttemptFailed, trx, level, "provider attempt failed", map[string]any{
			"provider":      provider.Name,
			"attempt_order": attempt.AttemptOrder,
			"error":         message,
		})
		s.log.Warn("Provider attempt failed",
			zap.String("external_id", trx.ExternalID),
			zap.String("provider", provider.Name),
			zap.Int("attempt_order", attempt.AttemptOrder),
			zap.String("level", string(level)),
		)
	}

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusFailed); err != nil {
		if errors.Is(err, entity.ErrInvalidStateTransition) {
			if cancelled, _ := s.cancelledMeanwhile(ctx, trx); cancelled {
				return nil, fmt.Errorf("transaction %s: %w", trx.ExternalID, entity.ErrTransactionCancelled)
			}
		}
		return nil, s.ledgerFailure(ctx, trx, "mark transaction failed", err)
	}

	s.emit(ctx, event.PaymentFailed, trx, entity.AuditLevelError, "all providers failed", map[string]any{
		"attempts": len(plan),
	})

	return nil, &entity.PaymentFailedError{ExternalID: trx.ExternalID, Attempts: len(plan)}
}

func (s *paymentService) complete(
	ctx context.Context,
	trx *entity.PaymentTransaction,
	attempt *entity.PaymentFallback,
	provider *entity.PaymentProvider,
	outcome gateway.Outcome,
	unused []*entity.PaymentFallback,
) (*response.PaymentResult, error) {
	if err := s.repo.Fallback.UpdateStatus(ctx, attempt, entity.FallbackStatusSucceeded, nil); err != nil {
		s.audit.Record(ctx, trx.ID, entity.AuditLevelCritical, "provider charged but attempt could not be recorded", map[string]any{
			"provider":     provider.Name,
			"provider_ref": outcome.ProviderRef,
			"error":        err.Error(),
		})
		return nil, s.ledgerFailure(ctx, trx, "mark attempt succeeded", err)
	}

	providerID := provider.ID
	ref := outcome.ProviderRef
	trx.ProviderID = &providerID
	trx.ProviderRef = &ref

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusCompleted); err != nil {
		trx.ProviderID, trx.ProviderRef = nil, nil
		if errors.Is(err, entity.ErrInvalidStateTransition) {
			// cancel masuk di antara charge dan pencatatan: uang sudah ditarik provider
			s.audit.Record(ctx, trx.ID, entity.AuditLevelCritical, "provider charged after cancellation; manual reconciliation required", map[string]any{
				"provider":     provider.Name,
				"provider_ref": ref,
			})
			s.skip(ctx, trx, unused)
			return nil, fmt.Errorf("transaction %s: %w", trx.ExternalID, entity.ErrTransactionCancelled)
		}
		return nil, s.ledgerFailure(ctx, trx, "mark transaction completed", err)
	}

	s.skip(ctx, trx, unused)

	s.emit(ctx, event.PaymentCompleted, trx, entity.AuditLevelInfo, "payment completed", map[string]any{
		"provider":      provider.Name,
		"provider_ref":  ref,
		"attempt_order": attempt.AttemptOrder,
	})

	s.log.Info("Payment completed",
		zap.String("external_id", trx.ExternalID),
		zap.String("provider", provider.Name),
		zap.Int("attempt_order", attempt.AttemptOrder),
	)

	return &response.PaymentResult{
		Success:       true,
		TransactionID: trx.ExternalID,
		Status:        trx.Status,
		MethodUsed:    provider.Name,
		Amount:        trx.Amount,
		Currency:      trx.Currency,
	}, nil
}

func (s *paymentService) charge(ctx context.Context, provider *entity.PaymentProvider, intent gateway.Intent) (gateway.Outcome, error) {
	charger, err := s.resolver.Charger(provider)
	if err != nil {
		return gateway.Outcome{}, err
	}
	return callProvider(ctx, s.config.AttemptTimeout, provider.Name, func(ctx context.Context) (gateway.Outcome, error) {
		return charger.Charge(ctx, intent)
	})
}

// callProvider bounds one adapter call. The call runs in its own goroutine so
// an adapter that ignores ctx still cannot hold the run past the deadline.
func callProvider(ctx context.Context, timeout time.Duration, name string, call func(ctx context.Context) (gateway.Outcome, error)) (gateway.Outcome, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		outcome gateway.Outcome
		err     error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%s adapter panic: %v", name, r)}
			}
		}()
		outcome, err := call(callCtx)
		done <- result{outcome: outcome, err: err}
	}()

	select {
	case r := <-done:
		return r.outcome, r.err
	case <-callCtx.Done():
		// answer that raced the deadline still wins
		select {
		case r := <-done:
			return r.outcome, r.err
		default:
		}
		return gateway.Outcome{}, fmt.Errorf("%s did not answer within %s: %w", name, timeout, callCtx.Err())
	}
}

func (s *paymentService) cancelledMeanwhile(ctx context.Context, trx *entity.PaymentTransaction) (bool, error) {
	current, err := s.repo.Transaction.FindByID(ctx, trx.ID)
	if err != nil {
		return false, fmt.Errorf("reload transaction %s: %w", trx.ExternalID, err)
	}
	if current == nil {
		return false, fmt.Errorf("transaction %s disappeared during run", trx.ExternalID)
	}
	return current.Status == entity.TransactionStatusCancelled, nil
}

func (s *paymentService) abandon(ctx context.Context, trx *entity.PaymentTransaction, remaining []*entity.PaymentFallback) error {
	s.skip(ctx, trx, remaining)
	s.log.Info("Payment run stopped by cancellation",
		zap.String("external_id", trx.ExternalID),
		zap.Int("skipped", len(remaining)),
	)
	return fmt.Errorf("transaction %s: %w", trx.ExternalID, entity.ErrTransactionCancelled)
}

// skip closes plan rows that will never run.
func (s *paymentService) skip(ctx context.Context, trx *entity.PaymentTransaction, rows []*entity.PaymentFallback) {
	for _, f := range rows {
		if f.Status != entity.FallbackStatusPending {
			continue
		}
		if err := s.repo.Fallback.UpdateStatus(ctx, f, entity.FallbackStatusSkipped, nil); err != nil {
			s.log.Error("Failed to skip plan row",
				zap.Error(err),
				zap.String("external_id", trx.ExternalID),
				zap.Int("attempt_order", f.AttemptOrder),
			)
		}
	}
}

// ledgerFailure audits a persistence error that aborts the run.
func (s *paymentService) ledgerFailure(ctx context.Context, trx *entity.PaymentTransaction, op string, err error) error {
	s.log.Error("Ledger write failed",
		zap.Error(err),
		zap.String("external_id", trx.ExternalID),
		zap.String("operation", op),
	)
	s.audit.Record(ctx, trx.ID, entity.AuditLevelCritical, "ledger write failed: "+op, map[string]any{
		"error": err.Error(),
	})
	return fmt.Errorf("%s for %s: %w", op, trx.ExternalID, err)
}

func (s *paymentService) emit(ctx context.Context, t event.Type, trx *entity.PaymentTransaction, level entity.AuditLevel, message string, payload map[string]any) {
	s.events.Dispatch(ctx, event.New(t, trx, level, message, payload))
}

// maxAmount is the first value that no longer fits NUMERIC(18,2).
var maxAmount = decimal.New(1, 16)

// checkAmount enforces what the ledger column can store: two decimal places
// and fewer than 16 integer digits.
func checkAmount(field string, amount decimal.Decimal) error {
	msg := ""
	switch {
	case !amount.Equal(amount.Round(2)):
		msg = "At most 2 decimal places"
	case !amount.LessThan(maxAmount):
		msg = "Must be less than " + maxAmount.String()
	default:
		return nil
	}
	return &entity.ValidationError{
		Fields: map[string]string{field: msg},
		Reason: field + ": " + msg,
	}
}
