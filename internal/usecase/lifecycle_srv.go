package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/dto/request"
	"payment-orchestrator/internal/dto/response"
	"payment-orchestrator/internal/event"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/pkg/utils"

	"go.uber.org/zap"
)

const sweepBatch = 100

func (s *paymentService) load(ctx context.Context, externalID string) (*entity.PaymentTransaction, error) {
	trx, err := s.repo.Transaction.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", externalID, err)
	}
	if trx == nil {
		return nil, fmt.Errorf("transaction %s: %w", externalID, entity.ErrTransactionNotFound)
	}
	return trx, nil
}

// provider used for a settled charge, or nil when none is recorded.
func (s *paymentService) chargedProvider(ctx context.Context, trx *entity.PaymentTransaction) (*entity.PaymentProvider, error) {
	if trx.ProviderID == nil {
		return nil, nil
	}
	p, err := s.repo.Provider.FindByID(ctx, *trx.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider for %s: %w", trx.ExternalID, err)
	}
	if p == nil {
		return nil, fmt.Errorf("provider %s of %s is gone: %w", trx.ProviderID.String(), trx.ExternalID, entity.ErrMethodNotSupported)
	}
	return p, nil
}

func (s *paymentService) Verify(ctx context.Context, externalID string) (*response.VerificationResult, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}

	result := &response.VerificationResult{
		Success:       true,
		TransactionID: trx.ExternalID,
		Status:        trx.Status,
		CheckedAt:     time.Now().UTC(),
	}

	fallbacks, err := s.repo.Fallback.FindByTransactionID(ctx, trx.ID)
	if err != nil {
		return nil, fmt.Errorf("load attempts of %s: %w", externalID, err)
	}

	// succeeded attempt first, otherwise the last one that actually ran
	var target *entity.PaymentFallback
	for _, f := range fallbacks {
		if f.Status == entity.FallbackStatusSucceeded {
			target = f
			break
		}
		if f.Status == entity.FallbackStatusAttempted || f.Status == entity.FallbackStatusFailed {
			target = f
		}
	}
	if target == nil {
		return result, nil
	}

	provider, err := s.repo.Provider.FindByID(ctx, target.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider for %s: %w", externalID, err)
	}
	if provider == nil {
		return nil, fmt.Errorf("provider %s of %s is gone: %w", target.ProviderName, externalID, entity.ErrMethodNotSupported)
	}

	verifier, err := s.resolver.Verifier(provider)
	if err != nil {
		return nil, err
	}

	ref := trx.ExternalID
	if trx.ProviderRef != nil && trx.ProviderID != nil && *trx.ProviderID == provider.ID {
		ref = *trx.ProviderRef
	}

	result.Provider = provider.Name
	outcome, err := callProvider(ctx, s.config.AttemptTimeout, provider.Name, func(ctx context.Context) (gateway.Outcome, error) {
		return verifier.Verify(ctx, ref)
	})
	if err != nil {
		s.audit.Record(ctx, trx.ID, entity.AuditLevelError, "verification call failed", map[string]any{
			"provider": provider.Name,
			"error":    err.Error(),
		})
		result.ProviderStatus = gateway.StatusUnknown
		return result, nil
	}

	result.ProviderStatus = outcome.Status
	result.Verified = outcome.Success
	s.audit.Record(ctx, trx.ID, entity.AuditLevelInfo, "verification performed", map[string]any{
		"provider":        provider.Name,
		"provider_status": outcome.Status,
		"ledger_status":   string(trx.Status),
	})
	return result, nil
}

func (s *paymentService) Refund(ctx context.Context, externalID string, req *request.RefundRequest) (*response.RefundResult, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if trx.Status != entity.TransactionStatusCompleted {
		return nil, fmt.Errorf("transaction %s is %s: %w", externalID, trx.Status, entity.ErrInvalidRefundState)
	}

	remaining := trx.RefundableAmount()
	amount := remaining
	if req != nil && req.Amount != nil {
		amount = *req.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(remaining) {
		msg := fmt.Sprintf("Must be greater than 0 and at most %s", remaining.StringFixed(2))
		return nil, &entity.ValidationError{Fields: map[string]string{"amount": msg}, Reason: "amount: " + msg}
	}
	if err := checkAmount("amount", amount); err != nil {
		return nil, err
	}

	provider, err := s.chargedProvider(ctx, trx)
	if err != nil {
		return nil, err
	}
	if provider == nil || trx.ProviderRef == nil {
		// biasanya transaksi yang diselesaikan sweeper: refund harus manual
		s.audit.Record(ctx, trx.ID, entity.AuditLevelCritical, "refund requested but provider reference is missing; manual reconciliation required", map[string]any{
			"amount": amount.String(),
			"actor":  utils.GetActorFromContext(ctx),
		})
		return nil, fmt.Errorf("completed transaction %s has no provider reference, refund needs manual reconciliation: %w", externalID, entity.ErrInvalidRefundState)
	}
	refunder, err := s.resolver.Refunder(provider)
	if err != nil {
		return nil, err
	}

	// refund dieksekusi di luar siklus request
	ctx = context.WithoutCancel(ctx)
	ref := *trx.ProviderRef

	outcome, err := callProvider(ctx, s.config.AttemptTimeout, provider.Name, func(ctx context.Context) (gateway.Outcome, error) {
		return refunder.Refund(ctx, ref, amount)
	})

	if err != nil {
		// hasil di sisi provider tidak diketahui: jangan tebak, tandai refund_failed
		if uerr := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusRefundFailed); uerr != nil {
			return nil, s.refundRaced(ctx, trx, provider, "refund call failed", uerr)
		}
		s.emit(ctx, event.PaymentRefundFailed, trx, entity.AuditLevelCritical, "refund outcome unknown; manual reconciliation required", map[string]any{
			"provider": provider.Name,
			"amount":   amount.String(),
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("refund of %s: %w", externalID, entity.ErrRefundFailed)
	}

	if !outcome.Success {
		s.audit.Record(ctx, trx.ID, entity.AuditLevelWarning, "refund declined by provider", map[string]any{
			"provider": provider.Name,
			"amount":   amount.String(),
			"message":  outcome.Message,
		})
		return nil, fmt.Errorf("refund of %s: %w", externalID, entity.ErrRefundDeclined)
	}

	trx.RefundedAmount = trx.RefundedAmount.Add(amount)
	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusRefunded); err != nil {
		return nil, s.refundRaced(ctx, trx, provider, "provider refunded", err)
	}

	s.emit(ctx, event.PaymentRefunded, trx, entity.AuditLevelInfo, "payment refunded", map[string]any{
		"provider":        provider.Name,
		"amount":          amount.String(),
		"refunded_amount": trx.RefundedAmount.String(),
		"partial":         trx.RefundedAmount.LessThan(trx.Amount),
	})

	return &response.RefundResult{
		Success:        true,
		TransactionID:  trx.ExternalID,
		Status:         trx.Status,
		RefundedAmount: trx.RefundedAmount,
		Currency:       trx.Currency,
	}, nil
}

// refundRaced handles a refund whose ledger write lost against a concurrent
// transition (typically a dispute). The refund fails closed.
func (s *paymentService) refundRaced(ctx context.Context, trx *entity.PaymentTransaction, provider *entity.PaymentProvider, what string, err error) error {
	if !errors.Is(err, entity.ErrInvalidStateTransition) {
		return s.ledgerFailure(ctx, trx, "record refund", err)
	}
	s.audit.Record(ctx, trx.ID, entity.AuditLevelCritical, what+" but the transaction moved on; manual reconciliation required", map[string]any{
		"provider": provider.Name,
		"error":    err.Error(),
	})
	return fmt.Errorf("refund of %s: %w", trx.ExternalID, entity.ErrInvalidRefundState)
}

func (s *paymentService) GetTransaction(ctx context.Context, externalID string, withDiagnostics bool) (*response.TransactionDetailResponse, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}

	fallbacks, err := s.repo.Fallback.FindByTransactionID(ctx, trx.ID)
	if err != nil {
		return nil, fmt.Errorf("load attempts of %s: %w", externalID, err)
	}

	detail := &response.TransactionDetailResponse{
		TransactionResponse: response.TransactionToResponse(trx),
		Attempts:            make([]response.AttemptResponse, len(fallbacks)),
	}
	for i, f := range fallbacks {
		detail.Attempts[i] = response.AttemptToResponse(f, withDiagnostics)
		if f.Status == entity.FallbackStatusSucceeded {
			detail.MethodUsed = f.ProviderName
		}
	}

	if withDiagnostics {
		trail, err := s.audit.Trail(ctx, trx.ID)
		if err != nil {
			return nil, fmt.Errorf("load audit trail of %s: %w", externalID, err)
		}
		detail.AuditTrail = make([]response.AuditResponse, len(trail))
		for i, e := range trail {
			detail.AuditTrail[i] = response.AuditToResponse(e)
		}
	}

	return detail, nil
}

// ==================== ADMIN ====================

func (s *paymentService) Cancel(ctx context.Context, externalID string) (*response.TransactionResponse, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Transaction.Cancel(ctx, trx); err != nil {
		if errors.Is(err, entity.ErrInvalidStateTransition) {
			s.log.Warn("Cancellation rejected", zap.String("external_id", externalID), zap.String("status", string(trx.Status)))
		}
		return nil, fmt.Errorf("cancel %s: %w", externalID, err)
	}

	s.emit(ctx, event.PaymentCancelled, trx, entity.AuditLevelWarning, "payment cancelled", map[string]any{
		"actor": utils.GetActorFromContext(ctx),
	})

	resp := response.TransactionToResponse(trx)
	return &resp, nil
}

func (s *paymentService) OpenDispute(ctx context.Context, externalID, reason string) (*response.TransactionResponse, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusDisputed); err != nil {
		return nil, fmt.Errorf("open dispute on %s: %w", externalID, err)
	}

	s.emit(ctx, event.PaymentDisputed, trx, entity.AuditLevelWarning, "dispute opened", map[string]any{
		"reason": reason,
		"actor":  utils.GetActorFromContext(ctx),
	})

	resp := response.TransactionToResponse(trx)
	return &resp, nil
}

func (s *paymentService) ResolveDispute(ctx context.Context, externalID string, won bool) (*response.TransactionResponse, error) {
	trx, err := s.load(ctx, externalID)
	if err != nil {
		return nil, err
	}

	status := entity.TransactionStatusResolvedLost
	if won {
		status = entity.TransactionStatusResolvedWon
	}

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, status); err != nil {
		return nil, fmt.Errorf("resolve dispute on %s: %w", externalID, err)
	}

	s.emit(ctx, event.PaymentDisputeResolved, trx, entity.AuditLevelInfo, "dispute resolved", map[string]any{
		"won":   won,
		"actor": utils.GetActorFromContext(ctx),
	})

	resp := response.TransactionToResponse(trx)
	return &resp, nil
}

func (s *paymentService) ListPending(ctx context.Context, limit int) ([]response.TransactionResponse, error) {
	transactions, err := s.repo.Transaction.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return toResponses(transactions), nil
}

func (s *paymentService) ListRecent(ctx context.Context, window time.Duration, limit int) ([]response.TransactionResponse, error) {
	if window <= 0 || window > request.MaxWindow {
		msg := fmt.Sprintf("Must be between 1s and %s", request.MaxWindow)
		return nil, &entity.ValidationError{Fields: map[string]string{"window": msg}, Reason: "window: " + msg}
	}

	transactions, err := s.repo.Transaction.ListRecent(ctx, time.Now().Add(-window), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return toResponses(transactions), nil
}

func toResponses(transactions []*entity.PaymentTransaction) []response.TransactionResponse {
	result := make([]response.TransactionResponse, len(transactions))
	for i, trx := range transactions {
		result[i] = response.TransactionToResponse(trx)
	}
	return result
}

// SweepStale closes runs abandoned by a crashed process: nothing about the
// transaction or its plan changed for olderThan. It keeps reading batches
// until one closes nothing or comes back short.
func (s *paymentService) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	swept := 0

	for {
		transactions, err := s.repo.Transaction.ListStale(ctx, cutoff, sweepBatch)
		if err != nil {
			return swept, fmt.Errorf("list stale for sweep: %w", err)
		}

		closed := 0
		for _, trx := range transactions {
			fallbacks, err := s.repo.Fallback.FindByTransactionID(ctx, trx.ID)
			if err != nil {
				s.log.Error("Sweep could not load attempts", zap.Error(err), zap.String("external_id", trx.ExternalID))
				continue
			}

			// dicek ulang: baris bisa bergerak setelah query
			if trx.UpdatedAt.After(cutoff) || stillMoving(fallbacks, cutoff) {
				continue
			}

			if err := s.sweep(ctx, trx, fallbacks); err != nil {
				s.log.Warn("Sweep skipped transaction", zap.Error(err), zap.String("external_id", trx.ExternalID))
				continue
			}
			closed++
		}
		swept += closed

		if len(transactions) < sweepBatch || closed == 0 || ctx.Err() != nil {
			break
		}
	}

	if swept > 0 {
		s.log.Info("Stale payment runs closed", zap.Int("count", swept))
	}
	return swept, nil
}

func stillMoving(fallbacks []*entity.PaymentFallback, cutoff time.Time) bool {
	for _, f := range fallbacks {
		if f.UpdatedAt.After(cutoff) {
			return true
		}
	}
	return false
}

func (s *paymentService) sweep(ctx context.Context, trx *entity.PaymentTransaction, fallbacks []*entity.PaymentFallback) error {
	var succeeded *entity.PaymentFallback
	for _, f := range fallbacks {
		if f.Status == entity.FallbackStatusSucceeded {
			succeeded = f
		}
	}

	// provider sudah sukses tapi proses mati sebelum transaksi ditutup
	if succeeded != nil {
		if trx.Status == entity.TransactionStatusPending {
			return fmt.Errorf("pending transaction %s has a succeeded attempt", trx.ExternalID)
		}
		providerID := succeeded.ProviderID
		trx.ProviderID = &providerID
		if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusCompleted); err != nil {
			return err
		}
		s.skip(ctx, trx, fallbacks)
		s.emit(ctx, event.PaymentCompleted, trx, entity.AuditLevelCritical, "completed by sweeper; provider reference missing", map[string]any{
			"provider":      succeeded.ProviderName,
			"attempt_order": succeeded.AttemptOrder,
		})
		return nil
	}

	interrupted := "interrupted: process stopped before the provider answered"
	for _, f := range fallbacks {
		if f.Status == entity.FallbackStatusAttempted {
			if err := s.repo.Fallback.UpdateStatus(ctx, f, entity.FallbackStatusFailed, &interrupted); err != nil {
				return err
			}
		}
	}
	s.skip(ctx, trx, fallbacks)

	if err := s.repo.Transaction.UpdateStatus(ctx, trx, entity.TransactionStatusFailed); err != nil {
		return err
	}
	s.emit(ctx, event.PaymentFailed, trx, entity.AuditLevelError, "stale payment run closed", map[string]any{
		"attempts": len(fallbacks),
		"reason":   "stale",
	})
	return nil
}
