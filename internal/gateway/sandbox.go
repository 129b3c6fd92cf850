package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"payment-orchestrator/internal/data/entity"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sandbox behaviours, selected with config keys "behavior" (charges) and
// "refund_behavior" (refunds).
const (
	BehaviorSucceed = "succeed"
	BehaviorDecline = "decline"
	BehaviorError   = "error"
	BehaviorTimeout = "timeout"
)

var ErrSandboxUnavailable = errors.New("sandbox provider unavailable")

// Sandbox is a deterministic simulated provider for staging and tests.
type Sandbox struct {
	name           string
	behavior       string
	refundBehavior string
	latency        time.Duration
	declineAbove   *decimal.Decimal
}

func SandboxFactory(provider *entity.PaymentProvider) (Adapter, error) {
	s := &Sandbox{
		name:           provider.Name,
		behavior:       strings.ToLower(provider.Config["behavior"]),
		refundBehavior: strings.ToLower(provider.Config["refund_behavior"]),
	}
	if s.behavior == "" {
		s.behavior = BehaviorSucceed
	}
	if s.refundBehavior == "" {
		s.refundBehavior = BehaviorSucceed
	}
	for _, b := range []string{s.behavior, s.refundBehavior} {
		switch b {
		case BehaviorSucceed, BehaviorDecline, BehaviorError, BehaviorTimeout:
		default:
			return nil, fmt.Errorf("unknown sandbox behavior %q", b)
		}
	}

	if raw := provider.Config["latency_ms"]; raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms < 0 {
			return nil, fmt.Errorf("invalid latency_ms %q", raw)
		}
		s.latency = time.Duration(ms) * time.Millisecond
	}

	if raw := provider.Config["decline_above"]; raw != "" {
		limit, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid decline_above %q: %w", raw, err)
		}
		s.declineAbove = &limit
	}

	return s, nil
}

func (s *Sandbox) Name() string { return s.name }

func (s *Sandbox) Charge(ctx context.Context, intent Intent) (Outcome, error) {
	if err := s.wait(ctx, s.behavior); err != nil {
		return Outcome{}, err
	}

	if s.declineAbove != nil && intent.Amount.GreaterThan(*s.declineAbove) {
		return Outcome{Status: StatusDeclined, Message: "amount exceeds sandbox limit"}, nil
	}

	switch s.behavior {
	case BehaviorDecline:
		return Outcome{Status: StatusDeclined, Message: "card declined"}, nil
	case BehaviorError:
		return Outcome{}, ErrSandboxUnavailable
	}

	return Outcome{
		Success:     true,
		ProviderRef: "sbx_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Status:      StatusSucceeded,
	}, nil
}

func (s *Sandbox) Verify(ctx context.Context, providerRef string) (Outcome, error) {
	if err := s.wait(ctx, BehaviorSucceed); err != nil {
		return Outcome{}, err
	}
	if !strings.HasPrefix(providerRef, "sbx_") {
		return Outcome{ProviderRef: providerRef, Status: StatusUnknown, Message: "unknown charge reference"}, nil
	}
	return Outcome{Success: true, ProviderRef: providerRef, Status: StatusSucceeded}, nil
}

func (s *Sandbox) Refund(ctx context.Context, providerRef string, amount decimal.Decimal) (Outcome, error) {
	if err := s.wait(ctx, s.refundBehavior); err != nil {
		return Outcome{}, err
	}

	switch s.refundBehavior {
	case BehaviorDecline:
		return Outcome{ProviderRef: providerRef, Status: StatusDeclined, Message: "refund declined"}, nil
	case BehaviorError:
		return Outcome{}, ErrSandboxUnavailable
	}
	return Outcome{Success: true, ProviderRef: providerRef, Status: StatusRefunded}, nil
}

// wait applies the configured latency. The timeout behaviour blocks until ctx ends.
func (s *Sandbox) wait(ctx context.Context, behavior string) error {
	if behavior == BehaviorTimeout {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.latency == 0 {
		return nil
	}

	timer := time.NewTimer(s.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
