package testutil

import (
	"context"
	"errors"
	"sync"

	"payment-orchestrator/internal/data/entity"
	"payment-orchestrator/internal/gateway"

	"github.com/shopspring/decimal"
)

var ErrProviderDown = errors.New("provider connection refused")

// FakeAdapter records calls and answers with the configured functions.
// A nil function answers with success.
type FakeAdapter struct {
	name string

	ChargeFn func(ctx context.Context, intent gateway.Intent) (gateway.Outcome, error)
	VerifyFn func(ctx context.Context, ref string) (gateway.Outcome, error)
	RefundFn func(ctx context.Context, ref string, amount decimal.Decimal) (gateway.Outcome, error)

	mu       sync.Mutex
	charges  int
	verifies int
	refunds  []decimal.Decimal
}

func NewFakeAdapter(name string) *FakeAdapter {
	return &FakeAdapter{name: name}
}

func (f *FakeAdapter) Name() string { return f.name }

func (f *FakeAdapter) Charge(ctx context.Context, intent gateway.Intent) (gateway.Outcome, error) {
	f.mu.Lock()
	f.charges++
	fn := f.ChargeFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, intent)
	}
	return gateway.Outcome{Success: true, ProviderRef: "ref_" + f.name, Status: gateway.StatusSucceeded}, nil
}

func (f *FakeAdapter) Verify(ctx context.Context, ref string) (gateway.Outcome, error) {
	f.mu.Lock()
	f.verifies++
	fn := f.VerifyFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref)
	}
	return gateway.Outcome{Success: true, ProviderRef: ref, Status: gateway.StatusSucceeded}, nil
}

func (f *FakeAdapter) Refund(ctx context.Context, ref string, amount decimal.Decimal) (gateway.Outcome, error) {
	f.mu.Lock()
	f.refunds = append(f.refunds, amount)
	fn := f.RefundFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, ref, amount)
	}
	return gateway.Outcome{Success: true, ProviderRef: ref, Status: gateway.StatusRefunded}, nil
}

func (f *FakeAdapter) Charges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charges
}

func (f *FakeAdapter) Verifies() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifies
}

func (f *FakeAdapter) Refunds() []decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]decimal.Decimal(nil), f.refunds...)
}

// Decline answers every charge with a business decline.
func Decline(message string) func(context.Context, gateway.Intent) (gateway.Outcome, error) {
	return func(context.Context, gateway.Intent) (gateway.Outcome, error) {
		return gateway.Outcome{Status: gateway.StatusDeclined, Message: message}, nil
	}
}

// Fail answers every charge with a transport error.
func Fail(err error) func(context.Context, gateway.Intent) (gateway.Outcome, error) {
	return func(context.Context, gateway.Intent) (gateway.Outcome, error) {
		return gateway.Outcome{}, err
	}
}

// Hang ignores the context and never answers until release is closed.
func Hang(release <-chan struct{}) func(context.Context, gateway.Intent) (gateway.Outcome, error) {
	return func(context.Context, gateway.Intent) (gateway.Outcome, error) {
		<-release
		return gateway.Outcome{Success: true, ProviderRef: "late"}, nil
	}
}

// Factories exposes the fakes through the resolver's factory map.
func Factories(adapters ...*FakeAdapter) map[string]gateway.Factory {
	factories := make(map[string]gateway.Factory, len(adapters))
	for _, a := range adapters {
		factories[a.name] = func(*entity.PaymentProvider) (gateway.Adapter, error) {
			return a, nil
		}
	}
	return factories
}
