package gateway

import (
	"fmt"
	"net/http"

	"payment-orchestrator/internal/data/entity"

	"go.uber.org/zap"
)

// Factory builds an adapter for one configured provider.
type Factory func(provider *entity.PaymentProvider) (Adapter, error)

// DefaultFactories is the closed set of provider implementations the service ships with.
func DefaultFactories(client *http.Client, log *zap.Logger) map[string]Factory {
	return map[string]Factory{
		"stripe":  HTTPGatewayFactory(client, log),
		"paypal":  HTTPGatewayFactory(client, log),
		"sandbox": SandboxFactory,
	}
}

type Resolver struct {
	factories map[string]Factory
}

func NewResolver(factories map[string]Factory) *Resolver {
	return &Resolver{factories: factories}
}

// Supports reports whether a provider name has a registered implementation.
func (r *Resolver) Supports(name string) bool {
	_, ok := r.factories[name]
	return ok
}

func (r *Resolver) Resolve(provider *entity.PaymentProvider) (Adapter, error) {
	factory, ok := r.factories[provider.Name]
	if !ok {
		return nil, fmt.Errorf("provider %q has no implementation: %w", provider.Name, entity.ErrMethodNotSupported)
	}

	adapter, err := factory(provider)
	if err != nil {
		return nil, fmt.Errorf("configure provider %q: %w", provider.Name, err)
	}
	return adapter, nil
}

func (r *Resolver) Charger(provider *entity.PaymentProvider) (Charger, error) {
	adapter, err := r.Resolve(provider)
	if err != nil {
		return nil, err
	}
	c, ok := adapter.(Charger)
	if !ok {
		return nil, missingCapability(provider.Name, "charge")
	}
	return c, nil
}

func (r *Resolver) Verifier(provider *entity.PaymentProvider) (Verifier, error) {
	adapter, err := r.Resolve(provider)
	if err != nil {
		return nil, err
	}
	v, ok := adapter.(Verifier)
	if !ok {
		return nil, missingCapability(provider.Name, "verify")
	}
	return v, nil
}

func (r *Resolver) Refunder(provider *entity.PaymentProvider) (Refunder, error) {
	adapter, err := r.Resolve(provider)
	if err != nil {
		return nil, err
	}
	rf, ok := adapter.(Refunder)
	if !ok {
		return nil, missingCapability(provider.Name, "refund")
	}
	return rf, nil
}

func missingCapability(name, capability string) error {
	return fmt.Errorf("provider %q cannot %s: %w", name, capability, entity.ErrMethodNotSupported)
}
