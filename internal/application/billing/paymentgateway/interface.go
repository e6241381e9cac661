package paymentgateway

import (
	"context"
	"fmt"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// Gateway builds a provider checkout session for an existing order.
type Gateway interface {
	Provider() vo.Provider
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
}

// CheckoutRequest carries the order fields a provider needs.
// AmountCents is in the smallest currency unit.
type CheckoutRequest struct {
	ExternalOrderID string
	UserID          uint
	PlanCode        string
	Description     string
	AmountCents     int64
	Currency        string
	ReturnURL       string
}

type CheckoutSession struct {
	URL         string
	ProviderRef string
}

// Registry resolves gateways by provider.
type Registry struct {
	gateways map[vo.Provider]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[vo.Provider]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

func (r *Registry) Register(g Gateway) {
	r.gateways[g.Provider()] = g
}

func (r *Registry) Get(p vo.Provider) (Gateway, error) {
	g, ok := r.gateways[p]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not configured", p)
	}
	return g, nil
}

func (r *Registry) Providers() []vo.Provider {
	out := make([]vo.Provider, 0, len(r.gateways))
	for p := range r.gateways {
		out = append(out, p)
	}
	return out
}
