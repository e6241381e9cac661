// Package stripe reserves the Stripe provider slot. Checkout is not
// implemented yet; the gateway is registered so orders naming the provider
// fail with a clear upstream error instead of an unknown-provider error.
package stripe

import (
	"context"
	"errors"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

var ErrNotImplemented = errors.New("stripe checkout is not implemented")

type Gateway struct{}

func NewGateway() *Gateway { return &Gateway{} }

func (g *Gateway) Provider() vo.Provider { return vo.ProviderStripe }

func (g *Gateway) CreateCheckout(context.Context, paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutSession, error) {
	return nil, ErrNotImplemented
}
