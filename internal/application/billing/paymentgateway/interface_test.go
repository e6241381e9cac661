package paymentgateway_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/noop"
	"github.com/orris-inc/docpilot/internal/infrastructure/payment/stripe"
)

func TestRegistry(t *testing.T) {
	r := paymentgateway.NewRegistry(noop.NewGateway(""), stripe.NewGateway())

	g, err := r.Get(vo.ProviderNoop)
	require.NoError(t, err)
	assert.Equal(t, vo.ProviderNoop, g.Provider())

	s, err := r.Get(vo.ProviderStripe)
	require.NoError(t, err)
	_, err = s.CreateCheckout(context.Background(), paymentgateway.CheckoutRequest{})
	assert.ErrorIs(t, err, stripe.ErrNotImplemented)

	_, err = r.Get(vo.ProviderWeChatPay)
	assert.Error(t, err)
	assert.Len(t, r.Providers(), 2)
}
