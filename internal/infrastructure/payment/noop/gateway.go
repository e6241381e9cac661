// Package noop provides a gateway that performs no provider call. It is the
// default in development; payment is simulated through the HMAC webhook.
package noop

import (
	"context"
	"fmt"
	"net/url"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

type Gateway struct {
	returnURL string
}

func NewGateway(returnURL string) *Gateway {
	if returnURL == "" {
		returnURL = "http://localhost:8080/billing/return"
	}
	return &Gateway{returnURL: returnURL}
}

func (g *Gateway) Provider() vo.Provider { return vo.ProviderNoop }

func (g *Gateway) CreateCheckout(_ context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutSession, error) {
	target := g.returnURL
	if req.ReturnURL != "" {
		target = req.ReturnURL
	}
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid return url: %w", err)
	}
	q := u.Query()
	q.Set("order", req.ExternalOrderID)
	u.RawQuery = q.Encode()

	return &paymentgateway.CheckoutSession{
		URL:         u.String(),
		ProviderRef: "noop_" + req.ExternalOrderID,
	}, nil
}
