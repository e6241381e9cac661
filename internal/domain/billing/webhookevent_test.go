package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyWebhookEvent(t *testing.T) {
	tests := map[string]WebhookAction{
		"payment.succeeded": WebhookActionPaid,
		"payment.failed":    WebhookActionFail,
		"payment.timeout":   WebhookActionCancel,
		"checkout.expired":  WebhookActionCancel,
		"charge.refunded":   WebhookActionRefund,
		"refund.succeeded":  WebhookActionRefund,
		"customer.created":  WebhookActionIgnore,
		"":                  WebhookActionIgnore,
	}
	for eventType, want := range tests {
		assert.Equal(t, want, ClassifyWebhookEvent(eventType), eventType)
	}
}
