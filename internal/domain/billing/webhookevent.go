package billing

// Normalized payment notification types.
const (
	WebhookPaymentSucceeded = "payment.succeeded"
	WebhookPaymentFailed    = "payment.failed"
	WebhookPaymentTimeout   = "payment.timeout"
	WebhookPaymentExpired   = "payment.expired"
	WebhookPaymentCanceled  = "payment.canceled"
	WebhookCheckoutExpired  = "checkout.expired"
	WebhookPaymentRefunded  = "payment.refunded"
	WebhookRefundSucceeded  = "refund.succeeded"
	WebhookChargeRefunded   = "charge.refunded"
)

// WebhookAction is what the processor does with a notification type.
type WebhookAction int

const (
	WebhookActionIgnore WebhookAction = iota
	WebhookActionPaid
	WebhookActionFail
	WebhookActionCancel
	WebhookActionRefund
)

var webhookActions = map[string]WebhookAction{
	WebhookPaymentSucceeded: WebhookActionPaid,
	WebhookPaymentFailed:    WebhookActionFail,
	WebhookPaymentTimeout:   WebhookActionCancel,
	WebhookPaymentExpired:   WebhookActionCancel,
	WebhookPaymentCanceled:  WebhookActionCancel,
	WebhookCheckoutExpired:  WebhookActionCancel,
	WebhookPaymentRefunded:  WebhookActionRefund,
	WebhookRefundSucceeded:  WebhookActionRefund,
	WebhookChargeRefunded:   WebhookActionRefund,
}

// ClassifyWebhookEvent maps unknown types to WebhookActionIgnore.
func ClassifyWebhookEvent(eventType string) WebhookAction {
	return webhookActions[eventType]
}
