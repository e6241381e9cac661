package wechatpay

import (
	"net/http"
	"time"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// tradeStateEvents maps terminal non-success trade states onto the
// cancel family.
var tradeStateEvents = map[string]string{
	TradeStateSuccess:  billing.WebhookPaymentSucceeded,
	TradeStateClosed:   billing.WebhookPaymentExpired,
	TradeStateRevoked:  billing.WebhookPaymentCanceled,
	TradeStatePayError: billing.WebhookPaymentTimeout,
}

// ParseNotification implements paymentgateway.NotificationParser.
func (c *Client) ParseNotification(header http.Header, body []byte) (*paymentgateway.PaymentEvent, error) {
	decoded, err := c.DecodeNotification(HeadersFromHTTP(header), body)
	if err != nil {
		return nil, err
	}
	return ToPaymentEvent(decoded)
}

// ToPaymentEvent normalizes a decoded notification. Event types it does not
// act on keep their WeChat name so the processor ignores them.
func ToPaymentEvent(d *DecodedNotification) (*paymentgateway.PaymentEvent, error) {
	ev := &paymentgateway.PaymentEvent{
		Provider:  vo.ProviderWeChatPay,
		EventType: d.Envelope.EventType,
		EventID:   d.Envelope.ID,
	}

	switch d.Envelope.EventType {
	case EventTransactionSuccess:
		txn, err := d.Transaction()
		if err != nil {
			return nil, err
		}
		if mapped, ok := tradeStateEvents[txn.TradeState]; ok {
			ev.EventType = mapped
		}
		ev.ExternalOrderID = txn.OutTradeNo
		total := txn.Amount.Total
		ev.AmountCents = &total
		ev.Currency = txn.Amount.Currency
		ev.PaidAt = parseWeChatTime(txn.SuccessTime)
		ev.Details = map[string]any{
			"wechatpay": map[string]any{
				"transaction_id": txn.TransactionID,
				"trade_state":    txn.TradeState,
				"trade_type":     txn.TradeType,
				"success_time":   txn.SuccessTime,
			},
		}
	case EventRefundSuccess:
		refund, err := d.Refund()
		if err != nil {
			return nil, err
		}
		ev.EventType = billing.WebhookRefundSucceeded
		ev.ExternalOrderID = refund.OutTradeNo
		ev.Details = map[string]any{
			"wechatpay_refund": map[string]any{
				"refund_id":     refund.RefundID,
				"out_refund_no": refund.OutRefundNo,
				"refund_status": refund.RefundStatus,
				"refund":        refund.Amount.Refund,
			},
		}
	}
	return ev, nil
}

// WeChat timestamps are RFC 3339 with a +08:00 offset.
func parseWeChatTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
