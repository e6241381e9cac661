package wechatpay

import (
	"encoding/json"
)

const (
	EventTransactionSuccess = "TRANSACTION.SUCCESS"
	EventRefundSuccess      = "REFUND.SUCCESS"
	EventRefundAbnormal     = "REFUND.ABNORMAL"
	EventRefundClosed       = "REFUND.CLOSED"
)

const (
	TradeStateSuccess  = "SUCCESS"
	TradeStateRefund   = "REFUND"
	TradeStateNotPay   = "NOTPAY"
	TradeStateClosed   = "CLOSED"
	TradeStateRevoked  = "REVOKED"
	TradeStatePayError = "PAYERROR"
)

// Notification is the outer, unencrypted notify envelope.
type Notification struct {
	ID           string   `json:"id"`
	CreateTime   string   `json:"create_time"`
	EventType    string   `json:"event_type"`
	ResourceType string   `json:"resource_type"`
	Summary      string   `json:"summary"`
	Resource     Resource `json:"resource"`
}

type TransactionAmount struct {
	Total         int64  `json:"total"`
	PayerTotal    int64  `json:"payer_total"`
	Currency      string `json:"currency"`
	PayerCurrency string `json:"payer_currency"`
}

// Transaction is the decrypted resource of TRANSACTION.* events.
type Transaction struct {
	AppID          string            `json:"appid"`
	MchID          string            `json:"mchid"`
	OutTradeNo     string            `json:"out_trade_no"`
	TransactionID  string            `json:"transaction_id"`
	TradeType      string            `json:"trade_type"`
	TradeState     string            `json:"trade_state"`
	TradeStateDesc string            `json:"trade_state_desc"`
	SuccessTime    string            `json:"success_time"`
	Attach         string            `json:"attach"`
	Amount         TransactionAmount `json:"amount"`
}

type RefundAmount struct {
	Total       int64 `json:"total"`
	Refund      int64 `json:"refund"`
	PayerTotal  int64 `json:"payer_total"`
	PayerRefund int64 `json:"payer_refund"`
}

// RefundNotice is the decrypted resource of REFUND.* events.
type RefundNotice struct {
	MchID         string       `json:"mchid"`
	OutTradeNo    string       `json:"out_trade_no"`
	TransactionID string       `json:"transaction_id"`
	OutRefundNo   string       `json:"out_refund_no"`
	RefundID      string       `json:"refund_id"`
	RefundStatus  string       `json:"refund_status"`
	SuccessTime   string       `json:"success_time"`
	Amount        RefundAmount `json:"amount"`
}

// DecodedNotification is a verified and decrypted notification.
type DecodedNotification struct {
	Envelope  Notification
	Plaintext []byte
}

func (d *DecodedNotification) Transaction() (*Transaction, error) {
	var t Transaction
	if err := json.Unmarshal(d.Plaintext, &t); err != nil {
		return nil, cryptoErr(opDecrypt, "resource is not a transaction", err)
	}
	return &t, nil
}

func (d *DecodedNotification) Refund() (*RefundNotice, error) {
	var r RefundNotice
	if err := json.Unmarshal(d.Plaintext, &r); err != nil {
		return nil, cryptoErr(opDecrypt, "resource is not a refund", err)
	}
	return &r, nil
}
