package valueobjects

import "strings"

type Provider string

const (
	ProviderNoop      Provider = "noop"
	ProviderWeChatPay Provider = "wechatpay"
	ProviderStripe    Provider = "stripe"
	// ProviderInternal tags events received on the HMAC webhook.
	ProviderInternal Provider = "internal"
)

func ParseProvider(s string) Provider {
	return Provider(strings.ToLower(strings.TrimSpace(s)))
}

func (p Provider) String() string {
	return string(p)
}
