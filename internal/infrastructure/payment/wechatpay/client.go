package wechatpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/config"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const (
	DefaultBaseURL = "https://api.mch.weixin.qq.com"
	nativePath     = "/v3/pay/transactions/native"
	httpTimeout    = 10 * time.Second
	maxRespBytes   = 1 << 20
)

// Client talks to the WeChat Pay v3 API. It implements
// paymentgateway.Gateway with Native (QR code) checkout.
type Client struct {
	baseURL    string
	mchID      string
	appID      string
	notifyURL  string
	signer     *Signer
	verifier   *Verifier
	apiV3Key   []byte
	httpClient *http.Client
	logger     logger.Interface
}

type ClientOptions struct {
	BaseURL    string
	MchID      string
	AppID      string
	NotifyURL  string
	Signer     *Signer
	Verifier   *Verifier
	APIv3Key   []byte
	HTTPClient *http.Client
	Logger     logger.Interface
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: httpTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		mchID:      opts.MchID,
		appID:      opts.AppID,
		notifyURL:  opts.NotifyURL,
		signer:     opts.Signer,
		verifier:   opts.Verifier,
		apiV3Key:   opts.APIv3Key,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// NewClientFromConfig loads key material from configuration.
func NewClientFromConfig(cfg config.WeChatPayConfig, log logger.Interface) (*Client, error) {
	if cfg.MchID == "" || cfg.SerialNo == "" {
		return nil, fmt.Errorf("wechatpay mch_id and serial_no are required")
	}
	if len(cfg.APIv3Key) != 32 {
		return nil, fmt.Errorf("wechatpay api_v3_key must be 32 bytes")
	}
	key, err := LoadPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	verifier, err := NewVerifier(cfg.PlatformCerts)
	if err != nil {
		return nil, err
	}
	return NewClient(ClientOptions{
		BaseURL:   cfg.BaseURL,
		MchID:     cfg.MchID,
		AppID:     cfg.AppID,
		NotifyURL: cfg.NotifyURL,
		Signer:    NewSigner(cfg.MchID, cfg.SerialNo, key),
		Verifier:  verifier,
		APIv3Key:  []byte(cfg.APIv3Key),
		Logger:    log,
	}), nil
}

func (c *Client) Provider() vo.Provider { return vo.ProviderWeChatPay }

// DecodeNotification verifies the platform signature over body, then
// decrypts the resource. Nothing is parsed before the signature passes.
func (c *Client) DecodeNotification(h NotifyHeaders, body []byte) (*DecodedNotification, error) {
	if err := c.verifier.Verify(h, body); err != nil {
		return nil, err
	}
	var env Notification
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, cryptoErr(opDecrypt, "notification is not valid JSON", err)
	}
	plaintext, err := DecryptResource(c.apiV3Key, env.Resource)
	if err != nil {
		return nil, err
	}
	return &DecodedNotification{Envelope: env, Plaintext: plaintext}, nil
}

type nativeOrderRequest struct {
	AppID       string       `json:"appid"`
	MchID       string       `json:"mchid"`
	Description string       `json:"description"`
	OutTradeNo  string       `json:"out_trade_no"`
	NotifyURL   string       `json:"notify_url"`
	Attach      string       `json:"attach,omitempty"`
	Amount      nativeAmount `json:"amount"`
}

type nativeAmount struct {
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateCheckout places a Native order and returns its code_url.
func (c *Client) CreateCheckout(ctx context.Context, req paymentgateway.CheckoutRequest) (*paymentgateway.CheckoutSession, error) {
	currency := req.Currency
	if currency == "" {
		currency = "CNY"
	}
	description := req.Description
	if description == "" {
		description = req.PlanCode
	}

	body, err := json.Marshal(nativeOrderRequest{
		AppID:       c.appID,
		MchID:       c.mchID,
		Description: description,
		OutTradeNo:  req.ExternalOrderID,
		NotifyURL:   c.notifyURL,
		Attach:      fmt.Sprintf("user:%d", req.UserID),
		Amount:      nativeAmount{Total: req.AmountCents, Currency: currency},
	})
	if err != nil {
		return nil, fmt.Errorf("encode native order: %w", err)
	}

	respBody, err := c.do(ctx, http.MethodPost, nativePath, body)
	if err != nil {
		return nil, err
	}

	var out struct {
		CodeURL string `json:"code_url"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil || out.CodeURL == "" {
		return nil, fmt.Errorf("wechatpay native order: missing code_url")
	}
	return &paymentgateway.CheckoutSession{URL: out.CodeURL, ProviderRef: req.ExternalOrderID}, nil
}

// do sends a signed request and verifies the response signature when the
// platform signed it.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("build wechatpay url: %w", err)
	}
	auth, err := c.signer.Authorization(method, u.RequestURI(), body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "docpilot-billing")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wechatpay request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return nil, fmt.Errorf("read wechatpay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		_ = json.Unmarshal(respBody, &apiErr)
		c.logger.Warnw("wechatpay request rejected",
			"path", path,
			"status", resp.StatusCode,
			"code", apiErr.Code,
			"message", apiErr.Message,
		)
		return nil, fmt.Errorf("wechatpay %s: status %d: %s %s", path, resp.StatusCode, apiErr.Code, apiErr.Message)
	}

	if h := HeadersFromHTTP(resp.Header); h.Signature != "" && c.verifier != nil {
		if err := c.verifier.Verify(h, respBody); err != nil {
			return nil, err
		}
	}
	return respBody, nil
}
