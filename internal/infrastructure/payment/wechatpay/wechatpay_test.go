package wechatpay

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
)

var (
	keysOnce    sync.Once
	merchantKey *rsa.PrivateKey
	platformKey *rsa.PrivateKey
	rotatedKey  *rsa.PrivateKey
)

func testKeys(t *testing.T) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		merchantKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		platformKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		rotatedKey, err = rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
	})
}

func privateKeyPEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func certificatePEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "wechatpay platform"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func platformSign(t *testing.T, key *rsa.PrivateKey, ts, nonce string, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(BuildNotifyMessage(ts, nonce, body))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func TestVerifier_AcceptsPlatformSignature(t *testing.T) {
	testKeys(t)
	v, err := NewVerifier(map[string]string{
		"PLATFORM1": certificatePEM(t, platformKey),
		"platform2": certificatePEM(t, rotatedKey),
	})
	require.NoError(t, err)

	body := []byte(`{"id":"evt_1","event_type":"TRANSACTION.SUCCESS"}`)
	h := NotifyHeaders{Timestamp: "1700000000", Nonce: "abc123", Serial: "PLATFORM1",
		Signature: platformSign(t, platformKey, "1700000000", "abc123", body)}
	assert.NoError(t, v.Verify(h, body))

	rotated := NotifyHeaders{Timestamp: "1700000000", Nonce: "abc123", Serial: "PLATFORM2",
		Signature: platformSign(t, rotatedKey, "1700000000", "abc123", body)}
	assert.NoError(t, v.Verify(rotated, body), "either rotated certificate verifies")

	wrongCert := rotated
	wrongCert.Serial = "PLATFORM1"
	assert.Error(t, v.Verify(wrongCert, body))
}

func TestVerifier_RejectsSingleByteMutations(t *testing.T) {
	testKeys(t)
	v := NewVerifierWithKeys(map[string]*rsa.PublicKey{"P1": &platformKey.PublicKey})

	ts, nonce := "1700000000", "n0nce"
	body := []byte(`{"amount":19800}`)
	sig := platformSign(t, platformKey, ts, nonce, body)
	require.NoError(t, v.Verify(NotifyHeaders{Timestamp: ts, Nonce: nonce, Signature: sig, Serial: "P1"}, body))

	flip := func(s string, i int) string {
		b := []byte(s)
		b[i] ^= 0x01
		return string(b)
	}

	for i := range body {
		mutated := []byte(flip(string(body), i))
		assert.Error(t, v.Verify(NotifyHeaders{Timestamp: ts, Nonce: nonce, Signature: sig, Serial: "P1"}, mutated), "body byte %d", i)
	}
	for i := range ts {
		assert.Error(t, v.Verify(NotifyHeaders{Timestamp: flip(ts, i), Nonce: nonce, Signature: sig, Serial: "P1"}, body))
	}
	for i := range nonce {
		assert.Error(t, v.Verify(NotifyHeaders{Timestamp: ts, Nonce: flip(nonce, i), Signature: sig, Serial: "P1"}, body))
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	for _, i := range []int{0, len(raw) / 2, len(raw) - 1} {
		mutated := append([]byte(nil), raw...)
		mutated[i] ^= 0x80
		h := NotifyHeaders{Timestamp: ts, Nonce: nonce, Signature: base64.StdEncoding.EncodeToString(mutated), Serial: "P1"}
		assert.Error(t, v.Verify(h, body), "signature byte %d", i)
	}
}

func TestVerifier_RejectsMissingHeadersAndUnknownSerial(t *testing.T) {
	testKeys(t)
	v := NewVerifierWithKeys(map[string]*rsa.PublicKey{"P1": &platformKey.PublicKey})
	body := []byte(`{}`)
	sig := platformSign(t, platformKey, "1", "n", body)

	tests := []struct {
		name string
		h    NotifyHeaders
	}{
		{"no timestamp", NotifyHeaders{Nonce: "n", Signature: sig, Serial: "P1"}},
		{"no nonce", NotifyHeaders{Timestamp: "1", Signature: sig, Serial: "P1"}},
		{"no signature", NotifyHeaders{Timestamp: "1", Nonce: "n", Serial: "P1"}},
		{"no serial", NotifyHeaders{Timestamp: "1", Nonce: "n", Signature: sig}},
		{"unknown serial", NotifyHeaders{Timestamp: "1", Nonce: "n", Signature: sig, Serial: "P9"}},
		{"not base64", NotifyHeaders{Timestamp: "1", Nonce: "n", Signature: "%%%", Serial: "P1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.h, body)
			var cerr *CryptoError
			require.True(t, errors.As(err, &cerr))
			appErr := apperrors.GetAppError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, http.StatusForbidden, appErr.Code)
		})
	}
}

func TestSigner_SignsCanonicalRequest(t *testing.T) {
	testKeys(t)
	s := NewSigner("1900000001", "MERCHANTSERIAL", merchantKey)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	s.nonce = func() (string, error) { return "fixednonce", nil }

	body := []byte(`{"a":1}`)
	auth, err := s.Authorization(http.MethodPost, "/v3/pay/transactions/native", body)
	require.NoError(t, err)

	re := regexp.MustCompile(`^WECHATPAY2-SHA256-RSA2048 mchid="1900000001",nonce_str="fixednonce",signature="([^"]+)",timestamp="1700000000",serial_no="MERCHANTSERIAL"$`)
	m := re.FindStringSubmatch(auth)
	require.Len(t, m, 2, auth)

	sig, err := base64.StdEncoding.DecodeString(m[1])
	require.NoError(t, err)
	digest := sha256.Sum256([]byte("POST\n/v3/pay/transactions/native\n1700000000\nfixednonce\n{\"a\":1}\n"))
	assert.NoError(t, rsa.VerifyPKCS1v15(&merchantKey.PublicKey, crypto.SHA256, digest[:], sig))
}

func TestDecryptResource(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	plaintext := []byte(`{"out_trade_no":"DP1","trade_state":"SUCCESS","amount":{"total":19800,"currency":"CNY"}}`)

	res, err := EncryptResource(key, "nonce1234567", "transaction", plaintext)
	require.NoError(t, err)

	t.Run("round trip", func(t *testing.T) {
		got, err := DecryptResource(key, res)
		require.NoError(t, err)
		var want, decoded map[string]any
		require.NoError(t, json.Unmarshal(plaintext, &want))
		require.NoError(t, json.Unmarshal(got, &decoded))
		assert.Equal(t, want, decoded)
	})

	t.Run("altered ciphertext", func(t *testing.T) {
		raw, _ := base64.StdEncoding.DecodeString(res.Ciphertext)
		raw[3] ^= 0xff
		bad := res
		bad.Ciphertext = base64.StdEncoding.EncodeToString(raw)
		got, err := DecryptResource(key, bad)
		assert.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("wrong key", func(t *testing.T) {
		got, err := DecryptResource([]byte("fedcba9876543210fedcba9876543210"), res)
		assert.Error(t, err)
		assert.Nil(t, got)
	})

	t.Run("wrong associated data", func(t *testing.T) {
		bad := res
		bad.AssociatedData = "refund"
		_, err := DecryptResource(key, bad)
		assert.Error(t, err)
	})

	t.Run("unsupported algorithm", func(t *testing.T) {
		bad := res
		bad.Algorithm = "AEAD_SM4_GCM"
		_, err := DecryptResource(key, bad)
		assert.ErrorContains(t, err, "unsupported algorithm")
	})

	t.Run("short key", func(t *testing.T) {
		_, err := DecryptResource([]byte("short"), res)
		assert.Error(t, err)
	})

	t.Run("non json plaintext", func(t *testing.T) {
		notJSON, err := EncryptResource(key, "nonce1234567", "", []byte("SUCCESS"))
		require.NoError(t, err)
		_, err = DecryptResource(key, notJSON)
		assert.ErrorContains(t, err, "not a JSON object")
	})

	for _, plaintext := range []string{"null", "[1,2]", `"SUCCESS"`} {
		t.Run("json non object "+plaintext, func(t *testing.T) {
			sealed, err := EncryptResource(key, "nonce1234567", "", []byte(plaintext))
			require.NoError(t, err)
			got, err := DecryptResource(key, sealed)
			assert.ErrorContains(t, err, "not a JSON object")
			assert.Nil(t, got)
		})
	}
}

func TestLoadKeys_LiteralAndFile(t *testing.T) {
	testKeys(t)
	escaped := strings.ReplaceAll(privateKeyPEM(t, merchantKey), "\n", `\n`)
	key, err := LoadPrivateKey(escaped)
	require.NoError(t, err)
	assert.True(t, key.Equal(merchantKey))

	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(merchantKey)}))
	key, err = LoadPrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, key.Equal(merchantKey))

	path := filepath.Join(t.TempDir(), "platform.pem")
	require.NoError(t, os.WriteFile(path, []byte(certificatePEM(t, platformKey)), 0o600))
	pub, err := LoadPublicKey(path)
	require.NoError(t, err)
	assert.True(t, pub.Equal(&platformKey.PublicKey))

	der, err := x509.MarshalPKIXPublicKey(&platformKey.PublicKey)
	require.NoError(t, err)
	pub, err = LoadPublicKey(string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})))
	require.NoError(t, err)
	assert.True(t, pub.Equal(&platformKey.PublicKey))

	_, err = LoadPrivateKey("")
	assert.Error(t, err)
	_, err = LoadPrivateKey(filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	testKeys(t)
	return NewClient(ClientOptions{
		BaseURL:   baseURL,
		MchID:     "1900000001",
		AppID:     "wxapp",
		NotifyURL: "https://billing.example.com/webhooks/wechatpay",
		Signer:    NewSigner("1900000001", "MERCHANTSERIAL", merchantKey),
		Verifier:  NewVerifierWithKeys(map[string]*rsa.PublicKey{"P1": &platformKey.PublicKey}),
		APIv3Key:  []byte("0123456789abcdef0123456789abcdef"),
	})
}

func TestClient_CreateCheckout(t *testing.T) {
	testKeys(t)
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, nativePath, r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), authScheme+" "))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &gotBody))

		resp := []byte(`{"code_url":"weixin://wxpay/bizpayurl?pr=abc"}`)
		w.Header().Set(HeaderTimestamp, "1700000000")
		w.Header().Set(HeaderNonce, "respnonce")
		w.Header().Set(HeaderSerial, "P1")
		w.Header().Set(HeaderSignature, platformSign(t, platformKey, "1700000000", "respnonce", resp))
		_, _ = w.Write(resp)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	session, err := c.CreateCheckout(context.Background(), paymentgateway.CheckoutRequest{
		ExternalOrderID: "DP123", UserID: 7, PlanCode: "pro_monthly", AmountCents: 19800, Currency: "CNY",
	})
	require.NoError(t, err)
	assert.Equal(t, "weixin://wxpay/bizpayurl?pr=abc", session.URL)
	assert.Equal(t, "DP123", gotBody["out_trade_no"])
	assert.Equal(t, float64(19800), gotBody["amount"].(map[string]any)["total"])
}

func TestClient_CreateCheckout_RejectsForgedResponse(t *testing.T) {
	testKeys(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderTimestamp, "1700000000")
		w.Header().Set(HeaderNonce, "respnonce")
		w.Header().Set(HeaderSerial, "P1")
		w.Header().Set(HeaderSignature, platformSign(t, rotatedKey, "1700000000", "respnonce", []byte(`{}`)))
		_, _ = w.Write([]byte(`{"code_url":"weixin://evil"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateCheckout(context.Background(), paymentgateway.CheckoutRequest{ExternalOrderID: "DP1", AmountCents: 1})
	assert.Error(t, err)
}

func TestClient_CreateCheckout_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"PARAM_ERROR","message":"bad amount"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateCheckout(context.Background(), paymentgateway.CheckoutRequest{ExternalOrderID: "DP1"})
	assert.ErrorContains(t, err, "PARAM_ERROR")
}

func TestClient_DecodeNotification(t *testing.T) {
	c := newTestClient(t, "")
	res, err := EncryptResource(c.apiV3Key, "nonce1234567", "transaction",
		[]byte(`{"out_trade_no":"DP1","transaction_id":"42","trade_state":"SUCCESS","amount":{"total":19800,"currency":"CNY"}}`))
	require.NoError(t, err)
	body, err := json.Marshal(Notification{ID: "evt_1", EventType: EventTransactionSuccess, Resource: res})
	require.NoError(t, err)

	h := NotifyHeaders{Timestamp: "1700000000", Nonce: "nn", Serial: "P1",
		Signature: platformSign(t, platformKey, "1700000000", "nn", body)}
	decoded, err := c.DecodeNotification(h, body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", decoded.Envelope.ID)

	txn, err := decoded.Transaction()
	require.NoError(t, err)
	assert.Equal(t, "DP1", txn.OutTradeNo)
	assert.Equal(t, int64(19800), txn.Amount.Total)

	h.Signature = platformSign(t, rotatedKey, "1700000000", "nn", body)
	_, err = c.DecodeNotification(h, body)
	assert.Error(t, err)
}
