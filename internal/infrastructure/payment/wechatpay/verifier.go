package wechatpay

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	HeaderTimestamp = "Wechatpay-Timestamp"
	HeaderNonce     = "Wechatpay-Nonce"
	HeaderSignature = "Wechatpay-Signature"
	HeaderSerial    = "Wechatpay-Serial"
)

// NotifyHeaders are the signature headers on notifications and responses.
type NotifyHeaders struct {
	Timestamp string
	Nonce     string
	Signature string
	Serial    string
}

func HeadersFromHTTP(h http.Header) NotifyHeaders {
	return NotifyHeaders{
		Timestamp: strings.TrimSpace(h.Get(HeaderTimestamp)),
		Nonce:     strings.TrimSpace(h.Get(HeaderNonce)),
		Signature: strings.TrimSpace(h.Get(HeaderSignature)),
		Serial:    strings.TrimSpace(h.Get(HeaderSerial)),
	}
}

// Verifier checks platform signatures. Several certificates may be
// configured at once during rotation; the serial header selects one.
type Verifier struct {
	certs map[string]*rsa.PublicKey
}

// NewVerifier loads serial -> PEM text or file path.
func NewVerifier(platformCerts map[string]string) (*Verifier, error) {
	v := &Verifier{certs: make(map[string]*rsa.PublicKey, len(platformCerts))}
	for serial, src := range platformCerts {
		pub, err := LoadPublicKey(src)
		if err != nil {
			return nil, err
		}
		v.certs[strings.ToUpper(strings.TrimSpace(serial))] = pub
	}
	return v, nil
}

// NewVerifierWithKeys is used when keys are already parsed.
func NewVerifierWithKeys(keys map[string]*rsa.PublicKey) *Verifier {
	v := &Verifier{certs: make(map[string]*rsa.PublicKey, len(keys))}
	for serial, k := range keys {
		v.certs[strings.ToUpper(serial)] = k
	}
	return v
}

func (v *Verifier) Verify(h NotifyHeaders, body []byte) error {
	if h.Timestamp == "" || h.Nonce == "" || h.Signature == "" || h.Serial == "" {
		return cryptoErr(opVerify, "missing signature headers", nil)
	}
	pub, ok := v.certs[strings.ToUpper(h.Serial)]
	if !ok {
		return cryptoErr(opVerify, "unknown platform certificate serial "+h.Serial, nil)
	}
	sig, err := base64.StdEncoding.DecodeString(h.Signature)
	if err != nil {
		return cryptoErr(opVerify, "signature is not base64", err)
	}

	digest := sha256.Sum256(BuildNotifyMessage(h.Timestamp, h.Nonce, body))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return cryptoErr(opVerify, "signature mismatch", err)
	}
	return nil
}
