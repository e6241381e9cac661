package wechatpay

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
)

const authScheme = "WECHATPAY2-SHA256-RSA2048"

// BuildRequestMessage is the canonical string signed for outbound calls.
func BuildRequestMessage(method, canonicalURL, timestamp, nonce string, body []byte) []byte {
	return []byte(method + "\n" + canonicalURL + "\n" + timestamp + "\n" + nonce + "\n" + string(body) + "\n")
}

// BuildNotifyMessage is the canonical string WeChat signs on notifications
// and API responses.
func BuildNotifyMessage(timestamp, nonce string, body []byte) []byte {
	return []byte(timestamp + "\n" + nonce + "\n" + string(body) + "\n")
}

// Signer signs outbound API requests with the merchant private key.
type Signer struct {
	mchID    string
	serialNo string
	key      *rsa.PrivateKey
	now      biztime.Clock
	nonce    func() (string, error)
}

func NewSigner(mchID, serialNo string, key *rsa.PrivateKey) *Signer {
	return &Signer{
		mchID:    mchID,
		serialNo: serialNo,
		key:      key,
		now:      biztime.SystemClock,
		nonce:    randomNonce,
	}
}

// Sign returns base64(RSA-PKCS1v15(SHA256(message))).
func (s *Signer) Sign(message []byte) (string, error) {
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", cryptoErr(opSign, "rsa sign failed", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Authorization builds the Authorization header for one request.
// canonicalURL is the path plus query string.
func (s *Signer) Authorization(method, canonicalURL string, body []byte) (string, error) {
	nonce, err := s.nonce()
	if err != nil {
		return "", cryptoErr(opSign, "nonce generation failed", err)
	}
	ts := strconv.FormatInt(s.now().Unix(), 10)

	sig, err := s.Sign(BuildRequestMessage(method, canonicalURL, ts, nonce, body))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`%s mchid="%s",nonce_str="%s",signature="%s",timestamp="%s",serial_no="%s"`,
		authScheme, s.mchID, nonce, sig, ts, s.serialNo), nil
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
