package wechatpay

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"strings"
)

// readPEM accepts literal PEM text, with "\n" escapes as they appear in
// environment variables, or a path to a PEM file.
func readPEM(src string) ([]byte, error) {
	s := strings.TrimSpace(src)
	if s == "" {
		return nil, cryptoErr(opLoadKey, "empty key material", nil)
	}
	if strings.Contains(s, "-----BEGIN") {
		s = strings.ReplaceAll(s, `\r\n`, "\n")
		s = strings.ReplaceAll(s, `\n`, "\n")
		return []byte(s), nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return nil, cryptoErr(opLoadKey, "cannot read key file", err)
	}
	return data, nil
}

// LoadPrivateKey parses a PKCS#8 or PKCS#1 RSA private key.
func LoadPrivateKey(src string) (*rsa.PrivateKey, error) {
	data, err := readPEM(src)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, cryptoErr(opLoadKey, "no PEM block in private key", nil)
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, cryptoErr(opLoadKey, "private key is not RSA", nil)
		}
		return rsaKey, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, cryptoErr(opLoadKey, "unparseable private key", err)
	}
	return key, nil
}

// LoadPublicKey reads an RSA public key from an X.509 certificate or a bare
// PKIX public key block (WeChat's platform public key mode).
func LoadPublicKey(src string) (*rsa.PublicKey, error) {
	data, err := readPEM(src)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, cryptoErr(opLoadKey, "no PEM block in certificate", nil)
	}

	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, cryptoErr(opLoadKey, "unparseable certificate", err)
		}
		pub = cert.PublicKey
	default:
		pub, err = x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, cryptoErr(opLoadKey, "unparseable public key", err)
		}
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, cryptoErr(opLoadKey, "certificate key is not RSA", nil)
	}
	return rsaPub, nil
}
