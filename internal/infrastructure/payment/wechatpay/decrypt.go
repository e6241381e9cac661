package wechatpay

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
)

const AlgorithmAES256GCM = "AEAD_AES_256_GCM"

// Resource is the encrypted part of a notification.
type Resource struct {
	Algorithm      string `json:"algorithm"`
	Ciphertext     string `json:"ciphertext"`
	Nonce          string `json:"nonce"`
	AssociatedData string `json:"associated_data"`
	OriginalType   string `json:"original_type,omitempty"`
}

// DecryptResource opens resource with the 32-byte API v3 key. The plaintext
// must be a JSON object; nothing is returned on any failure.
func DecryptResource(apiV3Key []byte, res Resource) ([]byte, error) {
	if res.Algorithm != AlgorithmAES256GCM {
		return nil, cryptoErr(opDecrypt, "unsupported algorithm "+res.Algorithm, nil)
	}
	if len(apiV3Key) != 32 {
		return nil, cryptoErr(opDecrypt, "api v3 key must be 32 bytes", nil)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(res.Ciphertext)
	if err != nil {
		return nil, cryptoErr(opDecrypt, "ciphertext is not base64", err)
	}
	block, err := aes.NewCipher(apiV3Key)
	if err != nil {
		return nil, cryptoErr(opDecrypt, "bad api v3 key", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(res.Nonce))
	if err != nil {
		return nil, cryptoErr(opDecrypt, "bad nonce", err)
	}

	plaintext, err := gcm.Open(nil, []byte(res.Nonce), ciphertext, []byte(res.AssociatedData))
	if err != nil {
		return nil, cryptoErr(opDecrypt, "authentication failed", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(plaintext, &obj); err != nil {
		return nil, cryptoErr(opDecrypt, "plaintext is not a JSON object", err)
	}
	// "null" unmarshals into a nil map without error.
	if obj == nil {
		return nil, cryptoErr(opDecrypt, "plaintext is not a JSON object", nil)
	}
	return plaintext, nil
}

// EncryptResource is the inverse of DecryptResource. WeChat never needs it;
// it exists for local simulation of notifications.
func EncryptResource(apiV3Key []byte, nonce, associatedData string, plaintext []byte) (Resource, error) {
	block, err := aes.NewCipher(apiV3Key)
	if err != nil {
		return Resource{}, cryptoErr(opDecrypt, "bad api v3 key", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return Resource{}, cryptoErr(opDecrypt, "bad nonce", err)
	}
	sealed := gcm.Seal(nil, []byte(nonce), plaintext, []byte(associatedData))
	return Resource{
		Algorithm:      AlgorithmAES256GCM,
		Ciphertext:     base64.StdEncoding.EncodeToString(sealed),
		Nonce:          nonce,
		AssociatedData: associatedData,
	}, nil
}
