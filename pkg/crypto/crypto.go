package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// prefix marks values produced by Encrypt so legacy plain text can be told apart.
const prefix = "enc:v1:"

// Cipher seals secrets (Cloud API access tokens) before they reach the database.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives an AES-256 key from secret. An empty secret yields a
// pass-through cipher.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return &Cipher{}, nil
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: gcm}, nil
}

// Encrypt encrypts a plain text string using AES-GCM and returns a prefixed base64 string.
func (c *Cipher) Encrypt(plainText string) (string, error) {
	if c == nil || c.aead == nil || plainText == "" {
		return plainText, nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the prefix are returned as-is (legacy plain text).
func (c *Cipher) Decrypt(cipherText string) (string, error) {
	if !strings.HasPrefix(cipherText, prefix) {
		return cipherText, nil
	}
	if c == nil || c.aead == nil {
		return "", errors.New("encrypted value found but no secret key is configured")
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(cipherText, prefix))
	if err != nil {
		return "", err
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
