package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/nacl/secretbox"

	"futuresbot/src/model"
)

const (
	keySize   = 32
	nonceSize = 24
)

var (
	ErrInvalidKey        = errors.New("invalid credentials key: must be 32 bytes base64")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Cipher seals and opens exchange credentials with NaCl secretbox.
type Cipher struct {
	key [keySize]byte
}

// NewCipher builds a Cipher from a base64 encoded 32 byte key.
func NewCipher(encodedKey string) (*Cipher, error) {
	raw, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil || len(raw) != keySize {
		return nil, ErrInvalidKey
	}
	c := &Cipher{}
	copy(c.key[:], raw)
	return c, nil
}

// NewCipherFromConfig reads EXCHANGE_CREDENTIALS_KEY.
func NewCipherFromConfig() (*Cipher, error) {
	return NewCipher(GetConfig().ExchangeCRKey)
}

// EncryptString returns base64(nonce || box).
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &c.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *Cipher) DecryptString(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", ErrInvalidCiphertext
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &c.key)
	if !ok {
		return "", ErrDecryptionFailed
	}
	return string(plain), nil
}

// DecodeAPIKeys turns a stored credential blob into a usable key/secret pair.
// Encrypted blobs need a Cipher; plain blobs are base64 encoded.
func DecodeAPIKeys(keys *model.APIKeys, c *Cipher) (apiKey, apiSecret string, err error) {
	if keys == nil || keys.APIKey == "" || keys.APISecret == "" {
		return "", "", model.ErrMissingCredentials
	}

	if keys.Encrypted {
		if c == nil {
			return "", "", fmt.Errorf("%w: encrypted credentials but no key configured", model.ErrFatal)
		}
		if apiKey, err = c.DecryptString(keys.APIKey); err != nil {
			return "", "", fmt.Errorf("%w: decrypt api key: %w", model.ErrAuth, err)
		}
		if apiSecret, err = c.DecryptString(keys.APISecret); err != nil {
			return "", "", fmt.Errorf("%w: decrypt api secret: %w", model.ErrAuth, err)
		}
		return apiKey, apiSecret, nil
	}

	k, err := base64.StdEncoding.DecodeString(keys.APIKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: decode api key: %w", model.ErrAuth, err)
	}
	s, err := base64.StdEncoding.DecodeString(keys.APISecret)
	if err != nil {
		return "", "", fmt.Errorf("%w: decode api secret: %w", model.ErrAuth, err)
	}
	return string(k), string(s), nil
}
