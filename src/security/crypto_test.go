package security

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futuresbot/src/model"
)

const testKey = "Pjk+k4hske5KkKtbaKSVDOgpllRl+0EI6oCAdx88XqI="

func TestCipherEncryptDecrypt(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.EncryptString("my-secret")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "my-secret")

	plain, err := c.DecryptString(sealed)
	require.NoError(t, err)
	assert.Equal(t, "my-secret", plain)

	other, err := c.EncryptString("my-secret")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, other, "nonce must differ per call")
}

func TestCipherRejectsTampering(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	sealed, err := c.EncryptString("payload")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	_, err = c.DecryptString(base64.StdEncoding.EncodeToString(raw))
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = c.DecryptString("c2hvcnQ=")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewCipherInvalidKey(t *testing.T) {
	_, err := NewCipher("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewCipher(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDecodeAPIKeys(t *testing.T) {
	c, err := NewCipher(testKey)
	require.NoError(t, err)

	t.Run("base64", func(t *testing.T) {
		k, s, err := DecodeAPIKeys(&model.APIKeys{
			APIKey:    base64.StdEncoding.EncodeToString([]byte("key")),
			APISecret: base64.StdEncoding.EncodeToString([]byte("secret")),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "key", k)
		assert.Equal(t, "secret", s)
	})

	t.Run("encrypted", func(t *testing.T) {
		ek, _ := c.EncryptString("key")
		es, _ := c.EncryptString("secret")
		k, s, err := DecodeAPIKeys(&model.APIKeys{APIKey: ek, APISecret: es, Encrypted: true}, c)
		require.NoError(t, err)
		assert.Equal(t, "key", k)
		assert.Equal(t, "secret", s)
	})

	t.Run("missing", func(t *testing.T) {
		_, _, err := DecodeAPIKeys(nil, c)
		assert.ErrorIs(t, err, model.ErrMissingCredentials)
		_, _, err = DecodeAPIKeys(&model.APIKeys{APIKey: "x"}, c)
		assert.ErrorIs(t, err, model.ErrMissingCredentials)
	})

	t.Run("encrypted without cipher", func(t *testing.T) {
		_, _, err := DecodeAPIKeys(&model.APIKeys{APIKey: "a", APISecret: "b", Encrypted: true}, nil)
		assert.ErrorIs(t, err, model.ErrFatal)
	})

	t.Run("not base64", func(t *testing.T) {
		_, _, err := DecodeAPIKeys(&model.APIKeys{APIKey: "!!", APISecret: "!!"}, nil)
		assert.ErrorIs(t, err, model.ErrAuth)
	})
}
