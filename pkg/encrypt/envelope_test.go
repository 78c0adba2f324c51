package encrypt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCipher(t *testing.T, secret string) *EnvelopeCipher {
	t.Helper()
	key, err := DeriveKey(secret, "unit-test-salt")
	require.NoError(t, err)
	c, err := NewEnvelopeCipher(key)
	require.NoError(t, err)
	return c
}

func TestEnvelopeCipher_RoundTrip(t *testing.T) {
	c := newTestCipher(t, "secret")

	for _, plain := range []string{"", "hi", "多語言 訊息 🚀", strings.Repeat("x", 4096)} {
		env, err := c.Encrypt(plain)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(env, "enc:v1:"))

		got, err := c.Decrypt(env)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestEnvelopeCipher_NonceIsRandom(t *testing.T) {
	c := newTestCipher(t, "secret")
	a, _ := c.Encrypt("same")
	b, _ := c.Encrypt("same")
	assert.NotEqual(t, a, b)
}

func TestIsValidEnvelope(t *testing.T) {
	c := newTestCipher(t, "secret")
	env, err := c.Encrypt("hello")
	require.NoError(t, err)

	assert.True(t, c.IsValidEnvelope(env))
	assert.False(t, c.IsValidEnvelope("plain text"))
	assert.False(t, c.IsValidEnvelope("enc:v9:"+strings.TrimPrefix(env, "enc:v1:")))
	assert.False(t, c.IsValidEnvelope("enc:v1:!!!not-base64"))
	assert.False(t, c.IsValidEnvelope("enc:v1:AAAA"))
	assert.False(t, c.IsValidEnvelope(""))
}

func TestEnvelopeCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t, "secret")
	other := newTestCipher(t, "another-secret")

	env, err := c.Encrypt("hello")
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := other.Decrypt(env)
		var decErr *DecryptionError
		require.ErrorAs(t, err, &decErr)
		assert.True(t, errors.Is(err, ErrIntegrity))
	})

	t.Run("tampered", func(t *testing.T) {
		tampered := env[:len(env)-2] + "AA"
		if tampered == env {
			tampered = env[:len(env)-2] + "BB"
		}
		_, err := c.Decrypt(tampered)
		assert.Error(t, err)
	})

	t.Run("unknown tag", func(t *testing.T) {
		_, err := c.Decrypt("plain text")
		assert.True(t, errors.Is(err, ErrUnknownEnvelope))
	})

	t.Run("key unavailable", func(t *testing.T) {
		noKey, err := NewEnvelopeCipher(nil)
		require.NoError(t, err)
		_, err = noKey.Decrypt(env)
		assert.True(t, errors.Is(err, ErrKeyUnavailable))
		_, err = noKey.Encrypt("x")
		assert.ErrorIs(t, err, ErrKeyUnavailable)
	})
}

func TestNewEnvelopeCipher_InvalidKey(t *testing.T) {
	_, err := NewEnvelopeCipher([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey("secret", "salt")
	require.NoError(t, err)
	k2, _ := DeriveKey("secret", "salt")
	assert.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)

	_, err = DeriveKey("", "salt")
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}
