package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// EnvelopePrefix tags every ciphertext produced by this package, format: enc:v1:<base64url>
	EnvelopePrefix = "enc:"
	// EnvelopeVersion current envelope version (AES-256-GCM)
	EnvelopeVersion = "v1"

	// KeySize AES-256
	KeySize = 32

	nonceSize = 12
	tagSize   = 16

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrUnknownEnvelope tag is not enc:v1
	ErrUnknownEnvelope = errors.New("unrecognized envelope")
	// ErrIntegrity ciphertext failed authentication
	ErrIntegrity = errors.New("envelope integrity check failed")
	// ErrKeyUnavailable cipher was built without a key
	ErrKeyUnavailable = errors.New("encryption key unavailable")
	// ErrInvalidKey key is not 32 bytes
	ErrInvalidKey = errors.New("encryption key must be 32 bytes")
)

// DecryptionError wraps the reason an envelope could not be opened
type DecryptionError struct {
	Reason error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Reason)
}

func (e *DecryptionError) Unwrap() error {
	return e.Reason
}

// EnvelopeCipher 以單一對稱金鑰加解密訊息內容, 金鑰於啟動時決定並常駐記憶體
type EnvelopeCipher struct {
	aead cipher.AEAD
}

// DeriveKey derives a 32 byte key from a configured secret with argon2id
func DeriveKey(secret, salt string) ([]byte, error) {
	if secret == "" {
		return nil, ErrKeyUnavailable
	}
	if salt == "" {
		return nil, errors.New("encryption salt is required")
	}
	return argon2.IDKey([]byte(secret), []byte(salt), argonTime, argonMemory, argonThreads, KeySize), nil
}

// NewEnvelopeCipher create EnvelopeCipher; a nil key yields a cipher whose Encrypt/Decrypt report ErrKeyUnavailable
func NewEnvelopeCipher(key []byte) (*EnvelopeCipher, error) {
	if key == nil {
		return &EnvelopeCipher{}, nil
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &EnvelopeCipher{aead: aead}, nil
}

// Encrypt seals plaintext into a versioned envelope string
func (c *EnvelopeCipher) Encrypt(plaintext string) (string, error) {
	if c.aead == nil {
		return "", ErrKeyUnavailable
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return EnvelopePrefix + EnvelopeVersion + ":" + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt
func (c *EnvelopeCipher) Decrypt(envelope string) (string, error) {
	version, payload, ok := splitEnvelope(envelope)
	if !ok || version != EnvelopeVersion {
		return "", &DecryptionError{Reason: ErrUnknownEnvelope}
	}
	if c.aead == nil {
		return "", &DecryptionError{Reason: ErrKeyUnavailable}
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", &DecryptionError{Reason: fmt.Errorf("invalid base64 payload: %w", err)}
	}
	if len(data) < nonceSize+tagSize {
		return "", &DecryptionError{Reason: ErrIntegrity}
	}

	plain, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", &DecryptionError{Reason: ErrIntegrity}
	}
	return string(plain), nil
}

// IsValidEnvelope 只檢查結構 (前綴, 版本, base64, 最小長度), 不做解密
func (c *EnvelopeCipher) IsValidEnvelope(value string) bool {
	return IsValidEnvelope(value)
}

// IsValidEnvelope reports whether value looks like an envelope of a known version
func IsValidEnvelope(value string) bool {
	version, payload, ok := splitEnvelope(value)
	if !ok || version != EnvelopeVersion {
		return false
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return false
	}
	return len(data) >= nonceSize+tagSize
}

func splitEnvelope(value string) (version, payload string, ok bool) {
	if !strings.HasPrefix(value, EnvelopePrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(value, EnvelopePrefix)
	version, payload, ok = strings.Cut(rest, ":")
	if !ok || version == "" || payload == "" {
		return "", "", false
	}
	return version, payload, true
}
