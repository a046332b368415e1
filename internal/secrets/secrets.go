// Package secrets encrypts storage credentials at rest. Values are sealed
// with ChaCha20-Poly1305 under a process-wide key; any tampering with the
// stored ciphertext fails closed with ErrDecryption.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryption is returned for any ciphertext that cannot be authenticated,
// whether truncated, corrupted, or sealed under a different key.
var ErrDecryption = errors.New("decryption failed")

// Codec seals and opens credential secrets.
type Codec struct {
	key []byte
}

// NewCodec builds a Codec from a raw 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	stored := make([]byte, len(key))
	copy(stored, key)
	return &Codec{key: stored}, nil
}

// NewCodecFromBase64 builds a Codec from a base64-encoded 32-byte key, the
// form the key takes in configuration.
func NewCodecFromBase64(encoded string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewCodec(key)
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext).
func (c *Codec) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Every authentication failure is
// reported as ErrDecryption without detail, so callers cannot distinguish
// truncation from tampering.
func (c *Codec) Decrypt(encoded string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrDecryption
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrDecryption
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
