package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// ErrDecryption is returned for any envelope that cannot be opened: malformed,
// tampered with, or sealed under another key.
var ErrDecryption = errors.New("decryption failed")

const (
	keySalt   = "focusboard-token-store"
	keyLength = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// Cipher seals token bundles with AES-256-GCM under a key derived from the
// server secret. Envelopes have the form hex(nonce):hex(ciphertext).
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the encryption key from secret. Derivation is slow on
// purpose and happens once per process.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher secret must not be empty")
	}

	key, err := scrypt.Key([]byte(secret), []byte(keySalt), scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)

	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Cipher) Decrypt(envelope string) ([]byte, error) {
	ivHex, dataHex, ok := strings.Cut(envelope, ":")
	if !ok {
		return nil, fmt.Errorf("%w: malformed envelope", ErrDecryption)
	}

	nonce, err := hex.DecodeString(ivHex)
	if err != nil || len(nonce) != c.aead.NonceSize() {
		return nil, fmt.Errorf("%w: invalid nonce", ErrDecryption)
	}

	sealed, err := hex.DecodeString(dataHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryption)
	}

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return plaintext, nil
}
