// Package vault provides authenticated symmetric encryption for document
// bytes at rest. Every stored file is sealed with AES-256-GCM under a single
// process-wide key; the nonce and authentication tag are persisted alongside
// the ciphertext path so reads can verify integrity.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

const (
	keySize   = 32 // AES-256
	nonceSize = 12 // 96-bit IV per GCM recommendation
	tagSize   = 16 // 128-bit authentication tag
)

// ErrDecryptionFailed is returned when a ciphertext fails tag verification or
// the stored iv/tag are malformed. It covers both tampering and corruption.
var ErrDecryptionFailed = errors.New("decryption failed: ciphertext or tag invalid")

// Vault seals and opens document bytes with a fixed symmetric key.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a 64-character hex key (32 bytes).
func New(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", keySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, err
	}
	return &Vault{aead: aead}, nil
}

// Seal encrypts plaintext with a fresh random nonce. The returned iv and tag
// are hex-encoded for column storage; the ciphertext excludes the tag.
func (v *Vault) Seal(plaintext []byte) (ciphertext []byte, ivHex, tagHex string, err error) {
	nonce := make([]byte, nonceSize)
	if _, err = rand.Read(nonce); err != nil {
		return nil, "", "", err
	}

	sealed := v.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize
	return sealed[:split], hex.EncodeToString(nonce), hex.EncodeToString(sealed[split:]), nil
}

// Open decrypts a ciphertext previously produced by Seal. Any mismatch in
// nonce, tag, or ciphertext bytes yields ErrDecryptionFailed.
func (v *Vault) Open(ciphertext []byte, ivHex, tagHex string) ([]byte, error) {
	nonce, err := hex.DecodeString(ivHex)
	if err != nil || len(nonce) != nonceSize {
		return nil, ErrDecryptionFailed
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil || len(tag) != tagSize {
		return nil, ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
