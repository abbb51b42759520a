// Package cryptox provides the symmetric cipher used for credentials at
// rest and the key file it is keyed from. Passwords are stored
// reversibly encrypted rather than hashed: the recovery flow and several
// account operations depend on decrypted comparison. Moving to password
// hashing would require redesigning recovery, so the trade-off is made
// explicitly here.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// ErrCipherAuth reports a ciphertext that failed authentication: either
// it was tampered with or it was produced under a different key. This is
// an operator diagnostic, never a user-facing message.
var ErrCipherAuth = errors.New("cryptox: ciphertext authentication failed")

// Cipher performs authenticated encryption with AES-256-GCM. The raw
// ciphertext layout is [12-byte nonce][encrypted data][16-byte auth tag];
// token form is the raw layout in unpadded URL-safe base64 so it can live
// in a text column.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 32-byte key, normally obtained from
// LoadOrCreateKey. Exactly one key is active per process.
func NewCipher(key []byte) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens data produced by Encrypt.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, ErrCipherAuth
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrCipherAuth
	}
	return plaintext, nil
}

// EncryptToken encrypts plaintext and returns a text-column-safe token.
func (c *Cipher) EncryptToken(plaintext string) (string, error) {
	ct, err := c.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(ct), nil
}

// DecryptToken reverses EncryptToken. A token that does not decode or
// does not authenticate yields ErrCipherAuth.
func (c *Cipher) DecryptToken(token string) (string, error) {
	ct, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrCipherAuth
	}
	pt, err := c.Decrypt(ct)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}
