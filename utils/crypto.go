package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"strings"
)

const sealedPrefix = "enc:"

var ErrKeySize = errors.New("secret key must be 32 bytes")

// ParseSecretKey accepts a 32 byte key given raw, hex-encoded or base64-encoded.
func ParseSecretKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch {
	case len(s) == 32:
		return []byte(s), nil
	case len(s) == 64:
		if k, err := hex.DecodeString(s); err == nil {
			return k, nil
		}
	}
	if k, err := base64.StdEncoding.DecodeString(s); err == nil && len(k) == 32 {
		return k, nil
	}
	return nil, ErrKeySize
}

// SecretBox seals short secrets (SMTP app passwords) with AES-256-GCM for storage.
type SecretBox struct {
	aead cipher.AEAD
}

func NewSecretBox(key []byte) (*SecretBox, error) {
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &SecretBox{aead: aead}, nil
}

// Seal returns "enc:" + base64(nonce || ciphertext). Already sealed values are returned as is.
func (b *SecretBox) Seal(plain string) (string, error) {
	if IsSealed(plain) {
		return plain, nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := b.aead.Seal(nonce, nonce, []byte(plain), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal. Values stored before encryption was enabled pass through unchanged.
func (b *SecretBox) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	raw, err := base64.StdEncoding.DecodeString(stored[len(sealedPrefix):])
	if err != nil {
		return "", err
	}
	n := b.aead.NonceSize()
	if len(raw) < n {
		return "", errors.New("sealed secret too short")
	}
	plain, err := b.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealedPrefix)
}
