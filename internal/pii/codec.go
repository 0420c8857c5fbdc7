// Package pii decrypts personally identifiable fields that the backend
// returns still encrypted.
//
// Wire format: hex(IV, 16 bytes) followed by hex(AES-256-CBC ciphertext),
// PKCS#7 padded.
package pii

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"hospital-frontend/pkg/logger"
)

var (
	ErrInvalidKey = errors.New("pii: key must be 64 hex characters (32 bytes)")
	ErrMalformed  = errors.New("pii: malformed ciphertext")
	ErrPadding    = errors.New("pii: invalid padding")
)

// minEncryptedLen is the length above which an all-hex value is treated as ciphertext.
const minEncryptedLen = 20

// FailureRecorder counts values that looked encrypted but did not decrypt.
type FailureRecorder interface {
	ObserveDecryptFailure()
}

// Codec is safe for concurrent use.
type Codec struct {
	block    cipher.Block
	recorder FailureRecorder
}

// NewCodec builds a Codec from a 64-character hex key.
func NewCodec(keyHex string, recorder FailureRecorder) (*Codec, error) {
	key, err := hex.DecodeString(strings.TrimSpace(keyHex))
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("pii: %w", err)
	}
	return &Codec{block: block, recorder: recorder}, nil
}

// Encrypt returns hex(iv)+hex(ciphertext) using a random IV.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("pii: iv: %w", err)
	}
	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, iv).CryptBlocks(out, padded)
	return hex.EncodeToString(iv) + hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Empty input decrypts to itself.
func (c *Codec) Decrypt(encoded string) (string, error) {
	if strings.TrimSpace(encoded) == "" {
		return encoded, nil
	}
	if len(encoded) <= aes.BlockSize*2 {
		return "", ErrMalformed
	}
	iv, err := hex.DecodeString(encoded[:aes.BlockSize*2])
	if err != nil {
		return "", ErrMalformed
	}
	ct, err := hex.DecodeString(encoded[aes.BlockSize*2:])
	if err != nil || len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", ErrMalformed
	}
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(c.block, iv).CryptBlocks(plain, ct)
	plain, err = unpad(plain)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// LooksEncrypted reports whether v is long enough and hex-only.
// Plain values that happen to match (long numeric ids) are tried and then
// returned unchanged by Reveal.
func LooksEncrypted(v string) bool {
	if len(v) <= minEncryptedLen {
		return false
	}
	for i := 0; i < len(v); i++ {
		ch := v[i]
		if !(ch >= '0' && ch <= '9' || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F') {
			return false
		}
	}
	return true
}

// Reveal decrypts v when it looks encrypted. Any failure returns v unchanged
// and logs a warning.
func (c *Codec) Reveal(ctx context.Context, field, v string) string {
	if !LooksEncrypted(v) {
		return v
	}
	plain, err := c.Decrypt(v)
	if err != nil {
		logger.From(ctx).Warn("pii decrypt failed", slog.String("field", field), slog.Any("err", err))
		if c.recorder != nil {
			c.recorder.ObserveDecryptFailure()
		}
		return v
	}
	return plain
}

// RevealUser returns a copy of user with email, phone and profile.phone revealed.
func (c *Codec) RevealUser(ctx context.Context, user map[string]any) map[string]any {
	if user == nil {
		return nil
	}
	out := make(map[string]any, len(user))
	for k, v := range user {
		out[k] = v
	}
	for _, field := range []string{"email", "phone"} {
		if s, ok := out[field].(string); ok && s != "" {
			out[field] = c.Reveal(ctx, field, s)
		}
	}
	if profile, ok := out["profile"].(map[string]any); ok {
		p := make(map[string]any, len(profile))
		for k, v := range profile {
			p[k] = v
		}
		if s, ok := p["phone"].(string); ok && s != "" {
			p["phone"] = c.Reveal(ctx, "profile.phone", s)
		}
		out["profile"] = p
	}
	return out
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrPadding
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrPadding
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrPadding
		}
	}
	return b[:len(b)-n], nil
}
