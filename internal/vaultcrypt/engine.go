// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// package vaultcrypt implements the vault's per-secret symmetric encryption.
// A 256-bit key is derived from the caller's passphrase with PBKDF2-HMAC-SHA512
// over a fresh random salt, and the plaintext is sealed with AES-256-GCM under
// a fresh random nonce. One envelope fully describes one encrypted field;
// salts and IVs are never reused across fields, even within the same secret.
package vaultcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/security"
)

const (
	// Iterations is the PBKDF2 work factor. Deliberately expensive so an
	// offline attacker holding ciphertext and salt still pays per guess.
	Iterations = 100_000

	keyLen   = 32 // AES-256
	saltLen  = 16
	nonceLen = 16 // 128-bit IV, tag appended to ciphertext by GCM
)

// ErrDecryptFailed is the single failure surfaced by Decrypt. Wrong
// passphrase, corrupted ciphertext, and mismatched salt/IV are
// indistinguishable on purpose: differentiating them would hand an attacker
// an oracle.
var ErrDecryptFailed = errors.New("vaultcrypt: authentication failed")

// deriveKey stretches a passphrase into an AES-256 key.
func deriveKey(passphrase security.Secret, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, Iterations, keyLen, sha512.New)
}

// Encrypt seals plaintext under the passphrase and returns a complete
// envelope. A fresh salt and nonce are drawn for every call; no state is
// shared between calls.
func Encrypt(plaintext []byte, passphrase security.Secret) (model.Envelope, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return model.Envelope{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return model.Envelope{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer zero(key)

	aead, err := newAEAD(key)
	if err != nil {
		return model.Envelope{}, err
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	return model.Envelope{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed),
		Salt:       hex.EncodeToString(salt),
		IV:         hex.EncodeToString(nonce),
	}, nil
}

// Decrypt opens an envelope with the passphrase. Any tag-verification
// failure, malformed parameter, or truncated ciphertext is reported as
// ErrDecryptFailed without further detail.
func Decrypt(env model.Envelope, passphrase security.Secret) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	salt, err := hex.DecodeString(env.Salt)
	if err != nil || len(salt) != saltLen {
		return nil, ErrDecryptFailed
	}
	nonce, err := hex.DecodeString(env.IV)
	if err != nil || len(nonce) != nonceLen {
		return nil, ErrDecryptFailed
	}

	key := deriveKey(passphrase, salt)
	defer zero(key)

	aead, err := newAEAD(key)
	if err != nil {
		return nil, ErrDecryptFailed
	}

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	// Envelopes carry 128-bit IVs; GCM needs the explicit nonce-size
	// constructor for anything other than 96 bits.
	return cipher.NewGCMWithNonceSize(block, nonceLen)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
