// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the core data structures for the credential vault:
// stored secrets, vault auth sessions, vault users and audit log entries.
// Persistence mappings live in internal/db; these structs are plain domain
// values shared across packages.
package model // import "github.com/mohamedalib2001/infera-webnova-sub007/internal/model"

import (
	"strings"
	"time"
)

// KeyType enumerates the supported SSH key algorithms.
type KeyType string

const (
	KeyTypeRSA     KeyType = "rsa"
	KeyTypeEd25519 KeyType = "ed25519"
	KeyTypeECDSA   KeyType = "ecdsa"
)

// ParseKeyType normalizes a user-supplied key type string. Unknown values
// fall back to ed25519, the vault's default algorithm.
func ParseKeyType(s string) KeyType {
	switch KeyType(strings.ToLower(strings.TrimSpace(s))) {
	case KeyTypeRSA:
		return KeyTypeRSA
	case KeyTypeECDSA:
		return KeyTypeECDSA
	default:
		return KeyTypeEd25519
	}
}

// Envelope is one authenticated ciphertext together with the parameters
// needed to decrypt it. Every encrypted field of a Secret carries its own
// envelope with a fresh salt and IV; envelopes are never shared between
// fields.
type Envelope struct {
	Ciphertext string // base64, AEAD tag appended to the ciphertext bytes
	Salt       string // hex, KDF salt
	IV         string // hex, AEAD nonce
}

// IsZero reports whether the envelope holds no ciphertext.
func (e Envelope) IsZero() bool { return e.Ciphertext == "" }

// Secret is a stored SSH credential. Key material only ever exists here in
// encrypted form; plaintext lives exclusively inside the scope of a single
// reveal call.
type Secret struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	Tags        []string

	ServerHost     string
	ServerPort     int
	ServerUsername string

	KeyType        KeyType
	KeyFingerprint string // empty when no public key was supplied

	PrivateKey Envelope
	PublicKey  Envelope // optional
	Passphrase Envelope // optional

	AccessLevel string
	IsActive    bool
	IsRevoked   bool
	RevokedAt   *time.Time
	RevokedBy   string
	RevokeNote  string
	ExpiresAt   *time.Time
	LastUsedAt  *time.Time
	UsageCount  int
	CreatedAt   time.Time
}

// Summary strips the encrypted payloads from a secret for list responses.
func (s Secret) Summary() SecretSummary {
	return SecretSummary{
		ID:             s.ID,
		Name:           s.Name,
		Description:    s.Description,
		Tags:           s.Tags,
		ServerHost:     s.ServerHost,
		ServerPort:     s.ServerPort,
		ServerUsername: s.ServerUsername,
		KeyType:        s.KeyType,
		KeyFingerprint: s.KeyFingerprint,
		AccessLevel:    s.AccessLevel,
		IsActive:       s.IsActive,
		IsRevoked:      s.IsRevoked,
		ExpiresAt:      s.ExpiresAt,
		LastUsedAt:     s.LastUsedAt,
		UsageCount:     s.UsageCount,
		CreatedAt:      s.CreatedAt,
	}
}

// SecretSummary is the metadata view of a secret. It never contains
// ciphertext, salts or IVs.
type SecretSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	ServerHost     string     `json:"serverHost,omitempty"`
	ServerPort     int        `json:"serverPort,omitempty"`
	ServerUsername string     `json:"serverUsername,omitempty"`
	KeyType        KeyType    `json:"keyType"`
	KeyFingerprint string     `json:"keyFingerprint,omitempty"`
	AccessLevel    string     `json:"accessLevel,omitempty"`
	IsActive       bool       `json:"isActive"`
	IsRevoked      bool       `json:"isRevoked"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt     *time.Time `json:"lastUsedAt,omitempty"`
	UsageCount     int        `json:"usageCount"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// SecretDetail is a summary plus, when the caller asked for it and presented
// the correct master password, the decrypted key material. The plaintext
// fields are scoped to exactly one response and are never persisted.
type SecretDetail struct {
	SecretSummary
	PrivateKey string `json:"privateKey,omitempty"`
	PublicKey  string `json:"publicKey,omitempty"`
	Passphrase string `json:"passphrase,omitempty"`
}

// AuthSession is one vault authentication session. The raw token is handed
// to the caller exactly once at creation; only its SHA-256 hash is stored.
type AuthSession struct {
	ID        string
	UserID    string
	TokenHash string

	PasswordVerified   bool
	PasswordVerifiedAt *time.Time

	EmailCodeHash      string
	EmailCodeExpiresAt *time.Time
	EmailVerified      bool
	EmailVerifiedAt    *time.Time

	TotpVerified   bool
	TotpVerifiedAt *time.Time

	FullyAuthenticated bool
	IsActive           bool
	ExpiresAt          time.Time
	LastActivityAt     time.Time
	IPAddress          string
	UserAgent          string
	CreatedAt          time.Time
}

// Expired reports whether the session's hard expiry has passed.
func (s AuthSession) Expired(now time.Time) bool { return !s.ExpiresAt.After(now) }

// VaultUser is the vault's view of a platform user: credential hash plus
// factor enrollment. Identity resolution belongs to the wider application;
// the vault only consumes it.
type VaultUser struct {
	ID            string
	Role          Role
	PasswordHash  string // bcrypt
	Email         string // empty unless verified
	EmailVerified bool
	TotpSecret    string // base32, empty unless TOTP is enrolled
	TotpEnabled   bool
	CreatedAt     time.Time
}

// HasEmail reports whether the email one-time-code factor applies.
func (u VaultUser) HasEmail() bool { return u.EmailVerified && u.Email != "" }

// HasTotp reports whether the TOTP factor applies.
func (u VaultUser) HasTotp() bool { return u.TotpEnabled && u.TotpSecret != "" }

// AuditLogEntry is one append-only record of a sensitive vault action.
// Entries are never updated or deleted; they are the only forensic trail of
// vault access.
type AuditLogEntry struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"userId"`
	KeyID        string     `json:"keyId,omitempty"`
	SessionID    string     `json:"sessionId,omitempty"`
	Action       string     `json:"action"`
	ActionDetail string     `json:"actionDetail,omitempty"`
	IPAddress    string     `json:"ipAddress,omitempty"`
	UserAgent    string     `json:"userAgent,omitempty"`
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}
