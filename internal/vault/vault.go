// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package vault implements the credential operations on encrypted SSH keys.
// Key material is encrypted per field before it reaches the store and is
// decrypted only inside Reveal, for the lifetime of a single response.
package vault

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/security"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/sshkey"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vaultcrypt"
)

var (
	// ErrForbidden is returned when an actor touches a secret they do not own.
	ErrForbidden = errors.New("access to this key is not permitted")
	// ErrRevoked is returned when an operation needs a live key but the key
	// has been revoked.
	ErrRevoked = errors.New("key has been revoked")
)

// Actor identifies the authenticated caller of a vault operation.
type Actor struct {
	UserID    string
	SessionID string
	Role      model.Role
	IPAddress string
	UserAgent string
}

// CreateParams carries an imported key and its metadata.
type CreateParams struct {
	Name           string
	Description    string
	Tags           []string
	ServerHost     string
	ServerPort     int
	ServerUsername string
	KeyType        model.KeyType
	PrivateKey     string
	PublicKey      string
	Passphrase     string
	AccessLevel    string
	ExpiresAt      *time.Time
}

// GenerateParams carries the metadata for a key pair minted inside the vault.
type GenerateParams struct {
	Name           string
	Description    string
	Tags           []string
	ServerHost     string
	ServerPort     int
	ServerUsername string
	KeyType        model.KeyType
	Comment        string
	AccessLevel    string
	ExpiresAt      *time.Time
}

// CredentialStore executes vault operations against a db.Store, encrypting
// and decrypting through a bounded worker pool so a burst of requests cannot
// pile up unbounded key derivations.
type CredentialStore struct {
	store    db.Store
	audit    audit.Writer
	kdfSlots chan struct{}
	now      func() time.Time
}

// NewCredentialStore wires a CredentialStore over the given store.
func NewCredentialStore(store db.Store, auditWriter audit.Writer) *CredentialStore {
	if auditWriter == nil {
		auditWriter = audit.Nop{}
	}
	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}
	return &CredentialStore{
		store:    store,
		audit:    auditWriter,
		kdfSlots: make(chan struct{}, workers),
		now:      time.Now,
	}
}

func (c *CredentialStore) acquireKDF(ctx context.Context) error {
	select {
	case c.kdfSlots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CredentialStore) releaseKDF() {
	<-c.kdfSlots
}

// Create imports an existing key pair into the vault. Every sensitive field
// is sealed under the master passphrase before it is stored.
func (c *CredentialStore) Create(ctx context.Context, actor Actor, p CreateParams, master security.Secret) (*model.SecretSummary, error) {
	if p.Name == "" || p.PrivateKey == "" {
		err := fmt.Errorf("name and private key are required")
		c.record(ctx, actor, audit.ActionCreateKey, "", "", err)
		return nil, err
	}

	fingerprint := ""
	keyType := p.KeyType
	if p.PublicKey != "" {
		algorithm, _, _, err := sshkey.Parse(p.PublicKey)
		if err != nil {
			err = fmt.Errorf("invalid public key: %w", err)
			c.record(ctx, actor, audit.ActionCreateKey, "", p.Name, err)
			return nil, err
		}
		// The algorithm on the key line wins over the declared type.
		if derived := sshkey.AlgorithmKeyType(algorithm); derived != "" {
			keyType = derived
		}
		fp, err := sshkey.Fingerprint(p.PublicKey)
		if err != nil {
			err = fmt.Errorf("invalid public key: %w", err)
			c.record(ctx, actor, audit.ActionCreateKey, "", p.Name, err)
			return nil, err
		}
		fingerprint = fp
	}

	sec := &model.Secret{
		ID:             uuid.NewString(),
		OwnerID:        actor.UserID,
		Name:           p.Name,
		Description:    p.Description,
		Tags:           p.Tags,
		ServerHost:     p.ServerHost,
		ServerPort:     p.ServerPort,
		ServerUsername: p.ServerUsername,
		KeyType:        keyType,
		KeyFingerprint: fingerprint,
		AccessLevel:    p.AccessLevel,
		IsActive:       true,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      c.now().UTC(),
	}

	if err := c.seal(ctx, sec, p.PrivateKey, p.PublicKey, p.Passphrase, master); err != nil {
		c.record(ctx, actor, audit.ActionCreateKey, sec.ID, p.Name, err)
		return nil, err
	}

	if err := c.store.CreateSecret(ctx, sec); err != nil {
		c.record(ctx, actor, audit.ActionCreateKey, sec.ID, p.Name, err)
		return nil, err
	}

	c.record(ctx, actor, audit.ActionCreateKey, sec.ID, p.Name, nil)
	summary := sec.Summary()
	return &summary, nil
}

// Generate mints a fresh key pair inside the vault and stores it sealed.
// The response carries the public half and fingerprint; the private key
// never leaves the vault unencrypted here.
func (c *CredentialStore) Generate(ctx context.Context, actor Actor, p GenerateParams, master security.Secret) (*model.SecretDetail, error) {
	material, err := sshkey.Generate(p.KeyType, p.Comment)
	if err != nil {
		c.record(ctx, actor, audit.ActionGenerateKey, "", p.Name, err)
		return nil, err
	}

	sec := &model.Secret{
		ID:             uuid.NewString(),
		OwnerID:        actor.UserID,
		Name:           p.Name,
		Description:    p.Description,
		Tags:           p.Tags,
		ServerHost:     p.ServerHost,
		ServerPort:     p.ServerPort,
		ServerUsername: p.ServerUsername,
		KeyType:        material.KeyType,
		KeyFingerprint: material.Fingerprint,
		AccessLevel:    p.AccessLevel,
		IsActive:       true,
		ExpiresAt:      p.ExpiresAt,
		CreatedAt:      c.now().UTC(),
	}

	if err := c.seal(ctx, sec, material.PrivateKeyPEM, material.PublicKey, "", master); err != nil {
		c.record(ctx, actor, audit.ActionGenerateKey, sec.ID, p.Name, err)
		return nil, err
	}

	if err := c.store.CreateSecret(ctx, sec); err != nil {
		c.record(ctx, actor, audit.ActionGenerateKey, sec.ID, p.Name, err)
		return nil, err
	}

	c.record(ctx, actor, audit.ActionGenerateKey, sec.ID, p.Name, nil)
	return &model.SecretDetail{
		SecretSummary: sec.Summary(),
		PublicKey:     material.PublicKey,
	}, nil
}

// List returns the metadata of the actor's keys, newest first.
func (c *CredentialStore) List(ctx context.Context, actor Actor) ([]model.SecretSummary, error) {
	summaries, err := c.store.ListSecrets(ctx, actor.UserID)
	c.record(ctx, actor, audit.ActionListKeys, "", "", err)
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

// Get returns the metadata of one key without touching its ciphertext.
func (c *CredentialStore) Get(ctx context.Context, actor Actor, id string) (*model.SecretSummary, error) {
	sec, err := c.load(ctx, actor, id)
	if err != nil {
		c.record(ctx, actor, audit.ActionViewKey, id, "", err)
		return nil, err
	}
	c.record(ctx, actor, audit.ActionViewKey, id, sec.Name, nil)
	summary := sec.Summary()
	return &summary, nil
}

// Reveal decrypts a key under the presented master passphrase. Revoked keys
// refuse to decrypt. Wrong passphrases, corrupted ciphertext and tampered
// envelopes are indistinguishable in the returned error.
func (c *CredentialStore) Reveal(ctx context.Context, actor Actor, id string, master security.Secret) (*model.SecretDetail, error) {
	sec, err := c.load(ctx, actor, id)
	if err != nil {
		c.record(ctx, actor, audit.ActionDecryptKey, id, "", err)
		return nil, err
	}
	if sec.IsRevoked {
		c.record(ctx, actor, audit.ActionDecryptKey, id, sec.Name, ErrRevoked)
		return nil, ErrRevoked
	}

	if err := c.acquireKDF(ctx); err != nil {
		return nil, err
	}
	privateKey, errPriv := vaultcrypt.Decrypt(sec.PrivateKey, master)
	c.releaseKDF()
	if errPriv != nil {
		c.record(ctx, actor, audit.ActionDecryptKey, id, sec.Name, errPriv)
		return nil, errPriv
	}

	detail := &model.SecretDetail{
		SecretSummary: sec.Summary(),
		PrivateKey:    string(privateKey),
	}
	if !sec.PublicKey.IsZero() {
		if err := c.acquireKDF(ctx); err != nil {
			return nil, err
		}
		publicKey, err := vaultcrypt.Decrypt(sec.PublicKey, master)
		c.releaseKDF()
		if err != nil {
			c.record(ctx, actor, audit.ActionDecryptKey, id, sec.Name, err)
			return nil, err
		}
		detail.PublicKey = string(publicKey)
	}
	if !sec.Passphrase.IsZero() {
		if err := c.acquireKDF(ctx); err != nil {
			return nil, err
		}
		passphrase, err := vaultcrypt.Decrypt(sec.Passphrase, master)
		c.releaseKDF()
		if err != nil {
			c.record(ctx, actor, audit.ActionDecryptKey, id, sec.Name, err)
			return nil, err
		}
		detail.Passphrase = string(passphrase)
	}

	if err := c.store.TouchSecretUsage(ctx, sec.ID, c.now().UTC()); err != nil {
		return nil, err
	}
	detail.UsageCount++
	now := c.now().UTC()
	detail.LastUsedAt = &now

	c.record(ctx, actor, audit.ActionViewPrivateKey, id, sec.Name, nil)
	return detail, nil
}

// Revoke marks a key unusable while retaining its row for the record.
func (c *CredentialStore) Revoke(ctx context.Context, actor Actor, id, reason string) error {
	sec, err := c.load(ctx, actor, id)
	if err != nil {
		c.record(ctx, actor, audit.ActionRevokeKey, id, "", err)
		return err
	}
	if sec.IsRevoked {
		c.record(ctx, actor, audit.ActionRevokeKey, id, sec.Name, ErrRevoked)
		return ErrRevoked
	}
	if err := c.store.MarkSecretRevoked(ctx, id, actor.UserID, reason, c.now().UTC()); err != nil {
		c.record(ctx, actor, audit.ActionRevokeKey, id, sec.Name, err)
		return err
	}
	c.record(ctx, actor, audit.ActionRevokeKey, id, sec.Name, nil)
	return nil
}

// Delete permanently removes a key and its ciphertext. The audit trail keeps
// the key id.
func (c *CredentialStore) Delete(ctx context.Context, actor Actor, id string) error {
	sec, err := c.load(ctx, actor, id)
	if err != nil {
		c.record(ctx, actor, audit.ActionDeleteKey, id, "", err)
		return err
	}
	if err := c.store.DeleteSecret(ctx, id); err != nil {
		c.record(ctx, actor, audit.ActionDeleteKey, id, sec.Name, err)
		return err
	}
	c.record(ctx, actor, audit.ActionDeleteKey, id, sec.Name, nil)
	return nil
}

// seal encrypts the sensitive fields of a secret through the KDF pool.
func (c *CredentialStore) seal(ctx context.Context, sec *model.Secret, privateKey, publicKey, passphrase string, master security.Secret) error {
	if err := c.acquireKDF(ctx); err != nil {
		return err
	}
	defer c.releaseKDF()

	env, err := vaultcrypt.Encrypt([]byte(privateKey), master)
	if err != nil {
		return err
	}
	sec.PrivateKey = env

	if publicKey != "" {
		env, err = vaultcrypt.Encrypt([]byte(publicKey), master)
		if err != nil {
			return err
		}
		sec.PublicKey = env
	}
	if passphrase != "" {
		env, err = vaultcrypt.Encrypt([]byte(passphrase), master)
		if err != nil {
			return err
		}
		sec.Passphrase = env
	}
	return nil
}

// load fetches a secret and checks the actor may touch it. Sovereigns see
// every key; owners see their own.
func (c *CredentialStore) load(ctx context.Context, actor Actor, id string) (*model.Secret, error) {
	sec, err := c.store.GetSecret(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleSovereign && sec.OwnerID != actor.UserID {
		return nil, ErrForbidden
	}
	return sec, nil
}

func (c *CredentialStore) record(ctx context.Context, actor Actor, action, keyID, detail string, opErr error) {
	c.audit.Record(ctx, audit.Event{
		UserID:    actor.UserID,
		KeyID:     keyID,
		SessionID: actor.SessionID,
		Action:    action,
		Detail:    detail,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Success:   opErr == nil,
		Error:     opErr,
	})
}
