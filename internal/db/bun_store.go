// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// BunStore is the bun-backed implementation of Store. One instance serves
// all supported backends; dialect differences live in the migrations and in
// createBunDB.
type BunStore struct {
	bun    *bun.DB
	dbType string
}

// vaultUserModel maps the vault_users table.
type vaultUserModel struct {
	bun.BaseModel `bun:"table:vault_users"`
	ID            string    `bun:"id,pk"`
	Role          string    `bun:"role"`
	PasswordHash  string    `bun:"password_hash"`
	Email         string    `bun:"email"`
	EmailVerified bool      `bun:"email_verified"`
	TotpSecret    string    `bun:"totp_secret"`
	TotpEnabled   bool      `bun:"totp_enabled"`
	CreatedAt     time.Time `bun:"created_at"`
}

// secretModel maps the vault_secrets table.
type secretModel struct {
	bun.BaseModel `bun:"table:vault_secrets"`

	ID             string `bun:"id,pk"`
	OwnerID        string `bun:"owner_id"`
	Name           string `bun:"name"`
	Description    string `bun:"description"`
	Tags           string `bun:"tags"`
	ServerHost     string `bun:"server_host"`
	ServerPort     int    `bun:"server_port"`
	ServerUsername string `bun:"server_username"`
	KeyType        string `bun:"key_type"`
	KeyFingerprint string `bun:"key_fingerprint"`

	EncryptedPrivateKey string `bun:"encrypted_private_key"`
	PrivateKeySalt      string `bun:"private_key_salt"`
	PrivateKeyIV        string `bun:"private_key_iv"`
	EncryptedPublicKey  string `bun:"encrypted_public_key"`
	PublicKeySalt       string `bun:"public_key_salt"`
	PublicKeyIV         string `bun:"public_key_iv"`
	EncryptedPassphrase string `bun:"encrypted_passphrase"`
	PassphraseSalt      string `bun:"passphrase_salt"`
	PassphraseIV        string `bun:"passphrase_iv"`

	AccessLevel string     `bun:"access_level"`
	IsActive    bool       `bun:"is_active"`
	IsRevoked   bool       `bun:"is_revoked"`
	RevokedAt   *time.Time `bun:"revoked_at"`
	RevokedBy   string     `bun:"revoked_by"`
	RevokeNote  string     `bun:"revoke_note"`
	ExpiresAt   *time.Time `bun:"expires_at"`
	LastUsedAt  *time.Time `bun:"last_used_at"`
	UsageCount  int        `bun:"usage_count"`
	CreatedAt   time.Time  `bun:"created_at"`
}

// sessionModel maps the vault_sessions table.
type sessionModel struct {
	bun.BaseModel `bun:"table:vault_sessions"`

	ID                 string     `bun:"id,pk"`
	UserID             string     `bun:"user_id"`
	TokenHash          string     `bun:"token_hash"`
	PasswordVerified   bool       `bun:"password_verified"`
	PasswordVerifiedAt *time.Time `bun:"password_verified_at"`
	EmailCodeHash      string     `bun:"email_code_hash"`
	EmailCodeExpiresAt *time.Time `bun:"email_code_expires_at"`
	EmailVerified      bool       `bun:"email_verified"`
	EmailVerifiedAt    *time.Time `bun:"email_verified_at"`
	TotpVerified       bool       `bun:"totp_verified"`
	TotpVerifiedAt     *time.Time `bun:"totp_verified_at"`
	FullyAuthenticated bool       `bun:"fully_authenticated"`
	IsActive           bool       `bun:"is_active"`
	ExpiresAt          time.Time  `bun:"expires_at"`
	LastActivityAt     time.Time  `bun:"last_activity_at"`
	IPAddress          string     `bun:"ip_address"`
	UserAgent          string     `bun:"user_agent"`
	CreatedAt          time.Time  `bun:"created_at"`
}

// auditLogModel maps the vault_audit_log table.
type auditLogModel struct {
	bun.BaseModel `bun:"table:vault_audit_log"`

	ID           int64     `bun:"id,pk,autoincrement"`
	UserID       string    `bun:"user_id"`
	KeyID        string    `bun:"key_id"`
	SessionID    string    `bun:"session_id"`
	Action       string    `bun:"action"`
	ActionDetail string    `bun:"action_detail"`
	IPAddress    string    `bun:"ip_address"`
	UserAgent    string    `bun:"user_agent"`
	Success      bool      `bun:"success"`
	ErrorMessage string    `bun:"error_message"`
	CreatedAt    time.Time `bun:"created_at"`
}

// GetVaultUser retrieves a vault user by id.
func (s *BunStore) GetVaultUser(ctx context.Context, id string) (*model.VaultUser, error) {
	var row vaultUserModel
	err := s.bun.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u := vaultUserFromRow(row)
	return &u, nil
}

// UpsertVaultUser inserts the user or replaces its mutable fields.
func (s *BunStore) UpsertVaultUser(ctx context.Context, u *model.VaultUser) error {
	row := vaultUserToRow(u)
	q := s.bun.NewInsert().Model(&row)
	if s.dbType == "mysql" {
		q = q.On("DUPLICATE KEY UPDATE").
			Set("role = VALUES(role)").
			Set("password_hash = VALUES(password_hash)").
			Set("email = VALUES(email)").
			Set("email_verified = VALUES(email_verified)").
			Set("totp_secret = VALUES(totp_secret)").
			Set("totp_enabled = VALUES(totp_enabled)")
	} else {
		q = q.On("CONFLICT (id) DO UPDATE").
			Set("role = EXCLUDED.role").
			Set("password_hash = EXCLUDED.password_hash").
			Set("email = EXCLUDED.email").
			Set("email_verified = EXCLUDED.email_verified").
			Set("totp_secret = EXCLUDED.totp_secret").
			Set("totp_enabled = EXCLUDED.totp_enabled")
	}
	_, err := q.Exec(ctx)
	return MapDBError(err)
}

// CreateSecret persists a new secret row.
func (s *BunStore) CreateSecret(ctx context.Context, sec *model.Secret) error {
	row := secretToRow(sec)
	_, err := s.bun.NewInsert().Model(&row).Exec(ctx)
	return MapDBError(err)
}

// GetSecret retrieves a secret by id, including its encrypted payloads.
func (s *BunStore) GetSecret(ctx context.Context, id string) (*model.Secret, error) {
	var row secretModel
	err := s.bun.NewSelect().Model(&row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sec := secretFromRow(row)
	return &sec, nil
}

// ListSecrets returns metadata summaries for all of an owner's secrets,
// newest first. Encrypted payloads never leave the database here.
func (s *BunStore) ListSecrets(ctx context.Context, ownerID string) ([]model.SecretSummary, error) {
	var rows []secretModel
	err := s.bun.NewSelect().Model(&rows).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SecretSummary, 0, len(rows))
	for _, row := range rows {
		sec := secretFromRow(row)
		out = append(out, sec.Summary())
	}
	return out, nil
}

// MarkSecretRevoked flags a secret as revoked. The row is retained for audit
// continuity; only DeleteSecret removes data.
func (s *BunStore) MarkSecretRevoked(ctx context.Context, id, revokedBy, reason string, at time.Time) error {
	res, err := s.bun.NewUpdate().Model((*secretModel)(nil)).
		Set("is_revoked = ?", true).
		Set("is_active = ?", false).
		Set("revoked_at = ?", at).
		Set("revoked_by = ?", revokedBy).
		Set("revoke_note = ?", reason).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// TouchSecretUsage bumps usage_count and last_used_at in a single UPDATE so
// concurrent reveals never lose an increment.
func (s *BunStore) TouchSecretUsage(ctx context.Context, id string, at time.Time) error {
	res, err := s.bun.NewUpdate().Model((*secretModel)(nil)).
		Set("usage_count = usage_count + 1").
		Set("last_used_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteSecret hard-deletes a secret row. Irreversible, and distinct from
// revocation.
func (s *BunStore) DeleteSecret(ctx context.Context, id string) error {
	res, err := s.bun.NewDelete().Model((*secretModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// CreateSession persists a new auth session row.
func (s *BunStore) CreateSession(ctx context.Context, sess *model.AuthSession) error {
	row := sessionToRow(sess)
	_, err := s.bun.NewInsert().Model(&row).Exec(ctx)
	return MapDBError(err)
}

// GetSessionByTokenHash looks a session up by the SHA-256 digest of its raw
// token. Raw tokens are never stored, so this is the only lookup path.
func (s *BunStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error) {
	var row sessionModel
	err := s.bun.NewSelect().Model(&row).Where("token_hash = ?", tokenHash).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	sess := sessionFromRow(row)
	return &sess, nil
}

// UpdateSession writes back the mutable factor state of a session. Sessions
// that were deactivated are never resurrected: the WHERE clause requires the
// stored row to still be active.
func (s *BunStore) UpdateSession(ctx context.Context, sess *model.AuthSession) error {
	row := sessionToRow(sess)
	res, err := s.bun.NewUpdate().Model(&row).
		Column("password_verified", "password_verified_at",
			"email_code_hash", "email_code_expires_at", "email_verified", "email_verified_at",
			"totp_verified", "totp_verified_at",
			"fully_authenticated", "is_active", "expires_at", "last_activity_at").
		Where("id = ? AND is_active = ?", sess.ID, true).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// TouchSessionActivity updates last_activity_at only. Expiry is deliberately
// untouched: session lifetime is refreshed at factor completion, never by use.
func (s *BunStore) TouchSessionActivity(ctx context.Context, id string, at time.Time) error {
	_, err := s.bun.NewUpdate().Model((*sessionModel)(nil)).
		Set("last_activity_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// DeactivateSession marks a session inactive. Idempotent.
func (s *BunStore) DeactivateSession(ctx context.Context, id string) error {
	_, err := s.bun.NewUpdate().Model((*sessionModel)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// PurgeExpiredSessions removes session rows whose hard expiry passed before
// the given cutoff. Audit entries referencing them are unaffected.
func (s *BunStore) PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.bun.NewDelete().Model((*sessionModel)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AppendAuditEntry inserts one audit record. There is no corresponding
// update or delete anywhere in this package.
func (s *BunStore) AppendAuditEntry(ctx context.Context, e *model.AuditLogEntry) error {
	row := auditLogModel{
		UserID:       e.UserID,
		KeyID:        e.KeyID,
		SessionID:    e.SessionID,
		Action:       e.Action,
		ActionDetail: e.ActionDetail,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
		Success:      e.Success,
		ErrorMessage: e.ErrorMessage,
		CreatedAt:    e.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := s.bun.NewInsert().Model(&row).Exec(ctx)
	if err == nil {
		e.ID = row.ID
		e.CreatedAt = row.CreatedAt
	}
	return err
}

// QueryAuditEntries returns up to limit entries for a user, newest first.
// An empty userID returns entries across all users (sovereign view).
func (s *BunStore) QueryAuditEntries(ctx context.Context, userID string, limit int) ([]model.AuditLogEntry, error) {
	q := s.bun.NewSelect().Model((*auditLogModel)(nil)).
		Order("created_at DESC").
		Order("id DESC")
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []auditLogModel
	if err := q.Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]model.AuditLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.AuditLogEntry{
			ID:           row.ID,
			UserID:       row.UserID,
			KeyID:        row.KeyID,
			SessionID:    row.SessionID,
			Action:       row.Action,
			ActionDetail: row.ActionDetail,
			IPAddress:    row.IPAddress,
			UserAgent:    row.UserAgent,
			Success:      row.Success,
			ErrorMessage: row.ErrorMessage,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- row conversions ---

func vaultUserToRow(u *model.VaultUser) vaultUserModel {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return vaultUserModel{
		ID:            u.ID,
		Role:          string(u.Role),
		PasswordHash:  u.PasswordHash,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		TotpSecret:    u.TotpSecret,
		TotpEnabled:   u.TotpEnabled,
		CreatedAt:     created,
	}
}

func vaultUserFromRow(row vaultUserModel) model.VaultUser {
	return model.VaultUser{
		ID:            row.ID,
		Role:          model.ParseRole(row.Role),
		PasswordHash:  row.PasswordHash,
		Email:         row.Email,
		EmailVerified: row.EmailVerified,
		TotpSecret:    row.TotpSecret,
		TotpEnabled:   row.TotpEnabled,
		CreatedAt:     row.CreatedAt,
	}
}

func secretToRow(sec *model.Secret) secretModel {
	created := sec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return secretModel{
		ID:             sec.ID,
		OwnerID:        sec.OwnerID,
		Name:           sec.Name,
		Description:    sec.Description,
		Tags:           tagsToColumn(sec.Tags),
		ServerHost:     sec.ServerHost,
		ServerPort:     sec.ServerPort,
		ServerUsername: sec.ServerUsername,
		KeyType:        string(sec.KeyType),
		KeyFingerprint: sec.KeyFingerprint,

		EncryptedPrivateKey: sec.PrivateKey.Ciphertext,
		PrivateKeySalt:      sec.PrivateKey.Salt,
		PrivateKeyIV:        sec.PrivateKey.IV,
		EncryptedPublicKey:  sec.PublicKey.Ciphertext,
		PublicKeySalt:       sec.PublicKey.Salt,
		PublicKeyIV:         sec.PublicKey.IV,
		EncryptedPassphrase: sec.Passphrase.Ciphertext,
		PassphraseSalt:      sec.Passphrase.Salt,
		PassphraseIV:        sec.Passphrase.IV,

		AccessLevel: sec.AccessLevel,
		IsActive:    sec.IsActive,
		IsRevoked:   sec.IsRevoked,
		RevokedAt:   sec.RevokedAt,
		RevokedBy:   sec.RevokedBy,
		RevokeNote:  sec.RevokeNote,
		ExpiresAt:   sec.ExpiresAt,
		LastUsedAt:  sec.LastUsedAt,
		UsageCount:  sec.UsageCount,
		CreatedAt:   created,
	}
}

// tagsToColumn stores tags as a JSON array so tag values may contain any
// character, commas included.
func tagsToColumn(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return ""
	}
	return string(raw)
}

func tagsFromColumn(col string) []string {
	if col == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(col), &tags); err != nil {
		// Rows written before the JSON encoding hold a plain comma list.
		return strings.Split(col, ",")
	}
	return tags
}

func secretFromRow(row secretModel) model.Secret {
	tags := tagsFromColumn(row.Tags)
	return model.Secret{
		ID:             row.ID,
		OwnerID:        row.OwnerID,
		Name:           row.Name,
		Description:    row.Description,
		Tags:           tags,
		ServerHost:     row.ServerHost,
		ServerPort:     row.ServerPort,
		ServerUsername: row.ServerUsername,
		KeyType:        model.KeyType(row.KeyType),
		KeyFingerprint: row.KeyFingerprint,

		PrivateKey: model.Envelope{Ciphertext: row.EncryptedPrivateKey, Salt: row.PrivateKeySalt, IV: row.PrivateKeyIV},
		PublicKey:  model.Envelope{Ciphertext: row.EncryptedPublicKey, Salt: row.PublicKeySalt, IV: row.PublicKeyIV},
		Passphrase: model.Envelope{Ciphertext: row.EncryptedPassphrase, Salt: row.PassphraseSalt, IV: row.PassphraseIV},

		AccessLevel: row.AccessLevel,
		IsActive:    row.IsActive,
		IsRevoked:   row.IsRevoked,
		RevokedAt:   row.RevokedAt,
		RevokedBy:   row.RevokedBy,
		RevokeNote:  row.RevokeNote,
		ExpiresAt:   row.ExpiresAt,
		LastUsedAt:  row.LastUsedAt,
		UsageCount:  row.UsageCount,
		CreatedAt:   row.CreatedAt,
	}
}

func sessionToRow(sess *model.AuthSession) sessionModel {
	created := sess.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return sessionModel{
		ID:                 sess.ID,
		UserID:             sess.UserID,
		TokenHash:          sess.TokenHash,
		PasswordVerified:   sess.PasswordVerified,
		PasswordVerifiedAt: sess.PasswordVerifiedAt,
		EmailCodeHash:      sess.EmailCodeHash,
		EmailCodeExpiresAt: sess.EmailCodeExpiresAt,
		EmailVerified:      sess.EmailVerified,
		EmailVerifiedAt:    sess.EmailVerifiedAt,
		TotpVerified:       sess.TotpVerified,
		TotpVerifiedAt:     sess.TotpVerifiedAt,
		FullyAuthenticated: sess.FullyAuthenticated,
		IsActive:           sess.IsActive,
		ExpiresAt:          sess.ExpiresAt,
		LastActivityAt:     sess.LastActivityAt,
		IPAddress:          sess.IPAddress,
		UserAgent:          sess.UserAgent,
		CreatedAt:          created,
	}
}

func sessionFromRow(row sessionModel) model.AuthSession {
	return model.AuthSession{
		ID:                 row.ID,
		UserID:             row.UserID,
		TokenHash:          row.TokenHash,
		PasswordVerified:   row.PasswordVerified,
		PasswordVerifiedAt: row.PasswordVerifiedAt,
		EmailCodeHash:      row.EmailCodeHash,
		EmailCodeExpiresAt: row.EmailCodeExpiresAt,
		EmailVerified:      row.EmailVerified,
		EmailVerifiedAt:    row.EmailVerifiedAt,
		TotpVerified:       row.TotpVerified,
		TotpVerifiedAt:     row.TotpVerifiedAt,
		FullyAuthenticated: row.FullyAuthenticated,
		IsActive:           row.IsActive,
		ExpiresAt:          row.ExpiresAt,
		LastActivityAt:     row.LastActivityAt,
		IPAddress:          row.IPAddress,
		UserAgent:          row.UserAgent,
		CreatedAt:          row.CreatedAt,
	}
}
