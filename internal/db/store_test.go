// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// newTestStore opens a shared in-memory SQLite store with migrations applied.
func newTestStore(t *testing.T, name string) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:test_%s?mode=memory&cache=shared", name)
	store, err := NewStoreFromDSN("sqlite", dsn)
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	return store
}

func testSecret(id, owner string, created time.Time) *model.Secret {
	return &model.Secret{
		ID:             id,
		OwnerID:        owner,
		Name:           "deploy key " + id,
		ServerHost:     "bastion.example.com",
		ServerPort:     22,
		ServerUsername: "deploy",
		KeyType:        model.KeyTypeEd25519,
		KeyFingerprint: "SHA256:fp-" + id,
		PrivateKey:     model.Envelope{Ciphertext: "ct-priv-" + id, Salt: "salt1", IV: "iv1"},
		PublicKey:      model.Envelope{Ciphertext: "ct-pub-" + id, Salt: "salt2", IV: "iv2"},
		AccessLevel:    "private",
		IsActive:       true,
		CreatedAt:      created,
	}
}

func TestVaultUserUpsertAndGet(t *testing.T) {
	store := newTestStore(t, "users")
	ctx := context.Background()

	if _, err := store.GetVaultUser(ctx, "nobody"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}

	u := &model.VaultUser{
		ID:           "alice",
		Role:         model.RoleOwner,
		PasswordHash: "$2a$10$hash",
		Email:        "alice@example.com",
	}
	if err := store.UpsertVaultUser(ctx, u); err != nil {
		t.Fatalf("UpsertVaultUser insert: %v", err)
	}

	u.Email = "alice@vault.example.com"
	u.TotpEnabled = true
	if err := store.UpsertVaultUser(ctx, u); err != nil {
		t.Fatalf("UpsertVaultUser update: %v", err)
	}

	got, err := store.GetVaultUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetVaultUser: %v", err)
	}
	if got.Email != "alice@vault.example.com" || !got.TotpEnabled {
		t.Fatalf("upsert did not replace fields: %+v", got)
	}
	if got.Role != model.RoleOwner {
		t.Fatalf("role round trip failed: %q", got.Role)
	}
}

func TestSecretTagsRoundTrip(t *testing.T) {
	store := newTestStore(t, "tags")
	ctx := context.Background()

	sec := testSecret("k-tags", "alice", time.Now().UTC().Truncate(time.Second))
	sec.Tags = []string{"prod", "eu-west, dublin", "team:infra"}
	if err := store.CreateSecret(ctx, sec); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}

	got, err := store.GetSecret(ctx, "k-tags")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if len(got.Tags) != 3 {
		t.Fatalf("tags split on comma: %q", got.Tags)
	}
	for i, want := range sec.Tags {
		if got.Tags[i] != want {
			t.Fatalf("tag %d = %q, want %q", i, got.Tags[i], want)
		}
	}
}

func TestSecretLifecycle(t *testing.T) {
	store := newTestStore(t, "secrets")
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	older := testSecret("k1", "alice", base.Add(-time.Hour))
	newer := testSecret("k2", "alice", base)
	other := testSecret("k3", "bob", base)
	for _, sec := range []*model.Secret{older, newer, other} {
		if err := store.CreateSecret(ctx, sec); err != nil {
			t.Fatalf("CreateSecret %s: %v", sec.ID, err)
		}
	}

	if err := store.CreateSecret(ctx, testSecret("k1", "alice", base)); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate on re-insert, got %v", err)
	}

	got, err := store.GetSecret(ctx, "k1")
	if err != nil {
		t.Fatalf("GetSecret: %v", err)
	}
	if got.PrivateKey.Ciphertext != "ct-priv-k1" || got.PrivateKey.Salt != "salt1" {
		t.Fatalf("envelope round trip failed: %+v", got.PrivateKey)
	}

	list, err := store.ListSecrets(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSecrets: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 secrets for alice, got %d", len(list))
	}
	if list[0].ID != "k2" || list[1].ID != "k1" {
		t.Fatalf("expected newest first, got %s then %s", list[0].ID, list[1].ID)
	}

	revokedAt := base.Add(time.Minute)
	if err := store.MarkSecretRevoked(ctx, "k1", "alice", "laptop stolen", revokedAt); err != nil {
		t.Fatalf("MarkSecretRevoked: %v", err)
	}
	got, err = store.GetSecret(ctx, "k1")
	if err != nil {
		t.Fatalf("GetSecret after revoke: %v", err)
	}
	if !got.IsRevoked || got.IsActive || got.RevokedBy != "alice" || got.RevokeNote != "laptop stolen" {
		t.Fatalf("revocation not persisted: %+v", got)
	}
	if got.PrivateKey.Ciphertext == "" {
		t.Fatalf("revocation must retain ciphertext")
	}

	if err := store.TouchSecretUsage(ctx, "k2", base.Add(time.Minute)); err != nil {
		t.Fatalf("TouchSecretUsage: %v", err)
	}
	if err := store.TouchSecretUsage(ctx, "k2", base.Add(2*time.Minute)); err != nil {
		t.Fatalf("TouchSecretUsage second: %v", err)
	}
	got, _ = store.GetSecret(ctx, "k2")
	if got.UsageCount != 2 {
		t.Fatalf("expected usage_count 2, got %d", got.UsageCount)
	}
	if got.LastUsedAt == nil {
		t.Fatalf("last_used_at not set")
	}

	if err := store.DeleteSecret(ctx, "k3"); err != nil {
		t.Fatalf("DeleteSecret: %v", err)
	}
	if _, err := store.GetSecret(ctx, "k3"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteSecret(ctx, "k3"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newTestStore(t, "sessions")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sess := &model.AuthSession{
		ID:             "sess1",
		UserID:         "alice",
		TokenHash:      "aabbcc",
		IsActive:       true,
		ExpiresAt:      now.Add(15 * time.Minute),
		LastActivityAt: now,
		IPAddress:      "10.0.0.1",
		UserAgent:      "curl/8.0",
		CreatedAt:      now,
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	dup := *sess
	dup.ID = "sess2"
	if err := store.CreateSession(ctx, &dup); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate for reused token hash, got %v", err)
	}

	got, err := store.GetSessionByTokenHash(ctx, "aabbcc")
	if err != nil {
		t.Fatalf("GetSessionByTokenHash: %v", err)
	}
	if got.ID != "sess1" || !got.IsActive {
		t.Fatalf("unexpected session: %+v", got)
	}
	if _, err := store.GetSessionByTokenHash(ctx, "unknown"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown hash, got %v", err)
	}

	verifiedAt := now.Add(time.Minute)
	got.PasswordVerified = true
	got.PasswordVerifiedAt = &verifiedAt
	got.ExpiresAt = verifiedAt.Add(15 * time.Minute)
	if err := store.UpdateSession(ctx, got); err != nil {
		t.Fatalf("UpdateSession: %v", err)
	}
	got, _ = store.GetSessionByTokenHash(ctx, "aabbcc")
	if !got.PasswordVerified || got.PasswordVerifiedAt == nil {
		t.Fatalf("factor state not persisted: %+v", got)
	}

	if err := store.TouchSessionActivity(ctx, "sess1", verifiedAt.Add(time.Minute)); err != nil {
		t.Fatalf("TouchSessionActivity: %v", err)
	}
	after, _ := store.GetSessionByTokenHash(ctx, "aabbcc")
	if !after.LastActivityAt.After(now) {
		t.Fatalf("activity timestamp not advanced: %v", after.LastActivityAt)
	}
	if !after.ExpiresAt.Equal(got.ExpiresAt) {
		t.Fatalf("activity touch must not move expiry: %v != %v", after.ExpiresAt, got.ExpiresAt)
	}

	if err := store.DeactivateSession(ctx, "sess1"); err != nil {
		t.Fatalf("DeactivateSession: %v", err)
	}
	got, _ = store.GetSessionByTokenHash(ctx, "aabbcc")
	if got.IsActive {
		t.Fatalf("session still active after deactivation")
	}

	got.PasswordVerified = false
	if err := store.UpdateSession(ctx, got); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound updating deactivated session, got %v", err)
	}
}

func TestPurgeExpiredSessions(t *testing.T) {
	store := newTestStore(t, "purge")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	expired := &model.AuthSession{
		ID: "old", UserID: "alice", TokenHash: "h-old",
		IsActive: true, ExpiresAt: now.Add(-time.Hour), LastActivityAt: now.Add(-time.Hour),
	}
	live := &model.AuthSession{
		ID: "new", UserID: "alice", TokenHash: "h-new",
		IsActive: true, ExpiresAt: now.Add(time.Hour), LastActivityAt: now,
	}
	for _, s := range []*model.AuthSession{expired, live} {
		if err := store.CreateSession(ctx, s); err != nil {
			t.Fatalf("CreateSession %s: %v", s.ID, err)
		}
	}

	n, err := store.PurgeExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("PurgeExpiredSessions: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged session, got %d", n)
	}
	if _, err := store.GetSessionByTokenHash(ctx, "h-old"); err != ErrNotFound {
		t.Fatalf("expired session survived purge: %v", err)
	}
	if _, err := store.GetSessionByTokenHash(ctx, "h-new"); err != nil {
		t.Fatalf("live session purged: %v", err)
	}
}

func TestAuditAppendAndQuery(t *testing.T) {
	store := newTestStore(t, "audit")
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	for i := 0; i < 3; i++ {
		e := &model.AuditLogEntry{
			UserID:    "alice",
			Action:    "view_key",
			KeyID:     fmt.Sprintf("k%d", i),
			Success:   true,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := store.AppendAuditEntry(ctx, e); err != nil {
			t.Fatalf("AppendAuditEntry: %v", err)
		}
		if e.ID == 0 {
			t.Fatalf("entry id not assigned")
		}
	}
	if err := store.AppendAuditEntry(ctx, &model.AuditLogEntry{
		UserID: "bob", Action: "auth_password_failed", Success: false, ErrorMessage: "authentication failed",
		CreatedAt: base.Add(10 * time.Second),
	}); err != nil {
		t.Fatalf("AppendAuditEntry bob: %v", err)
	}

	entries, err := store.QueryAuditEntries(ctx, "alice", 2)
	if err != nil {
		t.Fatalf("QueryAuditEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected limit 2, got %d", len(entries))
	}
	if entries[0].KeyID != "k2" || entries[1].KeyID != "k1" {
		t.Fatalf("expected newest first, got %s then %s", entries[0].KeyID, entries[1].KeyID)
	}

	all, err := store.QueryAuditEntries(ctx, "", 0)
	if err != nil {
		t.Fatalf("QueryAuditEntries all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries total, got %d", len(all))
	}
	if all[0].UserID != "bob" || all[0].Success {
		t.Fatalf("failed attempt not recorded first: %+v", all[0])
	}
}

func TestBackupExportImport(t *testing.T) {
	src := newTestStore(t, "backup_src")
	dst := newTestStore(t, "backup_dst")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := src.UpsertVaultUser(ctx, &model.VaultUser{ID: "alice", Role: model.RoleSovereign, PasswordHash: "h"}); err != nil {
		t.Fatalf("UpsertVaultUser: %v", err)
	}
	if err := src.CreateSecret(ctx, testSecret("k1", "alice", now)); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}
	if err := src.AppendAuditEntry(ctx, &model.AuditLogEntry{UserID: "alice", Action: "create_key", KeyID: "k1", Success: true, CreatedAt: now}); err != nil {
		t.Fatalf("AppendAuditEntry: %v", err)
	}
	if err := src.CreateSession(ctx, &model.AuthSession{ID: "s1", UserID: "alice", TokenHash: "th", IsActive: true, ExpiresAt: now.Add(time.Hour), LastActivityAt: now}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	backup, err := src.ExportDataForBackup(ctx)
	if err != nil {
		t.Fatalf("ExportDataForBackup: %v", err)
	}
	if backup.Version != model.BackupVersion {
		t.Fatalf("unexpected backup version %d", backup.Version)
	}
	if len(backup.Users) != 1 || len(backup.Secrets) != 1 || len(backup.AuditLog) != 1 {
		t.Fatalf("unexpected backup contents: %d users %d secrets %d audit", len(backup.Users), len(backup.Secrets), len(backup.AuditLog))
	}

	if err := dst.ImportDataFromBackup(ctx, backup); err != nil {
		t.Fatalf("ImportDataFromBackup: %v", err)
	}
	sec, err := dst.GetSecret(ctx, "k1")
	if err != nil {
		t.Fatalf("GetSecret after import: %v", err)
	}
	if sec.PrivateKey.Ciphertext != "ct-priv-k1" {
		t.Fatalf("ciphertext lost in backup round trip: %+v", sec.PrivateKey)
	}
	if _, err := dst.GetSessionByTokenHash(ctx, "th"); err != ErrNotFound {
		t.Fatalf("sessions must not travel in backups: %v", err)
	}

	// Re-import skips existing secrets instead of failing.
	if err := dst.ImportDataFromBackup(ctx, backup); err != nil {
		t.Fatalf("ImportDataFromBackup second: %v", err)
	}

	bad := *backup
	bad.Version = 99
	if err := dst.ImportDataFromBackup(ctx, &bad); err == nil {
		t.Fatalf("expected error for unsupported backup version")
	}
}
