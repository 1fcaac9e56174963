// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package backup

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

func TestWriteReadRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	data := &model.BackupData{
		Version:    model.BackupVersion,
		ExportedAt: now,
		Users:      []model.VaultUser{{ID: "alice", Role: model.RoleOwner, PasswordHash: "h"}},
		Secrets: []model.Secret{{
			ID: "k1", OwnerID: "alice", Name: "key",
			KeyType:    model.KeyTypeEd25519,
			PrivateKey: model.Envelope{Ciphertext: "ct", Salt: "salt", IV: "iv"},
			CreatedAt:  now,
		}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Fatalf("output is not a zstd stream: % x", buf.Bytes()[:4])
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Secrets) != 1 || got.Secrets[0].PrivateKey.Ciphertext != "ct" {
		t.Fatalf("round trip lost secret: %+v", got.Secrets)
	}
	if got.Users[0].ID != "alice" {
		t.Fatalf("round trip lost user: %+v", got.Users)
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	if _, err := Read(strings.NewReader("not a zstd stream")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestExportImportFiles(t *testing.T) {
	ctx := context.Background()
	src, err := db.NewStoreFromDSN("sqlite", "file:test_backup_src?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	dst, err := db.NewStoreFromDSN("sqlite", "file:test_backup_dst?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}

	if err := src.UpsertVaultUser(ctx, &model.VaultUser{ID: "alice", Role: model.RoleSovereign, PasswordHash: "h"}); err != nil {
		t.Fatalf("UpsertVaultUser: %v", err)
	}
	if err := src.CreateSecret(ctx, &model.Secret{
		ID: "k1", OwnerID: "alice", Name: "key", KeyType: model.KeyTypeEd25519,
		PrivateKey: model.Envelope{Ciphertext: "ct", Salt: "s", IV: "iv"},
		IsActive:   true, CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("CreateSecret: %v", err)
	}

	path := filepath.Join(t.TempDir(), "vault-backup.json")
	written, err := ExportFile(ctx, src, audit.NewRecorder(src), "alice", path)
	if err != nil {
		t.Fatalf("ExportFile: %v", err)
	}
	if !strings.HasSuffix(written, ".zst") {
		t.Fatalf("expected .zst suffix, got %q", written)
	}

	if err := ImportFile(ctx, dst, audit.NewRecorder(dst), "alice", written); err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	sec, err := dst.GetSecret(ctx, "k1")
	if err != nil {
		t.Fatalf("GetSecret after import: %v", err)
	}
	if sec.PrivateKey.Ciphertext != "ct" {
		t.Fatalf("ciphertext lost: %+v", sec.PrivateKey)
	}

	entries, err := dst.QueryAuditEntries(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("QueryAuditEntries: %v", err)
	}
	var imported bool
	for _, e := range entries {
		if e.Action == audit.ActionBackupImport && e.Success {
			imported = true
		}
	}
	if !imported {
		t.Fatalf("import not audited: %+v", entries)
	}
}
