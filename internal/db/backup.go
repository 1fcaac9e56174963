// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// ExportDataForBackup reads the full vault contents into a portable snapshot.
// Sessions are excluded: they are ephemeral and must not survive a restore.
func (s *BunStore) ExportDataForBackup(ctx context.Context) (*model.BackupData, error) {
	backup := &model.BackupData{
		Version:    model.BackupVersion,
		ExportedAt: time.Now().UTC(),
	}

	var userRows []vaultUserModel
	if err := s.bun.NewSelect().Model(&userRows).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export users: %w", err)
	}
	for _, row := range userRows {
		backup.Users = append(backup.Users, vaultUserFromRow(row))
	}

	var secretRows []secretModel
	if err := s.bun.NewSelect().Model(&secretRows).Order("created_at ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("export secrets: %w", err)
	}
	for _, row := range secretRows {
		backup.Secrets = append(backup.Secrets, secretFromRow(row))
	}

	entries, err := s.QueryAuditEntries(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("export audit log: %w", err)
	}
	backup.AuditLog = entries

	return backup, nil
}

// ImportDataFromBackup loads a snapshot into the store. Users are upserted;
// secrets that already exist are skipped rather than overwritten, and audit
// entries are appended as new rows so the local log stays monotonic.
func (s *BunStore) ImportDataFromBackup(ctx context.Context, backup *model.BackupData) error {
	if backup == nil {
		return fmt.Errorf("import: nil backup")
	}
	if backup.Version != model.BackupVersion {
		return fmt.Errorf("import: unsupported backup version %d", backup.Version)
	}

	for i := range backup.Users {
		if err := s.UpsertVaultUser(ctx, &backup.Users[i]); err != nil {
			return fmt.Errorf("import user %s: %w", backup.Users[i].ID, err)
		}
	}

	for i := range backup.Secrets {
		err := s.CreateSecret(ctx, &backup.Secrets[i])
		if err == ErrDuplicate {
			continue
		}
		if err != nil {
			return fmt.Errorf("import secret %s: %w", backup.Secrets[i].ID, err)
		}
	}

	for i := range backup.AuditLog {
		entry := backup.AuditLog[i]
		entry.ID = 0
		if err := s.AppendAuditEntry(ctx, &entry); err != nil {
			return fmt.Errorf("import audit entry: %w", err)
		}
	}

	return nil
}
