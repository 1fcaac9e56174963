// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import (
	"context"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// Store defines the interface for all database operations in the vault.
// This allows for multiple database backends to be implemented and for tests
// to inject fakes.
//
// The audit log contract is deliberately append-only: there is no update or
// delete method for audit entries, and none may ever be added.
type Store interface {
	// Vault user methods
	GetVaultUser(ctx context.Context, id string) (*model.VaultUser, error)
	UpsertVaultUser(ctx context.Context, u *model.VaultUser) error

	// Secret methods
	CreateSecret(ctx context.Context, s *model.Secret) error
	GetSecret(ctx context.Context, id string) (*model.Secret, error)
	ListSecrets(ctx context.Context, ownerID string) ([]model.SecretSummary, error)
	MarkSecretRevoked(ctx context.Context, id, revokedBy, reason string, at time.Time) error
	TouchSecretUsage(ctx context.Context, id string, at time.Time) error
	DeleteSecret(ctx context.Context, id string) error

	// Auth session methods
	CreateSession(ctx context.Context, s *model.AuthSession) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.AuthSession, error)
	UpdateSession(ctx context.Context, s *model.AuthSession) error
	TouchSessionActivity(ctx context.Context, id string, at time.Time) error
	DeactivateSession(ctx context.Context, id string) error
	PurgeExpiredSessions(ctx context.Context, before time.Time) (int64, error)

	// Audit log methods (append-only)
	AppendAuditEntry(ctx context.Context, e *model.AuditLogEntry) error
	QueryAuditEntries(ctx context.Context, userID string, limit int) ([]model.AuditLogEntry, error)

	// Backup methods
	ExportDataForBackup(ctx context.Context) (*model.BackupData, error)
	ImportDataFromBackup(ctx context.Context, backup *model.BackupData) error
}
