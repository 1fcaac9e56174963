// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "time"

// BackupData is the portable snapshot of a vault. Secrets travel as stored,
// ciphertext and envelope parameters only; a backup never contains plaintext
// key material or session state.
type BackupData struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Users      []VaultUser     `json:"users"`
	Secrets    []Secret        `json:"secrets"`
	AuditLog   []AuditLogEntry `json:"auditLog"`
}

// BackupVersion is the current snapshot format version.
const BackupVersion = 1
