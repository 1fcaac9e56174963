// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package audit

import "strings"

// Audit action names. Every vault operation records exactly one of these,
// on success and on failure alike.
const (
	ActionListKeys       = "list_keys"
	ActionCreateKey      = "create_key"
	ActionViewKey        = "view_key"
	ActionViewPrivateKey = "view_private_key"
	ActionDecryptKey     = "decrypt_key"
	ActionDeleteKey      = "delete_key"
	ActionRevokeKey      = "revoke_key"
	ActionGenerateKey    = "generate_key"

	ActionAuthPassword          = "auth_password"
	ActionAuthPasswordFailed    = "auth_password_failed"
	ActionAuthEmail             = "auth_email"
	ActionAuthEmailFailed       = "auth_email_failed"
	ActionAuthTotp              = "auth_totp"
	ActionAuthTotpFailed        = "auth_totp_failed"
	ActionAuthProtocolViolation = "auth_protocol_violation"
	ActionAuthLogout            = "auth_logout"
	ActionVaultUnlocked         = "vault_unlocked"

	ActionBackupExport = "backup_export"
	ActionBackupImport = "backup_import"
)

// ActionRisk classifies an audit action into a risk category.
// Returns one of: "high", "medium", "low", "info".
func ActionRisk(action string) string {
	switch {
	case strings.HasPrefix(action, "delete_key"),
		strings.HasPrefix(action, "revoke_key"),
		strings.HasPrefix(action, "view_private_key"),
		strings.HasPrefix(action, "decrypt_key"),
		strings.HasPrefix(action, "auth_protocol_violation"),
		strings.HasPrefix(action, "backup_import"):
		return "high"
	case strings.HasPrefix(action, "create_key"),
		strings.HasPrefix(action, "generate_key"),
		strings.HasPrefix(action, "vault_unlocked"),
		strings.HasPrefix(action, "backup_export"):
		return "medium"
	case strings.HasPrefix(action, "auth_password_failed"),
		strings.HasPrefix(action, "auth_email_failed"),
		strings.HasPrefix(action, "auth_totp_failed"),
		strings.HasPrefix(action, "view_key"):
		return "low"
	default:
		return "info"
	}
}
