// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/backup"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/i18n"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/security"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/sshkey"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vault"
)

var auditCmd = &cobra.Command{
	Use:   "audit [user]",
	Short: "Show the audit trail, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := ""
		if len(args) == 1 {
			userID = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := store.QueryAuditEntries(cmd.Context(), userID, limit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println(i18n.T("audit.empty"))
			return nil
		}
		for _, e := range entries {
			status := "ok"
			if !e.Success {
				status = "FAILED"
			}
			fmt.Printf("%s  %-6s %-24s user=%s key=%s %s %s\n",
				e.CreatedAt.Format(time.RFC3339), audit.ActionRisk(e.Action),
				e.Action, e.UserID, e.KeyID, status, e.ErrorMessage)
		}
		return nil
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate an SSH key pair, optionally storing it in the vault",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		typeFlag, _ := cmd.Flags().GetString("type")
		keyType := model.ParseKeyType(typeFlag)
		comment, _ := cmd.Flags().GetString("comment")
		if comment == "" {
			comment = name
		}
		storeIt, _ := cmd.Flags().GetBool("store")
		owner, _ := cmd.Flags().GetString("owner")

		if !storeIt {
			material, err := sshkey.Generate(keyType, comment)
			if err != nil {
				return err
			}
			fmt.Println(i18n.Tf("generate.done", map[string]any{"Type": string(material.KeyType)}))
			fmt.Println(i18n.Tf("generate.fingerprint", map[string]any{"Fingerprint": material.Fingerprint}))
			fmt.Print(material.PrivateKeyPEM)
			fmt.Println(material.PublicKey)
			return nil
		}

		if owner == "" {
			return fmt.Errorf("--owner is required with --store")
		}
		master, err := promptPassword("Vault master password: ")
		if err != nil {
			return err
		}

		creds := vault.NewCredentialStore(store, audit.NewRecorder(store))
		actor := vault.Actor{UserID: owner, Role: model.RoleSovereign}
		detail, err := creds.Generate(cmd.Context(), actor, vault.GenerateParams{
			Name:    name,
			KeyType: keyType,
			Comment: comment,
		}, security.FromString(master))
		if err != nil {
			return err
		}
		fmt.Println(i18n.Tf("generate.done", map[string]any{"Type": string(detail.KeyType)}))
		fmt.Println(i18n.Tf("generate.fingerprint", map[string]any{"Fingerprint": detail.KeyFingerprint}))
		fmt.Println(i18n.Tf("generate.stored", map[string]any{"ID": detail.ID}))
		fmt.Println(detail.PublicKey)
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [output-file]",
	Short: "Create a compressed (zstd) JSON backup of the vault",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filename := fmt.Sprintf("webnova-backup-%s.json", time.Now().Format("2006-01-02"))
		if len(args) == 1 {
			filename = args[0]
		}
		written, err := backup.ExportFile(cmd.Context(), store, audit.NewRecorder(store), "cli", filename)
		if err != nil {
			return err
		}
		fmt.Println(i18n.Tf("backup.exported", map[string]any{"File": written}))
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore a vault backup into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backup.ImportFile(cmd.Context(), store, audit.NewRecorder(store), "cli", args[0]); err != nil {
			return err
		}
		fmt.Println(i18n.Tf("backup.imported", map[string]any{"File": args[0]}))
		return nil
	},
}

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run database maintenance (vacuum, optimize, integrity check)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := db.RunDBMaintenance(cfg.Database.Type, cfg.Database.Dsn); err != nil {
			return err
		}

		// Maintenance is also a good moment to drop long-dead sessions.
		if _, err := store.PurgeExpiredSessions(cmd.Context(), time.Now().UTC()); err != nil {
			return err
		}
		fmt.Println(i18n.T("maintenance.done"))
		return nil
	},
}

func init() {
	auditCmd.Flags().Int("limit", 50, "Maximum number of entries to show")
	configCmd.Flags().Bool("system", false, "Write to the system config directory instead of the user one")
	generateCmd.Flags().String("type", "ed25519", "Key type (ed25519, rsa, ecdsa)")
	generateCmd.Flags().String("comment", "", "Key comment")
	generateCmd.Flags().Bool("store", false, "Encrypt and store the key in the vault")
	generateCmd.Flags().String("owner", "", "Vault user owning the stored key")
}
