// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/auth"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/i18n"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage vault users and their factors",
}

var adminSetPasswordCmd = &cobra.Command{
	Use:   "set-password <user>",
	Short: "Set or reset a user's vault password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]

		password, err := promptPassword(i18n.Tf("admin.password_prompt", map[string]any{"User": userID}))
		if err != nil {
			return err
		}
		confirm, err := promptPassword(i18n.T("admin.password_confirm"))
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("%s", i18n.T("admin.password_mismatch"))
		}

		if err := auth.SetPassword(cmd.Context(), store, userID, password); err != nil {
			return err
		}
		fmt.Println(i18n.Tf("admin.password_set", map[string]any{"User": userID}))
		return nil
	},
}

var adminSetEmailCmd = &cobra.Command{
	Use:   "set-email <user> <email>",
	Short: "Enroll the email verification factor for a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.SetEmail(cmd.Context(), store, args[0], args[1]); err != nil {
			return err
		}
		fmt.Println(i18n.Tf("admin.email_set", map[string]any{"User": args[0]}))
		return nil
	},
}

var adminEnrollTotpCmd = &cobra.Command{
	Use:   "enroll-totp <user>",
	Short: "Enroll the authenticator factor for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, err := auth.EnrollTotp(cmd.Context(), store, args[0])
		if err != nil {
			return err
		}
		fmt.Println(i18n.T("admin.totp_enrolled"))
		fmt.Println(url)
		return nil
	},
}

func init() {
	adminCmd.AddCommand(adminSetPasswordCmd)
	adminCmd.AddCommand(adminSetEmailCmd)
	adminCmd.AddCommand(adminEnrollTotpCmd)
}

// promptPassword reads a password without echo. A non-terminal stdin falls
// back to a plain line read so the command stays scriptable.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	var line string
	if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
