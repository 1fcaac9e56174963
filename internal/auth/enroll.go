// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package auth

import (
	"context"
	"fmt"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// totpIssuer appears in authenticator apps next to the account name.
const totpIssuer = "WebNova Vault"

// minPasswordLength is enforced on enrollment, not on login.
const minPasswordLength = 12

// SetPassword hashes and stores a user's password, creating the user when it
// does not exist yet. New users default to the owner role.
func SetPassword(ctx context.Context, store db.Store, userID, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user, err := store.GetVaultUser(ctx, userID)
	if err == db.ErrNotFound {
		user = &model.VaultUser{ID: userID, Role: model.RoleOwner}
	} else if err != nil {
		return err
	}
	user.PasswordHash = string(hash)
	return store.UpsertVaultUser(ctx, user)
}

// SetEmail enrolls the email factor for a user.
func SetEmail(ctx context.Context, store db.Store, userID, email string) error {
	user, err := store.GetVaultUser(ctx, userID)
	if err != nil {
		return err
	}
	user.Email = email
	user.EmailVerified = email != ""
	return store.UpsertVaultUser(ctx, user)
}

// EnrollTotp generates a fresh TOTP secret for the user and returns the
// otpauth:// provisioning URL for authenticator apps. The secret is shown
// exactly once through that URL.
func EnrollTotp(ctx context.Context, store db.Store, userID string) (string, error) {
	user, err := store.GetVaultUser(ctx, userID)
	if err != nil {
		return "", err
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: userID,
	})
	if err != nil {
		return "", err
	}
	user.TotpSecret = key.Secret()
	user.TotpEnabled = true
	if err := store.UpsertVaultUser(ctx, user); err != nil {
		return "", err
	}
	return key.URL(), nil
}
