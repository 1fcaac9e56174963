// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseKeyType(t *testing.T) {
	cases := []struct {
		in   string
		want KeyType
	}{
		{"rsa", KeyTypeRSA},
		{"RSA", KeyTypeRSA},
		{"  ecdsa ", KeyTypeECDSA},
		{"ed25519", KeyTypeEd25519},
		{"", KeyTypeEd25519},
		{"dsa", KeyTypeEd25519},
	}
	for _, c := range cases {
		if got := ParseKeyType(c.in); got != c.want {
			t.Errorf("ParseKeyType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"sovereign", RoleSovereign},
		{"owner", RoleOwner},
		{"", RoleNone},
		{"admin", RoleNone},
		{"Sovereign", RoleNone},
	}
	for _, c := range cases {
		if got := ParseRole(c.in); got != c.want {
			t.Errorf("ParseRole(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRoleCanUseVault(t *testing.T) {
	if !RoleSovereign.CanUseVault() {
		t.Error("sovereign should be allowed to use the vault")
	}
	if !RoleOwner.CanUseVault() {
		t.Error("owner should be allowed to use the vault")
	}
	if RoleNone.CanUseVault() {
		t.Error("the zero role should never use the vault")
	}
	if Role("viewer").CanUseVault() {
		t.Error("roles outside the enum should never use the vault")
	}
}

func TestEnvelopeIsZero(t *testing.T) {
	var empty Envelope
	if !empty.IsZero() {
		t.Error("zero envelope should report IsZero")
	}
	filled := Envelope{Ciphertext: "Y3Q=", Salt: "aa", IV: "bb"}
	if filled.IsZero() {
		t.Error("envelope with ciphertext should not report IsZero")
	}
}

func TestSecretSummaryExcludesCiphertext(t *testing.T) {
	now := time.Now().UTC()
	sec := Secret{
		ID:             "k1",
		OwnerID:        "alice",
		Name:           "prod deploy",
		Tags:           []string{"prod", "deploy"},
		ServerHost:     "deploy.example.com",
		ServerPort:     22,
		ServerUsername: "deploy",
		KeyType:        KeyTypeEd25519,
		KeyFingerprint: "SHA256:abc",
		PrivateKey:     Envelope{Ciphertext: "c2VjcmV0", Salt: "0a", IV: "0b"},
		PublicKey:      Envelope{Ciphertext: "cHVi", Salt: "0c", IV: "0d"},
		Passphrase:     Envelope{Ciphertext: "cGFzcw==", Salt: "0e", IV: "0f"},
		IsActive:       true,
		UsageCount:     3,
		CreatedAt:      now,
	}

	sum := sec.Summary()
	if sum.ID != sec.ID || sum.Name != sec.Name || sum.KeyFingerprint != sec.KeyFingerprint {
		t.Fatalf("summary lost metadata: %+v", sum)
	}
	if sum.UsageCount != 3 || !sum.IsActive {
		t.Fatalf("summary lost state: %+v", sum)
	}

	raw, err := json.Marshal(sum)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	for _, leak := range []string{"c2VjcmV0", "cHVi", "cGFzcw==", "Salt", "Ciphertext"} {
		if strings.Contains(string(raw), leak) {
			t.Errorf("summary JSON leaks %q: %s", leak, raw)
		}
	}
}

func TestAuthSessionExpired(t *testing.T) {
	now := time.Now().UTC()
	sess := AuthSession{ExpiresAt: now.Add(time.Minute)}
	if sess.Expired(now) {
		t.Error("session with future expiry should not be expired")
	}
	if !sess.Expired(now.Add(time.Minute)) {
		t.Error("session should be expired exactly at its expiry time")
	}
	if !sess.Expired(now.Add(2 * time.Minute)) {
		t.Error("session should be expired after its expiry time")
	}
}

func TestVaultUserFactorFlags(t *testing.T) {
	u := VaultUser{}
	if u.HasEmail() || u.HasTotp() {
		t.Error("bare user should have no factors")
	}
	u.Email = "a@example.com"
	if u.HasEmail() {
		t.Error("unverified email should not count as a factor")
	}
	u.EmailVerified = true
	if !u.HasEmail() {
		t.Error("verified email should count as a factor")
	}
	u.TotpSecret = "JBSWY3DPEHPK3PXP"
	if u.HasTotp() {
		t.Error("disabled TOTP should not count as a factor")
	}
	u.TotpEnabled = true
	if !u.HasTotp() {
		t.Error("enrolled TOTP should count as a factor")
	}
}
