// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package auth

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

const testPassword = "correct horse battery staple"

// captureSender records the last code handed to it.
type captureSender struct {
	to   string
	code string
}

func (c *captureSender) SendVerificationCode(_ context.Context, to, code string, _ time.Time) error {
	c.to = to
	c.code = code
	return nil
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T, name string) (*Manager, db.Store, *captureSender, *testClock) {
	t.Helper()
	store, err := db.NewStoreFromDSN("sqlite", fmt.Sprintf("file:test_auth_%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	sender := &captureSender{}
	clock := &testClock{now: time.Now().UTC().Truncate(time.Second)}
	m := NewManager(store, audit.NewRecorder(store), sender)
	m.now = clock.Now
	return m, store, sender, clock
}

func seedUser(t *testing.T, store db.Store, id string, email string, withTotp bool) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &model.VaultUser{
		ID:            id,
		Role:          model.RoleOwner,
		PasswordHash:  string(hash),
		Email:         email,
		EmailVerified: email != "",
	}
	var secret string
	if withTotp {
		key, err := totp.Generate(totp.GenerateOpts{Issuer: "test", AccountName: id})
		if err != nil {
			t.Fatalf("totp.Generate: %v", err)
		}
		secret = key.Secret()
		user.TotpSecret = secret
		user.TotpEnabled = true
	}
	if err := store.UpsertVaultUser(context.Background(), user); err != nil {
		t.Fatalf("UpsertVaultUser: %v", err)
	}
	return secret
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	return code
}

func TestFullThreeFactorFlow(t *testing.T) {
	m, store, sender, clock := newTestManager(t, "full")
	ctx := context.Background()
	secret := seedUser(t, store, "alice", "alice@example.com", true)
	meta := RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"}

	res, err := m.Start(ctx, "alice", testPassword, meta)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Token == "" {
		t.Fatalf("no session token returned")
	}
	if !res.Requirements.EmailRequired || !res.Requirements.TotpRequired || res.Requirements.Complete {
		t.Fatalf("unexpected requirements after password: %+v", res.Requirements)
	}
	if sender.to != "alice@example.com" || len(sender.code) != 6 {
		t.Fatalf("email code not delivered: to=%q code=%q", sender.to, sender.code)
	}

	if _, err := m.Authorize(ctx, res.Token); err != ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated before factors complete, got %v", err)
	}

	req, err := m.VerifyEmail(ctx, res.Token, sender.code, meta)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if req.EmailRequired || !req.TotpRequired || req.Complete {
		t.Fatalf("unexpected requirements after email: %+v", req)
	}

	req, err = m.VerifyTOTP(ctx, res.Token, totpCode(t, secret, clock.Now()), meta)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if !req.Complete {
		t.Fatalf("expected complete after totp: %+v", req)
	}

	sess, err := m.Authorize(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if sess.UserID != "alice" || !sess.FullyAuthenticated {
		t.Fatalf("unexpected session: %+v", sess)
	}

	entries, err := store.QueryAuditEntries(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("QueryAuditEntries: %v", err)
	}
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	joined := strings.Join(actions, ",")
	for _, want := range []string{audit.ActionAuthPassword, audit.ActionAuthEmail, audit.ActionAuthTotp, audit.ActionVaultUnlocked} {
		if !strings.Contains(joined, want) {
			t.Fatalf("audit trail missing %s: %v", want, actions)
		}
	}
}

func TestWrongPassword(t *testing.T) {
	m, store, _, _ := newTestManager(t, "wrongpw")
	ctx := context.Background()
	seedUser(t, store, "alice", "", false)

	if _, err := m.Start(ctx, "alice", "not the password", RequestMeta{}); err != ErrAuthentication {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
	if _, err := m.Start(ctx, "ghost", testPassword, RequestMeta{}); err != ErrAuthentication {
		t.Fatalf("expected ErrAuthentication for unknown user, got %v", err)
	}

	entries, _ := store.QueryAuditEntries(ctx, "alice", 0)
	if len(entries) != 1 || entries[0].Action != audit.ActionAuthPasswordFailed || entries[0].Success {
		t.Fatalf("failed attempt not audited: %+v", entries)
	}
}

func TestFactorOrderEnforced(t *testing.T) {
	m, store, sender, clock := newTestManager(t, "order")
	ctx := context.Background()
	secret := seedUser(t, store, "alice", "alice@example.com", true)
	meta := RequestMeta{}

	res, err := m.Start(ctx, "alice", testPassword, meta)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// TOTP before email is a protocol violation, even with a valid code.
	if _, err := m.VerifyTOTP(ctx, res.Token, totpCode(t, secret, clock.Now()), meta); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation, got %v", err)
	}

	if _, err := m.VerifyEmail(ctx, res.Token, sender.code, meta); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	// Repeating a completed factor is a violation too.
	if _, err := m.VerifyEmail(ctx, res.Token, sender.code, meta); err != ErrProtocolViolation {
		t.Fatalf("expected ErrProtocolViolation on repeat, got %v", err)
	}

	entries, _ := store.QueryAuditEntries(ctx, "alice", 0)
	var violations int
	for _, e := range entries {
		if e.Action == audit.ActionAuthProtocolViolation {
			violations++
		}
	}
	if violations != 2 {
		t.Fatalf("expected 2 protocol violation entries, got %d", violations)
	}
}

func TestWrongAndExpiredEmailCode(t *testing.T) {
	m, store, sender, clock := newTestManager(t, "emailcode")
	ctx := context.Background()
	seedUser(t, store, "alice", "alice@example.com", false)
	meta := RequestMeta{}

	res, err := m.Start(ctx, "alice", testPassword, meta)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := m.VerifyEmail(ctx, res.Token, "000000", meta); err != ErrAuthentication {
		t.Fatalf("expected ErrAuthentication for wrong code, got %v", err)
	}

	// The session survives a wrong code; only the code comparison failed.
	clock.Advance(EmailCodeTTL + time.Minute)
	if _, err := m.VerifyEmail(ctx, res.Token, sender.code, meta); err != ErrAuthentication {
		t.Fatalf("expected ErrAuthentication for expired code, got %v", err)
	}
}

func TestSessionExpiry(t *testing.T) {
	m, store, sender, clock := newTestManager(t, "expiry")
	ctx := context.Background()
	seedUser(t, store, "alice", "alice@example.com", false)
	meta := RequestMeta{}

	res, err := m.Start(ctx, "alice", testPassword, meta)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.VerifyEmail(ctx, res.Token, sender.code, meta); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	// Activity does not move the expiry set at the last factor.
	sessBefore, err := m.Authorize(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	clock.Advance(5 * time.Minute)
	sessAfter, err := m.Authorize(ctx, res.Token)
	if err != nil {
		t.Fatalf("Authorize after activity: %v", err)
	}
	if !sessAfter.ExpiresAt.Equal(sessBefore.ExpiresAt) {
		t.Fatalf("authorize extended session: %v != %v", sessAfter.ExpiresAt, sessBefore.ExpiresAt)
	}

	clock.Advance(SessionTTL)
	if _, err := m.Authorize(ctx, res.Token); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	m, store, sender, _ := newTestManager(t, "logout")
	ctx := context.Background()
	seedUser(t, store, "alice", "alice@example.com", false)
	meta := RequestMeta{}

	res, err := m.Start(ctx, "alice", testPassword, meta)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := m.VerifyEmail(ctx, res.Token, sender.code, meta); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	if err := m.Logout(ctx, res.Token, meta); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := m.Authorize(ctx, res.Token); err != ErrSessionExpired {
		t.Fatalf("expected ErrSessionExpired after logout, got %v", err)
	}
	// Logging out again is not an error.
	if err := m.Logout(ctx, res.Token, meta); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
}

func TestPasswordOnlyUserUnlocksImmediately(t *testing.T) {
	m, store, _, _ := newTestManager(t, "pwonly")
	ctx := context.Background()
	seedUser(t, store, "bob", "", false)

	res, err := m.Start(ctx, "bob", testPassword, RequestMeta{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !res.Requirements.Complete {
		t.Fatalf("expected complete requirements: %+v", res.Requirements)
	}
	if _, err := m.Authorize(ctx, res.Token); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
}

func TestEnrollment(t *testing.T) {
	store, err := db.NewStoreFromDSN("sqlite", "file:test_auth_enroll?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("NewStoreFromDSN: %v", err)
	}
	ctx := context.Background()

	if err := SetPassword(ctx, store, "alice", "short"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if err := SetPassword(ctx, store, "alice", testPassword); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	user, err := store.GetVaultUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetVaultUser: %v", err)
	}
	if user.PasswordHash == "" || user.PasswordHash == testPassword {
		t.Fatalf("password not hashed: %q", user.PasswordHash)
	}
	if user.Role != model.RoleOwner {
		t.Fatalf("new user role = %q, want owner", user.Role)
	}

	url, err := EnrollTotp(ctx, store, "alice")
	if err != nil {
		t.Fatalf("EnrollTotp: %v", err)
	}
	if !strings.HasPrefix(url, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning url: %q", url)
	}
	user, _ = store.GetVaultUser(ctx, "alice")
	if !user.TotpEnabled || user.TotpSecret == "" {
		t.Fatalf("totp not enrolled: %+v", user)
	}
}
