// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package auth drives the vault's multi-factor session state machine.
// A session starts with a password check, then walks the remaining factors
// in a fixed order: email code, then authenticator code. Vault access is
// granted only once every factor the user has enrolled is verified.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/notify"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/security"

	"github.com/google/uuid"
)

var (
	// ErrAuthentication covers every credential failure: unknown user, wrong
	// password, wrong code. Callers get no finer detail.
	ErrAuthentication = errors.New("authentication failed")
	// ErrProtocolViolation is returned when a factor is attempted out of
	// order or repeated after completion.
	ErrProtocolViolation = errors.New("authentication step not allowed in current state")
	// ErrSessionExpired is returned for sessions past their hard expiry or
	// already logged out.
	ErrSessionExpired = errors.New("session expired")
	// ErrNotAuthenticated is returned by Authorize before all factors pass.
	ErrNotAuthenticated = errors.New("session not fully authenticated")
)

const (
	// SessionTTL is the hard lifetime granted at each completed factor.
	// Authorize never extends it.
	SessionTTL = 15 * time.Minute
	// EmailCodeTTL bounds how long an issued email code stays valid.
	EmailCodeTTL = 10 * time.Minute
	// emailCodeDigits is the length of the one-time email code.
	emailCodeDigits = 6
)

// Requirements reports which factors a session still has to clear.
type Requirements struct {
	EmailRequired bool `json:"emailRequired"`
	TotpRequired  bool `json:"totpRequired"`
	Complete      bool `json:"complete"`
}

// StartResult is handed back after a successful password check. Token is the
// raw session token; it exists only here and in the caller's hands.
type StartResult struct {
	Token        string
	SessionID    string
	ExpiresAt    time.Time
	Requirements Requirements
}

// Manager owns session creation and factor verification.
type Manager struct {
	store  db.Store
	audit  audit.Writer
	sender notify.Sender
	now    func() time.Time
}

// NewManager wires a Manager. A nil sender falls back to the logging sender.
func NewManager(store db.Store, auditWriter audit.Writer, sender notify.Sender) *Manager {
	if sender == nil {
		sender = notify.LogSender{}
	}
	if auditWriter == nil {
		auditWriter = audit.Nop{}
	}
	return &Manager{store: store, audit: auditWriter, sender: sender, now: time.Now}
}

// RequestMeta carries the client context recorded with every audit entry.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Start verifies the password factor and opens a new session. On success an
// email verification code is issued when the user has an email enrolled.
func (m *Manager) Start(ctx context.Context, userID, password string, meta RequestMeta) (*StartResult, error) {
	user, err := m.store.GetVaultUser(ctx, userID)
	if err != nil {
		// Burn a bcrypt comparison anyway so unknown users cost the same
		// as wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$0000000000000000000000uGZwKK0Yt1t2mToTonEXv.f9mzWpW36"), []byte(password))
		m.audit.Record(ctx, audit.Event{
			UserID: userID, Action: audit.ActionAuthPasswordFailed,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			Success: false, Error: ErrAuthentication,
		})
		return nil, ErrAuthentication
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		m.audit.Record(ctx, audit.Event{
			UserID: userID, Action: audit.ActionAuthPasswordFailed,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			Success: false, Error: ErrAuthentication,
		})
		return nil, ErrAuthentication
	}

	now := m.now().UTC()
	verifiedAt := now
	token, err := security.NewToken()
	if err != nil {
		return nil, err
	}
	sess := &model.AuthSession{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		TokenHash:          security.HashToken(token),
		PasswordVerified:   true,
		PasswordVerifiedAt: &verifiedAt,
		IsActive:           true,
		ExpiresAt:          now.Add(SessionTTL),
		LastActivityAt:     now,
		IPAddress:          meta.IPAddress,
		UserAgent:          meta.UserAgent,
		CreatedAt:          now,
	}

	if user.HasEmail() {
		code, err := security.NumericCode(emailCodeDigits)
		if err != nil {
			return nil, err
		}
		codeExpiry := now.Add(EmailCodeTTL)
		sess.EmailCodeHash = security.HashToken(code)
		sess.EmailCodeExpiresAt = &codeExpiry
		if err := m.sender.SendVerificationCode(ctx, user.Email, code, codeExpiry); err != nil {
			return nil, err
		}
	}

	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	req := m.requirements(user, sess)
	if req.Complete {
		// Password-only users unlock immediately.
		sess.FullyAuthenticated = true
		if err := m.store.UpdateSession(ctx, sess); err != nil {
			return nil, err
		}
	}

	m.audit.Record(ctx, audit.Event{
		UserID: user.ID, SessionID: sess.ID, Action: audit.ActionAuthPassword,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
	})
	if req.Complete {
		m.audit.Record(ctx, audit.Event{
			UserID: user.ID, SessionID: sess.ID, Action: audit.ActionVaultUnlocked,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
		})
	}

	return &StartResult{
		Token:        token,
		SessionID:    sess.ID,
		ExpiresAt:    sess.ExpiresAt,
		Requirements: req,
	}, nil
}

// VerifyEmail checks the emailed one-time code. It is only legal after the
// password factor and before any later factor.
func (m *Manager) VerifyEmail(ctx context.Context, token, code string, meta RequestMeta) (*Requirements, error) {
	sess, user, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	if !sess.PasswordVerified || sess.EmailVerified || sess.TotpVerified || sess.EmailCodeHash == "" {
		m.recordViolation(ctx, sess, "email verification attempted out of order", meta)
		return nil, ErrProtocolViolation
	}

	now := m.now().UTC()
	if sess.EmailCodeExpiresAt == nil || now.After(*sess.EmailCodeExpiresAt) {
		m.audit.Record(ctx, audit.Event{
			UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthEmailFailed,
			Detail: "code expired", IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			Success: false, Error: ErrAuthentication,
		})
		return nil, ErrAuthentication
	}
	if !security.DigestEqual(security.HashToken(code), sess.EmailCodeHash) {
		m.audit.Record(ctx, audit.Event{
			UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthEmailFailed,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			Success: false, Error: ErrAuthentication,
		})
		return nil, ErrAuthentication
	}

	verifiedAt := now
	sess.EmailVerified = true
	sess.EmailVerifiedAt = &verifiedAt
	sess.EmailCodeHash = ""
	sess.EmailCodeExpiresAt = nil
	sess.ExpiresAt = now.Add(SessionTTL)
	sess.LastActivityAt = now

	req := m.requirements(user, sess)
	if req.Complete {
		sess.FullyAuthenticated = true
	}
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	m.audit.Record(ctx, audit.Event{
		UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthEmail,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
	})
	if req.Complete {
		m.audit.Record(ctx, audit.Event{
			UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionVaultUnlocked,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
		})
	}
	return &req, nil
}

// VerifyTOTP checks the authenticator code. It is only legal once every
// earlier factor has passed.
func (m *Manager) VerifyTOTP(ctx context.Context, token, code string, meta RequestMeta) (*Requirements, error) {
	sess, user, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	emailPending := user.HasEmail() && !sess.EmailVerified
	if !sess.PasswordVerified || emailPending || sess.TotpVerified || !user.HasTotp() {
		m.recordViolation(ctx, sess, "totp verification attempted out of order", meta)
		return nil, ErrProtocolViolation
	}

	if !totp.Validate(code, user.TotpSecret) {
		m.audit.Record(ctx, audit.Event{
			UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthTotpFailed,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
			Success: false, Error: ErrAuthentication,
		})
		return nil, ErrAuthentication
	}

	now := m.now().UTC()
	verifiedAt := now
	sess.TotpVerified = true
	sess.TotpVerifiedAt = &verifiedAt
	sess.ExpiresAt = now.Add(SessionTTL)
	sess.LastActivityAt = now

	req := m.requirements(user, sess)
	if req.Complete {
		sess.FullyAuthenticated = true
	}
	if err := m.store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	m.audit.Record(ctx, audit.Event{
		UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthTotp,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
	})
	if req.Complete {
		m.audit.Record(ctx, audit.Event{
			UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionVaultUnlocked,
			IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
		})
	}
	return &req, nil
}

// Authorize validates a token for vault access. It records activity but does
// not extend the session: the expiry set at the last factor stands.
func (m *Manager) Authorize(ctx context.Context, token string) (*model.AuthSession, error) {
	sess, _, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	if !sess.FullyAuthenticated {
		return nil, ErrNotAuthenticated
	}
	if err := m.store.TouchSessionActivity(ctx, sess.ID, m.now().UTC()); err != nil {
		return nil, err
	}
	return sess, nil
}

// Logout deactivates the session. Unknown or expired tokens are not an
// error; logout is idempotent from the client's point of view.
func (m *Manager) Logout(ctx context.Context, token string, meta RequestMeta) error {
	sess, _, err := m.lookup(ctx, token)
	if err != nil {
		return nil
	}
	if err := m.store.DeactivateSession(ctx, sess.ID); err != nil {
		return err
	}
	m.audit.Record(ctx, audit.Event{
		UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthLogout,
		IPAddress: meta.IPAddress, UserAgent: meta.UserAgent, Success: true,
	})
	return nil
}

// Status reports the remaining factors for a pending session token.
func (m *Manager) Status(ctx context.Context, token string) (*Requirements, error) {
	sess, user, err := m.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	req := m.requirements(user, sess)
	return &req, nil
}

// lookup resolves a raw token to its active, unexpired session and user.
func (m *Manager) lookup(ctx context.Context, token string) (*model.AuthSession, *model.VaultUser, error) {
	if token == "" {
		return nil, nil, ErrSessionExpired
	}
	sess, err := m.store.GetSessionByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil, ErrSessionExpired
		}
		return nil, nil, err
	}
	if !sess.IsActive || sess.Expired(m.now().UTC()) {
		return nil, nil, ErrSessionExpired
	}
	user, err := m.store.GetVaultUser(ctx, sess.UserID)
	if err != nil {
		return nil, nil, err
	}
	return sess, user, nil
}

func (m *Manager) requirements(user *model.VaultUser, sess *model.AuthSession) Requirements {
	req := Requirements{
		EmailRequired: user.HasEmail() && !sess.EmailVerified,
		TotpRequired:  user.HasTotp() && !sess.TotpVerified,
	}
	req.Complete = sess.PasswordVerified && !req.EmailRequired && !req.TotpRequired
	return req
}

func (m *Manager) recordViolation(ctx context.Context, sess *model.AuthSession, detail string, meta RequestMeta) {
	m.audit.Record(ctx, audit.Event{
		UserID: sess.UserID, SessionID: sess.ID, Action: audit.ActionAuthProtocolViolation,
		Detail: detail, IPAddress: meta.IPAddress, UserAgent: meta.UserAgent,
		Success: false, Error: ErrProtocolViolation,
	})
}
