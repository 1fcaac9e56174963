// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package server exposes the vault over HTTP. Identity arrives from the
// surrounding platform through trusted proxy headers; this service decides
// vault access only, through its own session tokens.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/rs/cors"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/auth"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/logging"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/ratelimit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vault"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vaultcrypt"
)

// Proxy identity and session header names.
const (
	headerUser     = "X-WebNova-User"
	headerRole     = "X-WebNova-Role"
	headerSession  = "X-Vault-Session"
	headerMasterPW = "X-Master-Password"
)

// Config tunes the HTTP layer.
type Config struct {
	// AllowedOrigins feeds the CORS policy. Empty allows any origin, which
	// is acceptable only behind the platform proxy.
	AllowedOrigins []string
	// AuthAttemptsPerMinute throttles factor verification per user.
	AuthAttemptsPerMinute int
	// AuthBurst is the burst size of the auth limiter.
	AuthBurst int
}

// Server routes vault requests to the auth manager and credential store.
type Server struct {
	auth    *auth.Manager
	creds   *vault.CredentialStore
	store   db.Store
	audit   audit.Writer
	limiter *ratelimit.Limiter
	handler http.Handler
}

// New wires the routes and middleware.
func New(authMgr *auth.Manager, creds *vault.CredentialStore, store db.Store, auditWriter audit.Writer, cfg Config) *Server {
	if cfg.AuthAttemptsPerMinute == 0 {
		cfg.AuthAttemptsPerMinute = 10
	}
	if cfg.AuthBurst == 0 {
		cfg.AuthBurst = 5
	}
	if auditWriter == nil {
		auditWriter = audit.Nop{}
	}
	s := &Server{
		auth:    authMgr,
		creds:   creds,
		store:   store,
		audit:   auditWriter,
		limiter: ratelimit.New(cfg.AuthAttemptsPerMinute, cfg.AuthBurst),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/vault/auth/requirements", s.withIdentity(s.handleRequirements))
	mux.HandleFunc("POST /api/vault/auth/start", s.withIdentity(s.throttled(s.handleAuthStart)))
	mux.HandleFunc("POST /api/vault/auth/verify-email", s.withIdentity(s.throttled(s.handleVerifyEmail)))
	mux.HandleFunc("POST /api/vault/auth/verify-totp", s.withIdentity(s.throttled(s.handleVerifyTotp)))
	mux.HandleFunc("POST /api/vault/auth/logout", s.withIdentity(s.handleLogout))

	mux.HandleFunc("GET /api/vault/keys", s.withSession(s.handleListKeys))
	mux.HandleFunc("POST /api/vault/keys", s.withSession(s.handleCreateKey))
	mux.HandleFunc("GET /api/vault/keys/{id}", s.withSession(s.handleGetKey))
	mux.HandleFunc("DELETE /api/vault/keys/{id}", s.withSession(s.handleDeleteKey))
	mux.HandleFunc("POST /api/vault/keys/{id}/revoke", s.withSession(s.handleRevokeKey))
	mux.HandleFunc("GET /api/vault/audit", s.withSession(s.handleAudit))
	mux.HandleFunc("POST /api/vault/generate", s.withSession(s.handleGenerate))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", headerUser, headerRole, headerSession, headerMasterPW},
	})
	s.handler = c.Handler(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// identity is the proxy-asserted caller of a request.
type identity struct {
	UserID string
	Role   model.Role
}

// withIdentity validates the proxy identity headers. The platform in front
// of the vault owns authentication of the surrounding application; the role
// enum is still re-validated here.
func (s *Server) withIdentity(next func(http.ResponseWriter, *http.Request, identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerUser)
		role := model.ParseRole(r.Header.Get(headerRole))
		if userID == "" || !role.CanUseVault() {
			writeError(w, http.StatusForbidden, "vault access requires an owner identity", false, 0)
			return
		}
		next(w, r, identity{UserID: userID, Role: role})
	}
}

// withSession resolves the vault session token into an authenticated actor.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, vault.Actor)) http.HandlerFunc {
	return s.withIdentity(func(w http.ResponseWriter, r *http.Request, id identity) {
		token := r.Header.Get(headerSession)
		sess, err := s.auth.Authorize(r.Context(), token)
		if err != nil {
			s.writeAuthError(w, err)
			return
		}
		if sess.UserID != id.UserID {
			// A session token minted for one user is worthless for another.
			writeError(w, http.StatusUnauthorized, "authentication required", true, 0)
			return
		}
		next(w, r, vault.Actor{
			UserID:    sess.UserID,
			SessionID: sess.ID,
			Role:      id.Role,
			IPAddress: remoteIP(r),
			UserAgent: r.UserAgent(),
		})
	})
}

// throttled rate-limits by user id, falling back to the remote address.
func (s *Server) throttled(next func(http.ResponseWriter, *http.Request, identity)) func(http.ResponseWriter, *http.Request, identity) {
	return func(w http.ResponseWriter, r *http.Request, id identity) {
		key := id.UserID
		if key == "" {
			key = remoteIP(r)
		}
		if ok, retryAfter := s.limiter.Allow(key); !ok {
			secs := int(math.Ceil(retryAfter.Seconds()))
			writeError(w, http.StatusTooManyRequests, "too many attempts", false, secs)
			return
		}
		next(w, r, id)
	}
}

func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrAuthentication):
		writeError(w, http.StatusUnauthorized, "authentication failed", true, 0)
	case errors.Is(err, auth.ErrSessionExpired), errors.Is(err, auth.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required", true, 0)
	case errors.Is(err, auth.ErrProtocolViolation):
		writeError(w, http.StatusBadRequest, "authentication step not allowed in current state", false, 0)
	default:
		logging.Errorf("server: auth error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", false, 0)
	}
}

// writeVaultError maps credential-store failures onto the error envelope.
// Decrypt failures stay undifferentiated on purpose.
func (s *Server) writeVaultError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, "key not found", false, 0)
	case errors.Is(err, vault.ErrForbidden):
		writeError(w, http.StatusForbidden, "access to this key is not permitted", false, 0)
	case errors.Is(err, vault.ErrRevoked):
		writeError(w, http.StatusForbidden, "key has been revoked", false, 0)
	case errors.Is(err, vaultcrypt.ErrDecryptFailed):
		writeError(w, http.StatusUnauthorized, "decryption failed", false, 0)
	default:
		logging.Errorf("server: vault error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error", false, 0)
	}
}

type errorEnvelope struct {
	Error       string `json:"error"`
	RequireAuth bool   `json:"requireAuth,omitempty"`
	RetryAfter  int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf("server: encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, requireAuth bool, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	writeJSON(w, status, errorEnvelope{Error: msg, RequireAuth: requireAuth, RetryAfter: retryAfter})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer func() { _ = r.Body.Close() }()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", false, 0)
		return false
	}
	return true
}

// decodeJSONLenient decodes a body when one is present; an empty body is
// not an error.
func decodeJSONLenient(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == io.EOF {
		return nil
	}
	return err
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
