// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/auth"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
)

func nextStep(req auth.Requirements) string {
	switch {
	case req.Complete:
		return "complete"
	case req.EmailRequired:
		return "email_code"
	case req.TotpRequired:
		return "totp"
	default:
		return "complete"
	}
}

// maskEmail keeps the first character and the domain: a•••@example.com.
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 1 {
		return ""
	}
	return email[:1] + "•••" + email[at:]
}

func (s *Server) handleRequirements(w http.ResponseWriter, r *http.Request, id identity) {
	user, err := s.store.GetVaultUser(r.Context(), id.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vault profile not found", false, 0)
			return
		}
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasEmail":  user.HasEmail(),
		"hasTOTP":   user.HasTotp(),
		"emailHint": maskEmail(user.Email),
	})
}

func (s *Server) handleAuthStart(w http.ResponseWriter, r *http.Request, id identity) {
	var body struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.auth.Start(r.Context(), id.UserID, body.Password, s.meta(r))
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	user, err := s.store.GetVaultUser(r.Context(), id.UserID)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionToken":  res.Token,
		"expiresAt":     res.ExpiresAt.Format(time.RFC3339),
		"nextStep":      nextStep(res.Requirements),
		"accessGranted": res.Requirements.Complete,
		"hasEmail":      user.HasEmail(),
		"hasTOTP":       user.HasTotp(),
		"emailHint":     maskEmail(user.Email),
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request, _ identity) {
	var body struct {
		SessionToken string `json:"sessionToken"`
		EmailCode    string `json:"emailCode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := s.auth.VerifyEmail(r.Context(), s.sessionToken(r, body.SessionToken), body.EmailCode, s.meta(r))
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nextStep":      nextStep(*req),
		"accessGranted": req.Complete,
	})
}

func (s *Server) handleVerifyTotp(w http.ResponseWriter, r *http.Request, _ identity) {
	var body struct {
		SessionToken string `json:"sessionToken"`
		TotpCode     string `json:"totpCode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	req, err := s.auth.VerifyTOTP(r.Context(), s.sessionToken(r, body.SessionToken), body.TotpCode, s.meta(r))
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nextStep":      nextStep(*req),
		"accessGranted": req.Complete,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ identity) {
	var body struct {
		SessionToken string `json:"sessionToken"`
	}
	// Logout also works with just the session header and an empty body.
	_ = decodeJSONLenient(r, &body)

	if err := s.auth.Logout(r.Context(), s.sessionToken(r, body.SessionToken), s.meta(r)); err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// sessionToken prefers the body token and falls back to the header.
func (s *Server) sessionToken(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get(headerSession)
}

func (s *Server) meta(r *http.Request) auth.RequestMeta {
	return auth.RequestMeta{IPAddress: remoteIP(r), UserAgent: r.UserAgent()}
}
