// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/security"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/sshkey"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/vault"
)

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	keys, err := s.creds.List(r.Context(), actor)
	if err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"keys": keys, "count": len(keys)})
}

type createKeyRequest struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Tags           []string `json:"tags"`
	ServerHost     string   `json:"serverHost"`
	ServerPort     int      `json:"serverPort"`
	ServerUsername string   `json:"serverUsername"`
	KeyType        string   `json:"keyType"`
	PrivateKey     string   `json:"privateKey"`
	PublicKey      string   `json:"publicKey"`
	Passphrase     string   `json:"passphrase"`
	AccessLevel    string   `json:"accessLevel"`
	ExpiresAt      string   `json:"expiresAt"`
	MasterPassword string   `json:"masterPassword"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	var body createKeyRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.MasterPassword == "" {
		writeError(w, http.StatusBadRequest, "master password is required", false, 0)
		return
	}

	var expiresAt *time.Time
	if body.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, body.ExpiresAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expiresAt must be RFC 3339", false, 0)
			return
		}
		expiresAt = &t
	}

	summary, err := s.creds.Create(r.Context(), actor, vault.CreateParams{
		Name:           body.Name,
		Description:    body.Description,
		Tags:           body.Tags,
		ServerHost:     body.ServerHost,
		ServerPort:     body.ServerPort,
		ServerUsername: body.ServerUsername,
		KeyType:        model.ParseKeyType(body.KeyType),
		PrivateKey:     body.PrivateKey,
		PublicKey:      body.PublicKey,
		Passphrase:     body.Passphrase,
		AccessLevel:    body.AccessLevel,
		ExpiresAt:      expiresAt,
	}, security.FromString(body.MasterPassword))
	if err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	id := r.PathValue("id")

	if r.URL.Query().Get("includePrivate") != "true" {
		summary, err := s.creds.Get(r.Context(), actor, id)
		if err != nil {
			s.writeVaultError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
		return
	}

	masterPW := r.Header.Get(headerMasterPW)
	if masterPW == "" {
		masterPW = r.URL.Query().Get("masterPassword")
	}
	if masterPW == "" {
		writeError(w, http.StatusBadRequest, "master password is required", false, 0)
		return
	}

	detail, err := s.creds.Reveal(r.Context(), actor, id, security.FromString(masterPW))
	if err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	if err := s.creds.Delete(r.Context(), actor, r.PathValue("id")); err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRevokeKey(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSONLenient(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", false, 0)
		return
	}
	if err := s.creds.Revoke(r.Context(), actor, r.PathValue("id"), body.Reason); err != nil {
		s.writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", false, 0)
			return
		}
		limit = n
	}

	// Sovereigns may inspect the whole trail; owners see their own.
	userID := actor.UserID
	if actor.Role == model.RoleSovereign && r.URL.Query().Get("all") == "true" {
		userID = ""
	}

	entries, err := s.store.QueryAuditEntries(r.Context(), userID, limit)
	if err != nil {
		s.writeVaultError(w, err)
		return
	}

	type auditView struct {
		model.AuditLogEntry
		Risk string `json:"risk"`
	}
	views := make([]auditView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditView{AuditLogEntry: e, Risk: audit.ActionRisk(e.Action)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": views, "count": len(views)})
}

// handleGenerate mints a key pair and returns it without persisting. Storing
// a generated key is a separate, explicit create call.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, actor vault.Actor) {
	var body struct {
		KeyName  string `json:"keyName"`
		KeyType  string `json:"keyType"`
		Category string `json:"category"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	comment := body.KeyName
	if comment == "" {
		comment = actor.UserID + "@webnova-vault"
	}
	material, err := sshkey.Generate(model.ParseKeyType(body.KeyType), comment)
	s.audit.Record(r.Context(), audit.Event{
		UserID:    actor.UserID,
		SessionID: actor.SessionID,
		Action:    audit.ActionGenerateKey,
		Detail:    body.KeyName,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		Success:   err == nil,
		Error:     err,
	})
	if err != nil {
		s.writeVaultError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"keyName":     body.KeyName,
		"category":    body.Category,
		"keyType":     material.KeyType,
		"privateKey":  material.PrivateKeyPEM,
		"publicKey":   material.PublicKey,
		"fingerprint": material.Fingerprint,
		"generatedAt": time.Now().UTC().Format(time.RFC3339),
	})
}
