// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package audit records every vault operation in an append-only trail.
// Entries are written for successes and failures alike and are never
// updated or removed afterwards.
package audit

import (
	"context"
	"time"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/logging"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// Event carries the context of a single auditable operation.
type Event struct {
	UserID    string
	KeyID     string
	SessionID string
	Action    string
	Detail    string
	IPAddress string
	UserAgent string
	Success   bool
	Error     error
}

// Writer appends audit events. Tests inject recording fakes through this.
type Writer interface {
	Record(ctx context.Context, ev Event)
}

// Recorder is the store-backed Writer used in production.
type Recorder struct {
	store db.Store
	now   func() time.Time
}

// NewRecorder returns a Recorder writing to the given store.
func NewRecorder(store db.Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record appends one audit entry. A write failure is logged but never
// propagated: the operation being audited has already happened, and its
// outcome must not depend on the trail.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	entry := &model.AuditLogEntry{
		UserID:       ev.UserID,
		KeyID:        ev.KeyID,
		SessionID:    ev.SessionID,
		Action:       ev.Action,
		ActionDetail: ev.Detail,
		IPAddress:    ev.IPAddress,
		UserAgent:    ev.UserAgent,
		Success:      ev.Success,
		CreatedAt:    r.now().UTC(),
	}
	if ev.Error != nil {
		entry.ErrorMessage = ev.Error.Error()
	}
	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		logging.Errorf("audit: failed to append %s entry for user %s: %v", ev.Action, ev.UserID, err)
	}
}

// Nop is a Writer that discards events. Useful for tools that operate on a
// store directly without an authenticated actor.
type Nop struct{}

// Record implements Writer.
func (Nop) Record(context.Context, Event) {}
