// Copyright (c) 2026 WebNova Team
// WebNova Vault - sovereign credential vault
// This source code is licensed under the MIT license found in the LICENSE file.

// Package backup reads and writes zstd-compressed JSON vault snapshots.
// Snapshots carry ciphertext and envelope parameters exactly as stored;
// nothing in a backup file can be read without the master passphrase.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/mohamedalib2001/infera-webnova-sub007/internal/audit"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/db"
	"github.com/mohamedalib2001/infera-webnova-sub007/internal/model"
)

// Write encodes a snapshot as zstd-compressed JSON onto w.
func Write(w io.Writer, data *model.BackupData) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(data); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode backup json: %w", err)
	}
	return zw.Close()
}

// Read decodes a zstd-compressed JSON snapshot from r.
func Read(r io.Reader) (*model.BackupData, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("could not create zstd reader: %w", err)
	}
	defer zr.Close()

	var data model.BackupData
	if err := json.NewDecoder(zr).Decode(&data); err != nil {
		return nil, fmt.Errorf("could not decode json from zstd reader: %w", err)
	}
	return &data, nil
}

// ExportFile dumps the whole store into filename. A ".zst" suffix is
// appended when missing.
func ExportFile(ctx context.Context, store db.Store, auditWriter audit.Writer, actorID, filename string) (string, error) {
	if !strings.HasSuffix(filename, ".zst") {
		filename += ".zst"
	}

	data, err := store.ExportDataForBackup(ctx)
	if err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupExport, filename, err)
		return "", err
	}

	file, err := os.Create(filename)
	if err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupExport, filename, err)
		return "", fmt.Errorf("could not create file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if err := Write(file, data); err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupExport, filename, err)
		return "", err
	}

	recordBackup(ctx, auditWriter, actorID, audit.ActionBackupExport, filename, nil)
	return filename, nil
}

// ImportFile loads a snapshot file into the store.
func ImportFile(ctx context.Context, store db.Store, auditWriter audit.Writer, actorID, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupImport, filename, err)
		return fmt.Errorf("could not open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := Read(file)
	if err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupImport, filename, err)
		return err
	}

	if err := store.ImportDataFromBackup(ctx, data); err != nil {
		recordBackup(ctx, auditWriter, actorID, audit.ActionBackupImport, filename, err)
		return err
	}

	recordBackup(ctx, auditWriter, actorID, audit.ActionBackupImport, filename, nil)
	return nil
}

func recordBackup(ctx context.Context, w audit.Writer, actorID, action, filename string, err error) {
	if w == nil {
		return
	}
	w.Record(ctx, audit.Event{
		UserID:  actorID,
		Action:  action,
		Detail:  filename,
		Success: err == nil,
		Error:   err,
	})
}
