package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

const sqliteDDL = `
CREATE TABLE IF NOT EXISTS invoice_documents (
	id            TEXT PRIMARY KEY,
	content_hash  BLOB NOT NULL,
	source_path   TEXT NOT NULL,
	file_ext      TEXT NOT NULL,
	size_bytes    INTEGER NOT NULL,
	status        TEXT NOT NULL,
	record        TEXT,
	validation    TEXT,
	attempts      TEXT,
	raw_text      TEXT,
	error         TEXT,
	discovered_at TIMESTAMP NOT NULL,
	persisted_at  TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS invoice_documents_hash_persisted
	ON invoice_documents (content_hash) WHERE status = 'PERSISTED';
CREATE INDEX IF NOT EXISTS invoice_documents_hash
	ON invoice_documents (content_hash);
`

// SQLiteStore is the local single-file backend used by the batch CLI when no
// Postgres DSN is configured. Same table shape as the Postgres store.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc sqlite serializes writes; one connection avoids SQLITE_BUSY
	// under concurrent batch workers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	logger.Info("sqlite store ready", "path", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, contentHash []byte) (*entity.ExistingRecordRef, error) {
	const q = `
		SELECT id, persisted_at
		FROM invoice_documents
		WHERE content_hash = ? AND status = ?
		ORDER BY persisted_at DESC
		LIMIT 1`

	var idText string
	var ref entity.ExistingRecordRef
	err := s.db.QueryRowContext(ctx, q, contentHash, string(constants.StatusPersisted)).
		Scan(&idText, &ref.PersistedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by content hash: %w", err)
	}
	id, err := uuid.Parse(idText)
	if err != nil {
		return nil, fmt.Errorf("parse stored document id: %w", err)
	}
	ref.DocumentID = id
	ref.HashHex = fmt.Sprintf("%x", contentHash)
	return &ref, nil
}

func (s *SQLiteStore) SaveOutcome(ctx context.Context, out *entity.DocumentOutcome) error {
	record, validation, attempts, err := marshalOutcome(out)
	if err != nil {
		return err
	}

	var q string
	if out.Status == constants.StatusPersisted {
		q = `
			INSERT INTO invoice_documents
				(id, content_hash, source_path, file_ext, size_bytes, status,
				 record, validation, attempts, raw_text, error, discovered_at, persisted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (content_hash) WHERE status = 'PERSISTED'
			DO UPDATE SET
				id = excluded.id,
				source_path = excluded.source_path,
				record = excluded.record,
				validation = excluded.validation,
				attempts = excluded.attempts,
				raw_text = excluded.raw_text,
				error = excluded.error,
				persisted_at = excluded.persisted_at`
	} else {
		q = `
			INSERT INTO invoice_documents
				(id, content_hash, source_path, file_ext, size_bytes, status,
				 record, validation, attempts, raw_text, error, discovered_at, persisted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				status = excluded.status,
				record = excluded.record,
				validation = excluded.validation,
				attempts = excluded.attempts,
				error = excluded.error,
				persisted_at = excluded.persisted_at`
	}

	_, err = s.db.ExecContext(ctx, q,
		out.Document.ID.String(), out.Document.ContentHash, out.Document.SourcePath,
		out.Document.FileExt, out.Document.Size, string(out.Status),
		nullable(record), nullable(validation), nullable(attempts),
		out.RawText, out.Err, out.Document.DiscoveredAt, time.Now().UTC())
	if err != nil {
		s.logger.Error("repository.save_outcome.failed",
			"document_id", out.Document.ID, "status", out.Status, "error", err)
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.logger.Warn("sqlite close error", "error", err)
	}
}

func nullable(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
