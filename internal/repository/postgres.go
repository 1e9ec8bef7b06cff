package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// PostgresStore persists outcomes in the invoice_documents table. Each call
// leases a connection from the pool for its duration, so concurrent batch
// workers never share a connection.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

// Lookup finds a previously persisted record with the same content hash.
func (s *PostgresStore) Lookup(ctx context.Context, contentHash []byte) (*entity.ExistingRecordRef, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	const q = `
		SELECT id, persisted_at
		FROM invoice_documents
		WHERE content_hash = $1 AND status = $2
		ORDER BY persisted_at DESC
		LIMIT 1`

	var ref entity.ExistingRecordRef
	err = conn.QueryRow(ctx, q, contentHash, string(constants.StatusPersisted)).
		Scan(&ref.DocumentID, &ref.PersistedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup by content hash: %w", err)
	}
	ref.HashHex = fmt.Sprintf("%x", contentHash)
	return &ref, nil
}

// SaveOutcome writes the terminal outcome. Persisted outcomes upsert on the
// content hash so a forced reprocess replaces the earlier record; other
// terminal states insert a fresh audit row.
func (s *PostgresStore) SaveOutcome(ctx context.Context, out *entity.DocumentOutcome) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	record, validation, attempts, err := marshalOutcome(out)
	if err != nil {
		return err
	}

	if out.Status == constants.StatusPersisted {
		const q = `
			INSERT INTO invoice_documents
				(id, content_hash, source_path, file_ext, size_bytes, status,
				 record, validation, attempts, raw_text, error, discovered_at, persisted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (content_hash) WHERE (status = 'PERSISTED')
			DO UPDATE SET
				id = EXCLUDED.id,
				source_path = EXCLUDED.source_path,
				record = EXCLUDED.record,
				validation = EXCLUDED.validation,
				attempts = EXCLUDED.attempts,
				raw_text = EXCLUDED.raw_text,
				error = EXCLUDED.error,
				persisted_at = EXCLUDED.persisted_at`
		_, err = conn.Exec(ctx, q,
			out.Document.ID, out.Document.ContentHash, out.Document.SourcePath,
			out.Document.FileExt, out.Document.Size, string(out.Status),
			record, validation, attempts, out.RawText, out.Err,
			out.Document.DiscoveredAt, time.Now().UTC())
	} else {
		const q = `
			INSERT INTO invoice_documents
				(id, content_hash, source_path, file_ext, size_bytes, status,
				 record, validation, attempts, raw_text, error, discovered_at, persisted_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				record = EXCLUDED.record,
				validation = EXCLUDED.validation,
				attempts = EXCLUDED.attempts,
				error = EXCLUDED.error,
				persisted_at = EXCLUDED.persisted_at`
		_, err = conn.Exec(ctx, q,
			out.Document.ID, out.Document.ContentHash, out.Document.SourcePath,
			out.Document.FileExt, out.Document.Size, string(out.Status),
			record, validation, attempts, out.RawText, out.Err,
			out.Document.DiscoveredAt, time.Now().UTC())
	}
	if err != nil {
		s.logger.Error("repository.save_outcome.failed",
			"document_id", out.Document.ID, "status", out.Status, "error", err)
		return fmt.Errorf("save outcome: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func marshalOutcome(out *entity.DocumentOutcome) (record, validation, attempts []byte, err error) {
	if out.Record != nil {
		if record, err = json.Marshal(out.Record); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal record: %w", err)
		}
	}
	if out.Validation != nil {
		if validation, err = json.Marshal(out.Validation); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal validation: %w", err)
		}
	}
	if len(out.Attempts) > 0 {
		if attempts, err = json.Marshal(out.Attempts); err != nil {
			return nil, nil, nil, fmt.Errorf("marshal attempts: %w", err)
		}
	}
	return record, validation, attempts, nil
}
