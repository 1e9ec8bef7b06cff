package repository

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

func sqliteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func outcomeFor(content string, status constants.DocumentStatus) *entity.DocumentOutcome {
	h := sha256.Sum256([]byte(content))
	total := 108.0
	return &entity.DocumentOutcome{
		Document: entity.RawDocument{
			ID:           uuid.New(),
			SourcePath:   "/in/" + content + ".pdf",
			FileExt:      "pdf",
			Size:         int64(len(content)),
			ContentHash:  h[:],
			DiscoveredAt: time.Now().UTC(),
		},
		Status: status,
		Record: &entity.StructuredRecord{TotalAmount: &total},
	}
}

func TestSQLiteLookupMissReturnsNil(t *testing.T) {
	s := sqliteStore(t)
	h := sha256.Sum256([]byte("unseen"))
	ref, err := s.Lookup(context.Background(), h[:])
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestSQLiteSaveAndLookup(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()

	out := outcomeFor("invoice-a", constants.StatusPersisted)
	require.NoError(t, s.SaveOutcome(ctx, out))

	ref, err := s.Lookup(ctx, out.Document.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, out.Document.ID, ref.DocumentID)
	assert.Equal(t, out.Document.HashHex(), ref.HashHex)
}

func TestSQLiteFailedOutcomeNotADuplicateSource(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()

	out := outcomeFor("invoice-b", constants.StatusFailed)
	out.Record = nil
	out.Err = "ocr timed out"
	require.NoError(t, s.SaveOutcome(ctx, out))

	ref, err := s.Lookup(ctx, out.Document.ContentHash)
	require.NoError(t, err)
	assert.Nil(t, ref, "only PERSISTED rows feed dedup")
}

func TestSQLiteForcedReprocessReplacesPersistedRow(t *testing.T) {
	s := sqliteStore(t)
	ctx := context.Background()

	first := outcomeFor("invoice-c", constants.StatusPersisted)
	require.NoError(t, s.SaveOutcome(ctx, first))

	second := outcomeFor("invoice-c", constants.StatusPersisted)
	require.NoError(t, s.SaveOutcome(ctx, second), "same hash upserts instead of failing")

	ref, err := s.Lookup(ctx, second.Document.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, second.Document.ID, ref.DocumentID)
}
