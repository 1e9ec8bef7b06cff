package repository

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
)

// MemoryStore is an in-process RecordStore for tests and dry runs.
type MemoryStore struct {
	mu        sync.Mutex
	persisted map[string]entity.ExistingRecordRef // hash hex -> ref
	outcomes  []entity.DocumentOutcome
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{persisted: make(map[string]entity.ExistingRecordRef)}
}

func (s *MemoryStore) Lookup(_ context.Context, contentHash []byte) (*entity.ExistingRecordRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := hex.EncodeToString(contentHash)
	if ref, ok := s.persisted[key]; ok {
		out := ref
		return &out, nil
	}
	return nil, nil
}

func (s *MemoryStore) SaveOutcome(_ context.Context, out *entity.DocumentOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, *out)
	if out.Status == constants.StatusPersisted {
		s.persisted[out.Document.HashHex()] = entity.ExistingRecordRef{
			DocumentID:  out.Document.ID,
			HashHex:     out.Document.HashHex(),
			PersistedAt: time.Now().UTC(),
		}
	}
	return nil
}

func (s *MemoryStore) Close() {}

// Outcomes returns a copy of every saved outcome, in save order.
func (s *MemoryStore) Outcomes() []entity.DocumentOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.DocumentOutcome, len(s.outcomes))
	copy(out, s.outcomes)
	return out
}
