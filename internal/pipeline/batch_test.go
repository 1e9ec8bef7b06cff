package pipeline

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidoyelade/invoice-pipeline/constants"
	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/repository"
)

type fakeDetector struct{}

func (fakeDetector) Detect(context.Context, entity.RawDocument) (entity.FormatProfile, error) {
	return entity.FormatProfile{Kind: constants.PDFText, PageCount: 1, HasTextLayer: true}, nil
}

type fakeExtractor struct {
	failPaths map[string]bool
}

func (f fakeExtractor) Extract(_ context.Context, doc entity.RawDocument, profile entity.FormatProfile) (entity.ExtractionContext, error) {
	if f.failPaths[doc.SourcePath] {
		return entity.ExtractionContext{}, errors.New("extraction blew up")
	}
	return entity.ExtractionContext{RawText: "invoice text for " + doc.SourcePath, Profile: profile}, nil
}

// gatedEngine counts concurrent Extract calls and can stall them.
type gatedEngine struct {
	mu         sync.Mutex
	inFlight   int
	maxSeen    int
	stall      time.Duration
	totalCalls atomic.Int64
}

func (g *gatedEngine) Extract(_ context.Context, _ entity.ExtractionContext) (entity.StructuredRecord, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxSeen {
		g.maxSeen = g.inFlight
	}
	g.mu.Unlock()

	if g.stall > 0 {
		time.Sleep(g.stall)
	}
	g.totalCalls.Add(1)

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()

	return goodRecord(), nil
}

func testDoc(name string) entity.RawDocument {
	h := sha256.Sum256([]byte(name))
	return entity.RawDocument{
		ID:           uuid.New(),
		SourcePath:   "/invoices/" + name,
		FileExt:      "pdf",
		Size:         int64(len(name)),
		ContentHash:  h[:],
		DiscoveredAt: time.Now().UTC(),
	}
}

func testDocs(n int) []entity.RawDocument {
	docs := make([]entity.RawDocument, n)
	for i := range docs {
		docs[i] = testDoc(fmt.Sprintf("inv-%03d.pdf", i))
	}
	return docs
}

func newTestCoordinator(engine FieldExtractor, extractor fakeExtractor, store repository.RecordStore) *Coordinator {
	controller := NewRefinementController(engine, testValidator(), 1, nil)
	proc := NewProcessor(nil, fakeDetector{}, extractor, controller, store)
	return NewCoordinator(proc, nil)
}

func TestBatchAllSucceed(t *testing.T) {
	store := repository.NewMemoryStore()
	c := newTestCoordinator(&gatedEngine{}, fakeExtractor{}, store)

	job := c.Run(context.Background(), testDocs(8), 4, false)

	assert.Equal(t, 8, job.Total)
	assert.Equal(t, 8, job.Succeeded)
	assert.Zero(t, job.Failed)
	assert.False(t, job.Cancelled)
	require.Len(t, job.Outcomes, 8)
	for i, o := range job.Outcomes {
		assert.Equal(t, constants.StatusPersisted, o.Status)
		assert.Equal(t, fmt.Sprintf("/invoices/inv-%03d.pdf", i), o.Document.SourcePath, "outcomes keep submission order")
		require.NotNil(t, o.Record)
		assert.Greater(t, o.Record.DocumentConfidence, 0.9)
	}
}

func TestBatchPartialFailureIsolation(t *testing.T) {
	store := repository.NewMemoryStore()
	ext := fakeExtractor{failPaths: map[string]bool{
		"/invoices/inv-002.pdf": true,
		"/invoices/inv-005.pdf": true,
	}}
	c := newTestCoordinator(&gatedEngine{}, ext, store)

	job := c.Run(context.Background(), testDocs(8), 3, false)

	assert.Equal(t, 6, job.Succeeded)
	assert.Equal(t, 2, job.Failed)
	assert.Equal(t, constants.StatusFailed, job.Outcomes[2].Status)
	assert.NotEmpty(t, job.Outcomes[2].Err)
	assert.Equal(t, constants.StatusPersisted, job.Outcomes[3].Status, "failure does not disturb siblings")
}

func TestBatchConcurrencyGate(t *testing.T) {
	engine := &gatedEngine{stall: 20 * time.Millisecond}
	c := newTestCoordinator(engine, fakeExtractor{}, repository.NewMemoryStore())

	job := c.Run(context.Background(), testDocs(12), 3, false)

	assert.Equal(t, 12, job.Succeeded)
	assert.LessOrEqual(t, engine.maxSeen, 3, "never more than the gate in flight")
}

func TestBatchSerialWithGateOfOne(t *testing.T) {
	engine := &gatedEngine{stall: 5 * time.Millisecond}
	c := newTestCoordinator(engine, fakeExtractor{}, repository.NewMemoryStore())

	job := c.Run(context.Background(), testDocs(5), 1, false)

	assert.Equal(t, 5, job.Succeeded)
	assert.Equal(t, 1, engine.maxSeen)
}

func TestBatchCancellationStopsAdmission(t *testing.T) {
	engine := &gatedEngine{stall: 50 * time.Millisecond}
	c := newTestCoordinator(engine, fakeExtractor{}, repository.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	job := c.Run(ctx, testDocs(20), 2, false)

	assert.True(t, job.Cancelled)
	assert.Equal(t, 20, len(job.Outcomes), "every document gets an outcome")
	assert.Greater(t, job.Skipped, 0, "unadmitted documents are SKIPPED")
	assert.Greater(t, job.Succeeded, 0, "in-flight documents run to completion")
	assert.Equal(t, 20, job.Succeeded+job.Skipped)
	assert.Equal(t, int64(job.Succeeded), engine.totalCalls.Load())
}

func TestBatchDuplicateSurfaced(t *testing.T) {
	store := repository.NewMemoryStore()
	c := newTestCoordinator(&gatedEngine{}, fakeExtractor{}, store)

	first := c.Run(context.Background(), []entity.RawDocument{testDoc("same.pdf")}, 1, false)
	require.Equal(t, 1, first.Succeeded)

	// same content, different discovery
	again := testDoc("same.pdf")
	second := c.Run(context.Background(), []entity.RawDocument{again}, 1, false)

	require.Equal(t, 1, second.Duplicates)
	out := second.Outcomes[0]
	assert.Equal(t, constants.StatusDuplicate, out.Status)
	require.NotNil(t, out.Duplicate)
	assert.Equal(t, first.Outcomes[0].Document.ID, out.Duplicate.DocumentID)

	forced := c.Run(context.Background(), []entity.RawDocument{testDoc("same.pdf")}, 1, true)
	assert.Equal(t, 1, forced.Succeeded, "force reprocesses despite the hash hit")
	require.NotNil(t, forced.Outcomes[0].Duplicate, "duplicate reference still surfaced")
}

func TestBatchNearDuplicateNotFlagged(t *testing.T) {
	store := repository.NewMemoryStore()
	c := newTestCoordinator(&gatedEngine{}, fakeExtractor{}, store)

	first := c.Run(context.Background(), []entity.RawDocument{testDoc("a.pdf")}, 1, false)
	require.Equal(t, 1, first.Succeeded)

	second := c.Run(context.Background(), []entity.RawDocument{testDoc("a.pdf ")}, 1, false)
	assert.Equal(t, 1, second.Succeeded, "one-byte difference is a distinct document")
	assert.Zero(t, second.Duplicates)
}
