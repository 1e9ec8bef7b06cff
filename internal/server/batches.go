package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/ingest"
	"github.com/davidoyelade/invoice-pipeline/internal/pipeline"
)

const maxBatchBodySize = 1 << 20 // 1MB

// BatchRequest submits documents by path. Either Dir or Paths must be set.
type BatchRequest struct {
	Dir         string   `json:"dir,omitempty"`
	Paths       []string `json:"paths,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	Force       bool     `json:"force,omitempty"`
	SkipHidden  bool     `json:"skip_hidden,omitempty"`
}

type BatchHandler struct {
	discoverer  ingest.Discoverer
	coordinator *pipeline.Coordinator
	concurrency int
	logger      *slog.Logger
}

func NewBatchHandler(discoverer ingest.Discoverer, coordinator *pipeline.Coordinator, defaultConcurrency int, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		discoverer:  discoverer,
		coordinator: coordinator,
		concurrency: defaultConcurrency,
		logger:      logger,
	}
}

// Run discovers the requested documents and processes them synchronously,
// returning the finalized batch. Client disconnect cancels admission of
// not-yet-started documents; in-flight ones complete.
func (h *BatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodySize)
	defer r.Body.Close()

	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if req.Dir == "" && len(req.Paths) == 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "one of dir or paths is required")
		return
	}

	ctx := r.Context()

	var docs []entity.RawDocument
	if req.Dir != "" {
		found, stats, err := h.discoverer.DiscoverDirectory(ctx, req.Dir, req.SkipHidden)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "discover %s: %v", req.Dir, err)
			return
		}
		h.logger.Info("server.batches.discovered",
			"dir", req.Dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)
		docs = append(docs, found...)
	}
	for _, p := range req.Paths {
		doc, err := h.discoverer.DiscoverPath(ctx, p)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "discover %s: %v", p, err)
			return
		}
		docs = append(docs, doc)
	}
	if len(docs) == 0 {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "no processable documents found")
		return
	}

	concurrency := req.Concurrency
	if concurrency <= 0 {
		concurrency = h.concurrency
	}

	job := h.coordinator.Run(ctx, docs, concurrency, req.Force)
	writeJSON(w, http.StatusOK, job)
}
