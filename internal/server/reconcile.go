package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/davidoyelade/invoice-pipeline/internal/entity"
	"github.com/davidoyelade/invoice-pipeline/internal/reconcile"
)

// ReconcileRequest pairs an extracted record with a reference row from
// another system.
type ReconcileRequest struct {
	Record    entity.StructuredRecord `json:"record"`
	Reference entity.ReferenceData    `json:"reference"`
	// Blend folds the reconciliation outcome into the record's document
	// confidence and returns the adjusted record.
	Blend bool `json:"blend,omitempty"`
}

type ReconcileResponse struct {
	Result entity.ReconciliationResult `json:"result"`
	Record *entity.StructuredRecord    `json:"record,omitempty"`
}

type ReconcileHandler struct {
	engine *reconcile.Engine
	logger *slog.Logger
}

func NewReconcileHandler(engine *reconcile.Engine, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{engine: engine, logger: logger}
}

func (h *ReconcileHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodySize)
	defer r.Body.Close()

	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	res := h.engine.Reconcile(&req.Record, req.Reference)
	resp := ReconcileResponse{Result: res}
	if req.Blend {
		reconcile.BlendConfidence(&req.Record, res)
		resp.Record = &req.Record
	}

	h.logger.Info("server.reconcile.done",
		"reconciled", res.Reconciled, "score", res.Score,
		"matches", len(res.Matches), "discrepancies", len(res.Discrepancies))
	writeJSON(w, http.StatusOK, resp)
}
