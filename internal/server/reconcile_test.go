package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidoyelade/invoice-pipeline/internal/reconcile"
)

func TestReconcileEndpoint(t *testing.T) {
	h := NewReconcileHandler(reconcile.NewEngine(0.01), nil)

	body := `{
		"record": {"vendor_name": "Acme Corp", "invoice_number": "INV-001", "total_amount": 108.0, "document_confidence": 0.9},
		"reference": {"vendor_name": "ACME", "invoice_number": "inv001", "total_amount": 108.0},
		"blend": true
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/reconcile", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.Reconcile(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp ReconcileResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Result.Reconciled)
	assert.InDelta(t, 1.0, resp.Result.Score, 1e-9)
	require.NotNil(t, resp.Record)
	assert.InDelta(t, 0.99, resp.Record.DocumentConfidence, 1e-9, "blend scales confidence by 1.1")
}

func TestReconcileEndpointBadBody(t *testing.T) {
	h := NewReconcileHandler(reconcile.NewEngine(0.01), nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/reconcile", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	h.Reconcile(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
