package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/dibs/internal/catalog"
)

// BulkHandler handles multi-item operations (owner only).
type BulkHandler struct {
	Catalog *catalog.Catalog
}

// Apply handles POST /api/bulk. A partly failed batch answers 207 with the
// per-item report.
func (h *BulkHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req catalog.BulkRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.Catalog.BulkApply(r.Context(), viewerFrom(r), req)
	if err != nil {
		catalogError(w, err, "to apply bulk operation")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("bulk operation applied", "user", claims.Username, "kind", req.Kind, "items", len(report.SucceededIDs))
	jsonResponse(w, http.StatusOK, report)
}
