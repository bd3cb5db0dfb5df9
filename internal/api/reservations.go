package api

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// ReservationsHandler handles claim, unclaim and release.
type ReservationsHandler struct {
	Catalog *catalog.Catalog
}

// Claim handles POST /api/items/{id}/claim.
func (h *ReservationsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.Claim(r.Context(), viewerFrom(r), r.PathValue("id"))
	h.respond(w, res, err, "to claim item")
}

// Unclaim handles DELETE /api/items/{id}/claim.
func (h *ReservationsHandler) Unclaim(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.Unclaim(r.Context(), viewerFrom(r), r.PathValue("id"))
	h.respond(w, res, err, "to unclaim item")
}

// Release handles POST /api/items/{id}/release (owner only).
func (h *ReservationsHandler) Release(w http.ResponseWriter, r *http.Request) {
	res, err := h.Catalog.Release(r.Context(), viewerFrom(r), r.PathValue("id"))
	h.respond(w, res, err, "to release item")
}

func (h *ReservationsHandler) respond(w http.ResponseWriter, res *model.Reservation, err error, action string) {
	if err != nil && !staleWarning(w, err) {
		catalogError(w, err, action)
		return
	}
	if err != nil {
		slog.Warn("reservation served from stale index", "error", err)
	}
	jsonResponse(w, http.StatusOK, res)
}
