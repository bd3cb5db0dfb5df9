package api

import (
	"net/http"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// CollectionsHandler handles collection endpoints.
type CollectionsHandler struct {
	Catalog *catalog.Catalog
}

type createCollectionRequest struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	IsDefault bool   `json:"is_default"`
}

// List handles GET /api/collections. The "all" collection comes first.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Catalog.Collections())
}

// Counts handles GET /api/collections/counts.
func (h *CollectionsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Catalog.CollectionCounts())
}

// Create handles POST /api/collections.
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	col, err := h.Catalog.CreateCollection(r.Context(), viewerFrom(r), model.Collection{
		Name:      req.Name,
		Icon:      req.Icon,
		IsDefault: req.IsDefault,
	})
	if err != nil {
		catalogError(w, err, "to create collection")
		return
	}
	jsonResponse(w, http.StatusCreated, col)
}

// Update handles PUT /api/collections/{id}.
func (h *CollectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch catalog.CollectionPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	col, err := h.Catalog.UpdateCollection(r.Context(), viewerFrom(r), r.PathValue("id"), patch)
	if err != nil {
		catalogError(w, err, "to update collection")
		return
	}
	jsonResponse(w, http.StatusOK, col)
}

// Delete handles DELETE /api/collections/{id}. Items stay in the catalog.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteCollection(r.Context(), viewerFrom(r), r.PathValue("id")); err != nil {
		catalogError(w, err, "to delete collection")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "collection deleted"})
}
