package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/imaging"
	"github.com/erazemk/dibs/internal/model"
	"github.com/erazemk/dibs/internal/store"
)

// ItemsHandler handles item CRUD, listing and image endpoints.
type ItemsHandler struct {
	DB       *sql.DB
	Catalog  *catalog.Catalog
	Sessions *Sessions
}

type createItemRequest struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Link          string   `json:"link"`
	ImageURL      string   `json:"image_url"`
	DesireScore   int      `json:"desire_score"`
	CategoryTags  []string `json:"category_tags"`
	IsPrivate     bool     `json:"is_private"`
	CollectionIDs []string `json:"collection_ids"`
}

func (req createItemRequest) item() model.WishItem {
	return model.WishItem{
		Name:          req.Name,
		Description:   req.Description,
		Link:          req.Link,
		ImageURL:      req.ImageURL,
		DesireScore:   req.DesireScore,
		CategoryTags:  req.CategoryTags,
		IsPrivate:     req.IsPrivate,
		CollectionIDs: req.CollectionIDs,
	}
}

// parseQuery reads the listing filters from the URL query string.
func parseQuery(values url.Values) (catalog.Query, uint64, error) {
	q := catalog.Query{
		Collection: values.Get("collection"),
		Category:   values.Get("category"),
		Status:     values.Get("status"),
		Search:     values.Get("q"),
		Sort:       values.Get("sort"),
	}

	if raw := values.Get("min_score"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return q, 0, &model.ValidationError{Field: "min_score", Message: "must be an integer"}
		}
		q.MinScore = n
	}
	if raw := values.Get("archived"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return q, 0, &model.ValidationError{Field: "archived", Message: "must be a boolean"}
		}
		q.Archived = b
	}

	var seq uint64
	if raw := values.Get("seq"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return q, 0, &model.ValidationError{Field: "seq", Message: "must be a positive integer"}
		}
		seq = n
	}
	return q, seq, nil
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q, seq, err := parseQuery(values)
	if err != nil {
		jsonResponse(w, http.StatusOK, catalog.Degraded(err))
		return
	}

	viewer := viewerFrom(r)
	sess := h.Sessions.For(viewer, values.Get("sid"))
	seq = sess.Begin(seq)

	result, err := sess.ListItems(r.Context(), h.Catalog, viewer, q, seq)
	if err != nil {
		catalogError(w, err, "to list items")
		return
	}
	if result.Items == nil {
		result.Items = []catalog.ItemView{}
	}
	w.Header().Set("X-Dibs-Seq", strconv.FormatUint(seq, 10))
	jsonResponse(w, http.StatusOK, result)
}

// Create handles POST /api/items.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	viewer := viewerFrom(r)
	item, err := h.Catalog.Add(r.Context(), viewer, req.item())
	if err != nil {
		catalogError(w, err, "to create item")
		return
	}
	h.respondView(w, r, http.StatusCreated, item.ID)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respondView(w, r, http.StatusOK, r.PathValue("id"))
}

// Update handles PUT /api/items/{id}.
func (h *ItemsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := r.PathValue("id")
	if _, err := h.Catalog.Update(r.Context(), viewerFrom(r), id, patch); err != nil {
		catalogError(w, err, "to update item")
		return
	}
	h.respondView(w, r, http.StatusOK, id)
}

// Delete handles DELETE /api/items/{id}.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Remove(r.Context(), viewerFrom(r), r.PathValue("id")); err != nil {
		catalogError(w, err, "to delete item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// UploadImage handles PUT /api/items/{id}/image. The upload is resized
// into a display image and a thumbnail, both served by GetImage.
func (h *ItemsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Catalog.Item(id); err != nil {
		catalogError(w, err, "to upload image")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	processed, err := imaging.Process(file)
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupported) {
			jsonError(w, http.StatusBadRequest, "image must be JPEG or PNG")
			return
		}
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetItemImage(r.Context(), h.DB, id, processed.Display, processed.Thumbnail, processed.MIME); err != nil {
		slog.Error("failed to save image", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save image")
		return
	}

	// A changing query keeps browsers from showing the previous picture.
	imageURL := "/api/items/" + id + "/image?v=" + strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := h.Catalog.Update(r.Context(), viewerFrom(r), id, model.ItemPatch{ImageURL: &imageURL}); err != nil {
		catalogError(w, err, "to upload image")
		return
	}

	slog.Info("item image uploaded", "item", id, "bytes", len(processed.Display))
	h.respondView(w, r, http.StatusOK, id)
}

// GetImage handles GET /api/items/{id}/image. Pass size=thumb for the
// thumbnail.
func (h *ItemsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Visibility follows the item.
	if _, err := h.Catalog.Get(r.Context(), viewerFrom(r), id); err != nil {
		catalogError(w, err, "to get image")
		return
	}

	thumb := r.URL.Query().Get("size") == "thumb"
	data, mime, err := store.GetItemImage(r.Context(), h.DB, id, thumb)
	if err != nil {
		slog.Error("failed to get image", "item", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get image")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no image")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

func (h *ItemsHandler) respondView(w http.ResponseWriter, r *http.Request, status int, id string) {
	view, err := h.Catalog.Get(r.Context(), viewerFrom(r), id)
	if err != nil {
		catalogError(w, err, "to get item")
		return
	}
	jsonResponse(w, status, view)
}
