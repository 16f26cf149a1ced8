package resource

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"vetdirectory/internal/session"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) ListResources(w http.ResponseWriter, r *http.Request) {
	categoryID := strings.TrimSpace(r.URL.Query().Get("category_id"))
	if categoryID != "" {
		if _, err := uuid.Parse(categoryID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid category id")
			return
		}
	}

	resources, err := h.repo.List(r.Context(), categoryID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list resources")
		return
	}

	writeJSON(w, http.StatusOK, resources)
}

func (h *Handler) GetResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	res, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load resource")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CreateResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	res, err := h.repo.Create(r.Context(), input, principal.AccountID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create resource")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) UpdateResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	input, ok := parseInput(w, r)
	if !ok {
		return
	}

	res, err := h.repo.Update(r.Context(), id, input)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to update resource")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteResource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete resource")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) SaveResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if _, err := h.repo.Get(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "resource not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to save resource")
		return
	}

	if err := h.repo.Save(r.Context(), principal.AccountID, id); err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to save resource")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnsaveResource(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Unsave(r.Context(), principal.AccountID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "saved resource not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to unsave resource")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListSaved(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	saved, err := h.repo.ListSaved(r.Context(), principal.AccountID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list saved resources")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid resource id")
		return "", false
	}

	return id, true
}

func parseInput(w http.ResponseWriter, r *http.Request) (ResourceInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var input ResourceInput
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return ResourceInput{}, false
	}

	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	input.URL = strings.TrimSpace(input.URL)
	input.Phone = strings.TrimSpace(input.Phone)
	input.CategoryID = strings.TrimSpace(input.CategoryID)

	if input.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return ResourceInput{}, false
	}
	if !utf8.ValidString(input.Title) || len(input.Title) > 150 {
		writeError(w, http.StatusBadRequest, "title is invalid")
		return ResourceInput{}, false
	}
	if !utf8.ValidString(input.Description) || len(input.Description) > 2000 {
		writeError(w, http.StatusBadRequest, "description is invalid")
		return ResourceInput{}, false
	}
	if input.URL != "" {
		parsed, err := url.ParseRequestURI(input.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
			writeError(w, http.StatusBadRequest, "url must be a valid http or https link")
			return ResourceInput{}, false
		}
	}
	if len(input.Phone) > 32 {
		writeError(w, http.StatusBadRequest, "phone is invalid")
		return ResourceInput{}, false
	}
	if _, err := uuid.Parse(input.CategoryID); err != nil {
		writeError(w, http.StatusBadRequest, "category_id is invalid")
		return ResourceInput{}, false
	}

	return input, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
