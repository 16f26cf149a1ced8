package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"vetdirectory/internal/account"
)

// AdminHandler exposes account lifecycle actions (suspend, restore, soft
// delete) behind a shared admin secret presented as a bearer token. When no
// secret is configured the endpoints answer 404.
type AdminHandler struct {
	service     *Service
	adminSecret string
}

func NewAdminHandler(service *Service, adminSecret string) *AdminHandler {
	return &AdminHandler{service: service, adminSecret: strings.TrimSpace(adminSecret)}
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var body suspendRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.service.Suspend(r.Context(), id, body.Reason); err != nil {
		h.writeActionError(w, err, "failed to suspend account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.service.Restore(r.Context(), id); err != nil {
		h.writeActionError(w, err, "failed to restore account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.writeActionError(w, err, "failed to delete account")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.adminSecret == "" {
		writeError(w, http.StatusNotFound, "not found")
		return "", false
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.adminSecret {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}

	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusBadRequest, "invalid account id")
		return "", false
	}

	return id, true
}

func (h *AdminHandler) writeActionError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, account.ErrNotFound) {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	sentry.CaptureException(err)
	writeError(w, http.StatusInternalServerError, message)
}
