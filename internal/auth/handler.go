package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"

	"vetdirectory/internal/session"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	maxPasswordLength = 200
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type resetRequest struct {
	Email string `json:"email"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[credentialsRequest](w, r)
	if !ok {
		return
	}
	if !validCredentials(w, body.Email, body.Password) {
		return
	}

	tokens, err := h.service.Register(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	writeJSON(w, http.StatusCreated, tokens)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[credentialsRequest](w, r)
	if !ok {
		return
	}
	if !validCredentials(w, body.Email, body.Password) {
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if errors.Is(err, ErrAccountDisabled) {
			writeError(w, http.StatusForbidden, "account is disabled")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[refreshRequest](w, r)
	if !ok {
		return
	}

	tokens, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			writeError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}
		if errors.Is(err, ErrSessionExpired) {
			writeError(w, http.StatusUnauthorized, "session expired, please log in again")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Logout always succeeds for an authenticated caller. Revocation of the
// presented tokens is best effort; a store outage must not block logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var refreshToken string
	if body, ok := decodeOptionalBody[logoutRequest](r); ok {
		refreshToken = strings.TrimSpace(body.RefreshToken)
	}

	h.service.Logout(r.Context(), session.BearerToken(r), refreshToken)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := session.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	body, ok := decodeBody[changePasswordRequest](w, r)
	if !ok {
		return
	}
	if len(body.NewPassword) < minPasswordLength || len(body.NewPassword) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "new password format is invalid")
		return
	}

	tokens, err := h.service.ChangePassword(r.Context(), principal.AccountID, body.CurrentPassword, body.NewPassword)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "current password is incorrect")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// RequestPasswordReset responds 202 whether or not the email is known.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[resetRequest](w, r)
	if !ok {
		return
	}
	if !emailRegex.MatchString(strings.TrimSpace(strings.ToLower(body.Email))) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}

	h.service.RequestPasswordReset(r.Context(), body.Email)

	w.WriteHeader(http.StatusAccepted)
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var body T
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return body, false
	}

	return body, true
}

// decodeOptionalBody tolerates an empty or malformed body for endpoints
// where the payload is advisory, like logout.
func decodeOptionalBody[T any](r *http.Request) (T, bool) {
	var body T
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBodyBytes))
	if err := decoder.Decode(&body); err != nil {
		return body, false
	}

	return body, true
}

func validCredentials(w http.ResponseWriter, email, password string) bool {
	if !emailRegex.MatchString(strings.TrimSpace(strings.ToLower(email))) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return false
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		writeError(w, http.StatusBadRequest, "password format is invalid")
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
