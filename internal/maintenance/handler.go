package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"vetdirectory/internal/observability"
)

// AccountPurger is the slice of the account repository the cleanup needs.
type AccountPurger interface {
	HardDeletePurged(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// CleanupHandler hard-deletes accounts that were soft-deleted longer ago
// than the retention period. Revocation records and rate-limit counters
// self-expire in Redis and need no sweeping here.
type CleanupHandler struct {
	accounts   AccountPurger
	logger     *observability.Logger
	cronSecret string
	retention  time.Duration
	batchSize  int
}

func NewCleanupHandler(accounts AccountPurger, logger *observability.Logger, cronSecret string, retention time.Duration, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		accounts:   accounts,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		retention:  retention,
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	retention := h.retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-retention)

	deleted, err := h.accounts.HardDeletePurged(r.Context(), cutoff, h.batchSize)
	if err != nil {
		h.logger.Error("account_purge_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("account_purge_completed", map[string]any{"deleted_accounts": deleted})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"deleted_accounts": deleted,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
