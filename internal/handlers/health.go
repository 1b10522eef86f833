package handlers

import (
	"net/http"

	"github.com/bobmcallan/dodgy-dave/internal/common"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	logger         *common.Logger
	sessionBackend string
}

// NewHealthHandler creates a new health handler. sessionBackend is reported
// as-is so operators can see where sessions live.
func NewHealthHandler(logger *common.Logger, sessionBackend string) *HealthHandler {
	return &HealthHandler{logger: logger, sessionBackend: sessionBackend}
}

// ServeHTTP handles GET /api/health.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"sessions": h.sessionBackend,
	})
}
