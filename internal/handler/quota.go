package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/service"
)

// QuotaHandler reports and repairs the caller's snippet counter.
type QuotaHandler struct {
	service *service.QuotaService
	logger  *slog.Logger
}

func NewQuotaHandler(svc *service.QuotaService, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{service: svc, logger: logger}
}

// HandleUsage returns {count, limit, remaining, tier}.
// The frontend calls it before opening the create form.
//
// HTTP: GET /api/quota
func (h *QuotaHandler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.Usage(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// HandleReconcile recounts the caller's snippets and rewrites the counter.
//
// HTTP: POST /api/quota/reconcile
func (h *QuotaHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Reconcile(r.Context(), mustUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
