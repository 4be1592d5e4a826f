package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/service"
)

// ChangelogHandler serves the release notes. Reading is public, writing is
// for privileged users (the service returns 403 for everyone else).
type ChangelogHandler struct {
	service *service.ChangelogService
	logger  *slog.Logger
}

func NewChangelogHandler(svc *service.ChangelogService, logger *slog.Logger) *ChangelogHandler {
	return &ChangelogHandler{service: svc, logger: logger}
}

type changelogRequest struct {
	Version string   `json:"version" validate:"required,max=20"`
	Date    string   `json:"date"    validate:"required"`
	Changes []string `json:"changes" validate:"required,min=1"`
}

func (req changelogRequest) input() service.ChangelogInput {
	return service.ChangelogInput{Version: req.Version, Date: req.Date, Changes: req.Changes}
}

// HandleList returns every entry, newest first.
//
// HTTP: GET /api/changelogs
func (h *ChangelogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HTTP: POST /api/changelogs
func (h *ChangelogHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req changelogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.service.Create(r.Context(), mustUserID(r), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// HTTP: PUT /api/changelogs/{id}
func (h *ChangelogHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req changelogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	entry, err := h.service.Update(r.Context(), mustUserID(r), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// HTTP: DELETE /api/changelogs/{id}
func (h *ChangelogHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mustUserID(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
