package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/service"
)

// SubCategoryHandler manages the caller's user-defined sub-categories.
type SubCategoryHandler struct {
	service *service.SubCategoryService
	logger  *slog.Logger
}

func NewSubCategoryHandler(svc *service.SubCategoryService, logger *slog.Logger) *SubCategoryHandler {
	return &SubCategoryHandler{service: svc, logger: logger}
}

type subCategoryRequest struct {
	Name           string `json:"name"           validate:"required,max=50"`
	ParentCategory string `json:"parentCategory" validate:"required,category"`
}

type deleteSubCategoryResponse struct {
	Cleared int `json:"cleared"`
}

// HandleList returns sub-categories sorted by name.
//
// HTTP: GET /api/subcategories?parentCategory=React
// Without the query parameter every sub-category of the user is returned.
func (h *SubCategoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.List(r.Context(), mustUserID(r), r.URL.Query().Get("parentCategory"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

// HandleCreate creates a sub-category unless it already exists.
//
// HTTP: POST /api/subcategories
//
// CREATE-IF-ABSENT:
// 201 Created with the new record, or 200 OK with the existing one. The
// client never has to treat "already exists" as an error.
func (h *SubCategoryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req subCategoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Create(r.Context(), mustUserID(r), req.Name, req.ParentCategory)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res.SubCategory)
}

// HandleDelete removes a sub-category and clears it from every snippet that
// used it. The response says how many snippets were cleared.
//
// HTTP: DELETE /api/subcategories/{id}
func (h *SubCategoryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	cleared, err := h.service.Delete(r.Context(), mustUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteSubCategoryResponse{Cleared: cleared})
}
