package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/service"
)

// SnippetHandler exposes the snippet operations over HTTP.
//
// Every route here sits behind auth.RequireAuth, so the user id is always in
// the request context. The handler never trusts a user id from the body.
type SnippetHandler struct {
	service *service.SnippetService
	logger  *slog.Logger
}

// NewSnippetHandler creates a new SnippetHandler.
func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{service: svc, logger: logger}
}

// snippetRequest is the body of POST and PUT /api/snippets.
//
// The struct tags do the shape checks. Category may be empty, which means
// "classify it for me".
type snippetRequest struct {
	Title              string `json:"title"              validate:"required,max=100"`
	Description        string `json:"description"        validate:"max=500"`
	Code               string `json:"code"               validate:"required"`
	Category           string `json:"category"           validate:"omitempty,category"`
	SubCategoryName    string `json:"subCategoryName"    validate:"max=100"`
	NewSubCategoryName string `json:"newSubCategoryName" validate:"max=50"`
}

func (req snippetRequest) input() service.SnippetInput {
	return service.SnippetInput{
		Title:              req.Title,
		Description:        req.Description,
		Code:               req.Code,
		Category:           req.Category,
		SubCategoryName:    req.SubCategoryName,
		NewSubCategoryName: req.NewSubCategoryName,
	}
}

// saveResponse wraps a saved snippet. Warning is set when classification
// fell back to "Other" or the inline sub-category could not be created.
type saveResponse struct {
	Snippet *model.Snippet `json:"snippet"`
	Warning string         `json:"warning,omitempty"`
}

type classifyRequest struct {
	Code string `json:"code" validate:"required"`
}

type classifyResponse struct {
	Category model.Category `json:"category"`
	Error    string         `json:"error,omitempty"`
}

// HandleList returns the caller's snippets, newest first.
//
// HTTP: GET /api/snippets
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID := mustUserID(r)

	snippets, err := h.service.List(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleGetByID returns one snippet.
//
// HTTP: GET /api/snippets/{id}
func (h *SnippetHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.service.GetByID(r.Context(), mustUserID(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleCreate saves a new snippet.
//
// HTTP: POST /api/snippets
// 201 on success, 409 quota_exceeded when the user is at their limit.
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Create(r.Context(), mustUserID(r), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, saveResponse{Snippet: res.Snippet, Warning: res.Warning})
}

// HandleUpdate replaces a snippet's fields.
//
// HTTP: PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Update(r.Context(), mustUserID(r), r.PathValue("id"), req.input())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, saveResponse{Snippet: res.Snippet, Warning: res.Warning})
}

// HandleDelete removes a snippet and gives back its quota slot.
//
// HTTP: DELETE /api/snippets/{id}
// 204 No Content on success.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mustUserID(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClassify asks the oracle which category a piece of code belongs to.
//
// HTTP: POST /api/classify
//
// An oracle failure is NOT an HTTP error: the response is still 200 with
// category "Other" and the failure in the error field, the same thing a
// save would have done.
func (h *SnippetHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.service.Classify(r.Context(), req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, classifyResponse{Category: res.Category, Error: res.Error})
}

// mustUserID reads the id RequireAuth stored in the context.
// Every caller is mounted behind RequireAuth, so the id is always set there.
func mustUserID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

