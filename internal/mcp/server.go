// Package mcp exposes the snippet services as Model Context Protocol tools,
// so an agent can list, save and classify snippets on behalf of a user.
//
// The endpoint is mounted behind the same auth middleware as the REST API.
// Every tool reads the user id from the request context; a call without one
// is answered with a tool error.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/service"
)

// Tools holds the services the tool handlers call.
type Tools struct {
	snippets *service.SnippetService
	subs     *service.SubCategoryService
	quota    *service.QuotaService
	logger   *slog.Logger
}

func NewTools(snippets *service.SnippetService, subs *service.SubCategoryService, quota *service.QuotaService, logger *slog.Logger) *Tools {
	return &Tools{snippets: snippets, subs: subs, quota: quota, logger: logger}
}

// NewServer creates an MCP server with one tool per snippet operation.
func NewServer(t *Tools, version string) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer(
		"Snippet Vault",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("list_snippets",
			mcp.WithDescription("List all of the user's saved code snippets, most recently updated first."),
		),
		t.listSnippets,
	)

	s.AddTool(
		mcp.NewTool("get_snippet",
			mcp.WithDescription("Get one snippet by its ID, including the full code."),
			mcp.WithString("id", mcp.Required(), mcp.Description("The snippet ID")),
		),
		t.getSnippet,
	)

	s.AddTool(
		mcp.NewTool("create_snippet",
			mcp.WithDescription("Save a new code snippet. When category is omitted the code is classified automatically. "+
				"Fails when the user has reached their snippet limit; do not retry in that case."),
			mcp.WithString("title", mcp.Required(), mcp.Description("Short title, at most 100 characters")),
			mcp.WithString("code", mcp.Required(), mcp.Description("The code itself")),
			mcp.WithString("description", mcp.Description("Optional: what the snippet does")),
			mcp.WithString("category", mcp.Description("Optional: language or framework, e.g. 'Go', 'React', 'SQL'")),
			mcp.WithString("subCategoryName", mcp.Description("Optional: an existing sub-category of the category")),
		),
		t.createSnippet,
	)

	s.AddTool(
		mcp.NewTool("update_snippet",
			mcp.WithDescription("Edit a snippet. Only the fields passed are changed; the rest keep their current value. "+
				"Pass an empty subCategoryName to remove the sub-category."),
			mcp.WithString("id", mcp.Required(), mcp.Description("The snippet ID")),
			mcp.WithString("title", mcp.Description("New title, at most 100 characters")),
			mcp.WithString("code", mcp.Description("New code")),
			mcp.WithString("description", mcp.Description("New description")),
			mcp.WithString("category", mcp.Description("New language or framework, e.g. 'Go'")),
			mcp.WithString("subCategoryName", mcp.Description("New sub-category of the category")),
		),
		t.updateSnippet,
	)

	s.AddTool(
		mcp.NewTool("delete_snippet",
			mcp.WithDescription("Delete a snippet by ID. This frees one slot of the user's snippet limit."),
			mcp.WithString("id", mcp.Required(), mcp.Description("The snippet ID")),
		),
		t.deleteSnippet,
	)

	s.AddTool(
		mcp.NewTool("list_subcategories",
			mcp.WithDescription("List the user's sub-categories, optionally only those under one category."),
			mcp.WithString("parentCategory", mcp.Description("Optional: e.g. 'React'")),
		),
		t.listSubCategories,
	)

	s.AddTool(
		mcp.NewTool("create_subcategory",
			mcp.WithDescription("Create a sub-category under a category. Returns the existing one if it is already there."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Sub-category name, at most 50 characters")),
			mcp.WithString("parentCategory", mcp.Required(), mcp.Description("The category it belongs to, e.g. 'React'")),
		),
		t.createSubCategory,
	)

	s.AddTool(
		mcp.NewTool("delete_subcategory",
			mcp.WithDescription("Delete a sub-category. Snippets filed under it keep their category and lose the sub-category."),
			mcp.WithString("id", mcp.Required(), mcp.Description("The sub-category ID")),
		),
		t.deleteSubCategory,
	)

	s.AddTool(
		mcp.NewTool("get_quota",
			mcp.WithDescription("Show how many snippets the user has, their limit and how many they can still save."),
		),
		t.getQuota,
	)

	s.AddTool(
		mcp.NewTool("reconcile_quota",
			mcp.WithDescription("Recount the user's snippets and repair the stored counter if it drifted."),
		),
		t.reconcileQuota,
	)

	s.AddTool(
		mcp.NewTool("classify_code",
			mcp.WithDescription("Guess the language or framework of a piece of code without saving it."),
			mcp.WithString("code", mcp.Required(), mcp.Description("The code to classify")),
		),
		t.classifyCode,
	)

	return s
}

// NewHTTPHandler serves s over the streamable HTTP transport. The user id
// RequireAuth put on the request is carried into every tool call.
func NewHTTPHandler(s *mcpserver.MCPServer) http.Handler {
	return mcpserver.NewStreamableHTTPServer(s,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := auth.UserIDFromContext(r.Context()); ok {
				return auth.WithUserID(ctx, id)
			}
			return ctx
		}),
	)
}

func (t *Tools) listSnippets(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}

	snippets, err := t.snippets.List(ctx, userID)
	if err != nil {
		return t.errorResult("list snippets", err), nil
	}
	return jsonResult(snippets), nil
}

func (t *Tools) getSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	snippet, err := t.snippets.GetByID(ctx, userID, id)
	if err != nil {
		return t.errorResult("get snippet", err), nil
	}
	return jsonResult(snippet), nil
}

// createResult mirrors the REST response of POST and PUT /api/snippets.
type createResult struct {
	Snippet any    `json:"snippet"`
	Warning string `json:"warning,omitempty"`
}

func (t *Tools) createSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title is required"), nil
	}
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}

	res, err := t.snippets.Create(ctx, userID, service.SnippetInput{
		Title:           title,
		Code:            code,
		Description:     req.GetString("description", ""),
		Category:        req.GetString("category", ""),
		SubCategoryName: req.GetString("subCategoryName", ""),
	})
	if err != nil {
		return t.errorResult("create snippet", err), nil
	}
	return jsonResult(createResult{Snippet: res.Snippet, Warning: res.Warning}), nil
}

// updateSnippet merges the passed arguments into the stored snippet, since
// SnippetService.Update replaces every field.
func (t *Tools) updateSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	current, err := t.snippets.GetByID(ctx, userID, id)
	if err != nil {
		return t.errorResult("get snippet", err), nil
	}

	in := service.SnippetInput{
		Title:       current.Title,
		Description: current.Description,
		Code:        current.Code,
		Category:    string(current.Category),
	}
	if current.SubCategoryName != nil {
		in.SubCategoryName = *current.SubCategoryName
	}

	args := req.GetArguments()
	for name, field := range map[string]*string{
		"title":           &in.Title,
		"code":            &in.Code,
		"description":     &in.Description,
		"category":        &in.Category,
		"subCategoryName": &in.SubCategoryName,
	} {
		if _, passed := args[name]; passed {
			*field = req.GetString(name, "")
		}
	}

	res, err := t.snippets.Update(ctx, userID, id, in)
	if err != nil {
		return t.errorResult("update snippet", err), nil
	}
	return jsonResult(createResult{Snippet: res.Snippet, Warning: res.Warning}), nil
}

func (t *Tools) deleteSnippet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	if err := t.snippets.Delete(ctx, userID, id); err != nil {
		return t.errorResult("delete snippet", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("snippet %s deleted", id)), nil
}

func (t *Tools) listSubCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}

	subs, err := t.subs.List(ctx, userID, req.GetString("parentCategory", ""))
	if err != nil {
		return t.errorResult("list sub-categories", err), nil
	}
	return jsonResult(subs), nil
}

type subCategoryResult struct {
	SubCategory any  `json:"subCategory"`
	Created     bool `json:"created"`
}

func (t *Tools) createSubCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("name is required"), nil
	}
	parent, err := req.RequireString("parentCategory")
	if err != nil {
		return mcp.NewToolResultError("parentCategory is required"), nil
	}

	res, err := t.subs.Create(ctx, userID, name, parent)
	if err != nil {
		return t.errorResult("create sub-category", err), nil
	}
	return jsonResult(subCategoryResult{SubCategory: res.SubCategory, Created: res.Created}), nil
}

type deleteSubCategoryResult struct {
	Cleared int `json:"cleared"`
}

func (t *Tools) deleteSubCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id is required"), nil
	}

	cleared, err := t.subs.Delete(ctx, userID, id)
	if err != nil {
		return t.errorResult("delete sub-category", err), nil
	}
	return jsonResult(deleteSubCategoryResult{Cleared: cleared}), nil
}

func (t *Tools) getQuota(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}

	usage, err := t.quota.Usage(ctx, userID)
	if err != nil {
		return t.errorResult("get quota", err), nil
	}
	return jsonResult(usage), nil
}

func (t *Tools) reconcileQuota(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return unauthenticated(), nil
	}

	rec, err := t.quota.Reconcile(ctx, userID)
	if err != nil {
		return t.errorResult("reconcile quota", err), nil
	}
	return jsonResult(rec), nil
}

type classifyResult struct {
	Category string `json:"category"`
	Error    string `json:"error,omitempty"`
}

func (t *Tools) classifyCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := auth.UserIDFromContext(ctx); !ok {
		return unauthenticated(), nil
	}
	code, err := req.RequireString("code")
	if err != nil {
		return mcp.NewToolResultError("code is required"), nil
	}

	res, err := t.snippets.Classify(ctx, code)
	if err != nil {
		return t.errorResult("classify code", err), nil
	}
	return jsonResult(classifyResult{Category: string(res.Category), Error: res.Error}), nil
}

// Helper functions

func unauthenticated() *mcp.CallToolResult {
	return mcp.NewToolResultError("authentication required")
}

// errorResult turns a service error into a tool error. Domain errors carry
// a message that is safe to show; anything else is logged and hidden.
func (t *Tools) errorResult(op string, err error) *mcp.CallToolResult {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && !errors.Is(err, apperror.ErrUnavailable) {
		return mcp.NewToolResultError(appErr.Message)
	}

	t.logger.Error("mcp tool failed", slog.String("op", op), slog.String("error", err.Error()))
	if errors.As(err, &appErr) {
		return mcp.NewToolResultError(appErr.Message)
	}
	return mcp.NewToolResultError(fmt.Sprintf("failed to %s", op))
}

func jsonResult(v any) *mcp.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(data))
}
