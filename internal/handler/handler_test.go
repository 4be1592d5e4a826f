package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sakif/snippet-vault/internal/auth"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/handler"
	"github.com/sakif/snippet-vault/internal/mock"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/repository/sqlite"
	"github.com/sakif/snippet-vault/internal/service"
)

// testEnv is a router with real services over in-memory SQLite. Only the
// classifier is mocked. Requests carry the caller in an X-Test-User header
// instead of a JWT, so these tests stay about the handlers.
type testEnv struct {
	router     http.Handler
	classifier *mock.MockClassifier
}

func newTestEnv(t *testing.T, policy quota.Policy) *testEnv {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cls := mock.NewMockClassifier(gomock.NewController(t))

	snippets := handler.NewSnippetHandler(
		service.NewSnippetService(db, db, policy, cls, cache.Nop{}, events.Nop{}, logger), logger)
	subs := handler.NewSubCategoryHandler(service.NewSubCategoryService(db, cache.Nop{}, events.Nop{}, logger), logger)
	quotas := handler.NewQuotaHandler(service.NewQuotaService(db, policy, logger), logger)
	changelogs := handler.NewChangelogHandler(service.NewChangelogService(db.Changelogs(), policy, logger), logger)

	r := chi.NewRouter()
	r.Get("/api/changelogs", changelogs.HandleList)
	r.Group(func(r chi.Router) {
		r.Use(testUser)
		r.Get("/api/snippets", snippets.HandleList)
		r.Post("/api/snippets", snippets.HandleCreate)
		r.Get("/api/snippets/{id}", snippets.HandleGetByID)
		r.Put("/api/snippets/{id}", snippets.HandleUpdate)
		r.Delete("/api/snippets/{id}", snippets.HandleDelete)
		r.Post("/api/classify", snippets.HandleClassify)
		r.Get("/api/quota", quotas.HandleUsage)
		r.Post("/api/quota/reconcile", quotas.HandleReconcile)
		r.Get("/api/subcategories", subs.HandleList)
		r.Post("/api/subcategories", subs.HandleCreate)
		r.Delete("/api/subcategories/{id}", subs.HandleDelete)
		r.Post("/api/changelogs", changelogs.HandleCreate)
		r.Put("/api/changelogs/{id}", changelogs.HandleUpdate)
		r.Delete("/api/changelogs/{id}", changelogs.HandleDelete)
	})

	return &testEnv{router: r, classifier: cls}
}

func testUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(auth.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	req := jsonRequest(t, method, path, body)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

// jsonRequest builds a request whose body is body encoded as JSON, or body
// itself when it is a string (for malformed input).
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

type saveBody struct {
	Snippet model.Snippet `json:"snippet"`
	Warning string        `json:"warning"`
}

func defaultPolicy() quota.Policy {
	return quota.NewAllowListPolicy(40, 75, []string{"admin"})
}

// =========================================================================
// SNIPPETS
// =========================================================================

func TestSnippetHandler_CreateWithManualCategory(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	rr := env.do(t, http.MethodPost, "/api/snippets", "u1", map[string]string{
		"title": "hello", "code": "print('hi')", "category": "Python",
	})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	got := decode[saveBody](t, rr)
	assert.NotEmpty(t, got.Snippet.ID)
	assert.Equal(t, model.CategoryPython, got.Snippet.Category)
	assert.Equal(t, "u1", got.Snippet.UserID)
	assert.Empty(t, got.Warning)
}

func TestSnippetHandler_CreateFallsBackToOther(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	env.classifier.EXPECT().Classify(gomock.Any(), "x := 1").Return(model.Category(""), errors.New("oracle down"))

	rr := env.do(t, http.MethodPost, "/api/snippets", "u1", map[string]string{"title": "t", "code": "x := 1"})

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	got := decode[saveBody](t, rr)
	assert.Equal(t, model.CategoryOther, got.Snippet.Category)
	assert.Equal(t, service.ClassificationWarning, got.Warning)
}

func TestSnippetHandler_QuotaExceeded(t *testing.T) {
	env := newTestEnv(t, quota.PolicyFunc(func(string) model.QuotaTier {
		return model.QuotaTier{Name: "tiny", Limit: 1}
	}))
	body := map[string]string{"title": "t", "code": "c", "category": "Go"}

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/snippets", "u1", body).Code)

	rr := env.do(t, http.MethodPost, "/api/snippets", "u1", body)
	assert.Equal(t, http.StatusConflict, rr.Code)
	got := decode[handler.ErrorResponse](t, rr)
	assert.Equal(t, "quota_exceeded", got.Error)
	assert.Equal(t, "You have reached the maximum limit of 1 snippets.", got.Message)
}

func TestSnippetHandler_ValidationErrors(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	tests := []struct {
		name string
		body any
	}{
		{"invalid JSON", `{"title":`},
		{"missing title", map[string]string{"code": "c"}},
		{"missing code", map[string]string{"title": "t"}},
		{"long title", map[string]string{"title": strings.Repeat("t", 101), "code": "c"}},
		{"unknown category", map[string]string{"title": "t", "code": "c", "category": "Cobol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/snippets", "u1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decode[handler.ErrorResponse](t, rr).Error)
		})
	}
}

func TestSnippetHandler_GetUpdateDelete(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	created := decode[saveBody](t, env.do(t, http.MethodPost, "/api/snippets", "u1",
		map[string]string{"title": "t", "code": "c", "category": "Go"}))
	id := created.Snippet.ID

	rr := env.do(t, http.MethodGet, "/api/snippets/"+id, "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "t", decode[model.Snippet](t, rr).Title)

	// another user cannot see it
	rr = env.do(t, http.MethodGet, "/api/snippets/"+id, "u2", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/snippets/"+id, "u1",
		map[string]string{"title": "renamed", "code": "c2", "category": "Rust"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[saveBody](t, rr)
	assert.Equal(t, "renamed", updated.Snippet.Title)
	assert.Equal(t, model.CategoryRust, updated.Snippet.Category)

	rr = env.do(t, http.MethodGet, "/api/snippets", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.Snippet](t, rr), 1)

	rr = env.do(t, http.MethodDelete, "/api/snippets/"+id, "u1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = env.do(t, http.MethodDelete, "/api/snippets/"+id, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSnippetHandler_Classify(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	t.Run("recognised", func(t *testing.T) {
		env.classifier.EXPECT().Classify(gomock.Any(), "SELECT 1").Return(model.CategorySQL, nil)

		rr := env.do(t, http.MethodPost, "/api/classify", "u1", map[string]string{"code": "SELECT 1"})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"category":"SQL"}`, rr.Body.String())
	})

	t.Run("oracle failure is not an HTTP error", func(t *testing.T) {
		env.classifier.EXPECT().Classify(gomock.Any(), "???").Return(model.Category(""), errors.New("timeout"))

		rr := env.do(t, http.MethodPost, "/api/classify", "u1", map[string]string{"code": "???"})
		require.Equal(t, http.StatusOK, rr.Code)
		got := decode[map[string]string](t, rr)
		assert.Equal(t, "Other", got["category"])
		assert.NotEmpty(t, got["error"])
	})

	t.Run("empty code", func(t *testing.T) {
		rr := env.do(t, http.MethodPost, "/api/classify", "u1", map[string]string{"code": ""})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

// =========================================================================
// QUOTA
// =========================================================================

func TestQuotaHandler(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	for i := 0; i < 3; i++ {
		rr := env.do(t, http.MethodPost, "/api/snippets", "u1", map[string]string{"title": "t", "code": "c", "category": "Go"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/quota", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	usage := decode[model.QuotaUsage](t, rr)
	assert.Equal(t, 3, usage.Count)
	assert.Equal(t, 40, usage.Limit)
	assert.Equal(t, 37, usage.Remaining)

	rr = env.do(t, http.MethodGet, "/api/quota", "admin", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 75, decode[model.QuotaUsage](t, rr).Limit)

	rr = env.do(t, http.MethodPost, "/api/quota/reconcile", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rec := decode[model.Reconciliation](t, rr)
	assert.Equal(t, 3, rec.Actual)
	assert.False(t, rec.Corrected)
}

// =========================================================================
// SUB-CATEGORIES
// =========================================================================

func TestSubCategoryHandler_CreateIfAbsent(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	body := map[string]string{"name": "Hooks", "parentCategory": "React"}

	rr := env.do(t, http.MethodPost, "/api/subcategories", "u1", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	first := decode[model.SubCategory](t, rr)

	rr = env.do(t, http.MethodPost, "/api/subcategories", "u1", body)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, first.ID, decode[model.SubCategory](t, rr).ID)

	rr = env.do(t, http.MethodPost, "/api/subcategories", "u1", map[string]string{"name": "Hooks", "parentCategory": "Reactive"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSubCategoryHandler_ListAndCascadeDelete(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())

	hooks := decode[model.SubCategory](t, env.do(t, http.MethodPost, "/api/subcategories", "u1",
		map[string]string{"name": "Hooks", "parentCategory": "React"}))
	env.do(t, http.MethodPost, "/api/subcategories", "u1", map[string]string{"name": "Grid", "parentCategory": "CSS"})

	for _, title := range []string{"useFetch", "useDebounce", "useToggle"} {
		rr := env.do(t, http.MethodPost, "/api/snippets", "u1", map[string]string{
			"title": title, "code": "c", "category": "React", "subCategoryName": "Hooks",
		})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/subcategories?parentCategory=React", "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.SubCategory](t, rr), 1)

	rr = env.do(t, http.MethodGet, "/api/subcategories", "u1", nil)
	assert.Len(t, decode[[]model.SubCategory](t, rr), 2)

	rr = env.do(t, http.MethodDelete, "/api/subcategories/"+hooks.ID, "u1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"cleared":3}`, rr.Body.String())

	for _, s := range decode[[]model.Snippet](t, env.do(t, http.MethodGet, "/api/snippets", "u1", nil)) {
		assert.Nil(t, s.SubCategoryName, "snippet %s still points at a deleted sub-category", s.Title)
	}

	rr = env.do(t, http.MethodDelete, "/api/subcategories/"+hooks.ID, "u1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// CHANGELOG
// =========================================================================

func TestChangelogHandler(t *testing.T) {
	env := newTestEnv(t, defaultPolicy())
	body := map[string]any{"version": "1.0.0", "date": "January 2025", "changes": []string{"First release"}}

	rr := env.do(t, http.MethodPost, "/api/changelogs", "someone", body)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "forbidden", decode[handler.ErrorResponse](t, rr).Error)

	rr = env.do(t, http.MethodPost, "/api/changelogs", "admin", body)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	entry := decode[model.ChangelogEntry](t, rr)

	body["version"] = "1.0.1"
	rr = env.do(t, http.MethodPut, "/api/changelogs/"+entry.ID, "admin", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "1.0.1", decode[model.ChangelogEntry](t, rr).Version)

	// reading needs no user
	rr = env.do(t, http.MethodGet, "/api/changelogs", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]model.ChangelogEntry](t, rr), 1)

	rr = env.do(t, http.MethodDelete, "/api/changelogs/"+entry.ID, "admin", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/changelogs", "admin", map[string]any{"version": "2", "date": "d", "changes": []string{}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =========================================================================
// HEALTH
// =========================================================================

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		ping   error
		status int
		body   string
	}{
		{"store reachable", nil, http.StatusOK, `{"status":"ok"}`},
		{"store down", errors.New("connection refused"), http.StatusServiceUnavailable, `{"status":"unavailable"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(pingerFunc(func(ctx context.Context) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.ping
			}), logger)

			rr := httptest.NewRecorder()
			h.HandleHealth(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.status, rr.Code)
			assert.JSONEq(t, tt.body, rr.Body.String())
		})
	}
}
