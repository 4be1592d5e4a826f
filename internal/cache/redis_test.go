package cache

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestCache(t *testing.T) (*Redis, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	return NewRedis(client, time.Minute, time.Hour, discard()), mock
}

func TestSnippets_RoundTrip(t *testing.T) {
	c, mock := newTestCache(t)
	ctx := context.Background()

	snippets := []model.Snippet{{
		ID:        "s1",
		UserID:    "u1",
		Title:     "hello",
		Code:      "print(1)",
		Category:  model.CategoryPython,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	payload, err := json.Marshal(snippets)
	require.NoError(t, err)

	mock.ExpectGet("snippets:gen:u1").SetVal("3")
	mock.ExpectGet("snippets:list:u1:3").RedisNil()
	_, gen, ok := c.GetSnippets(ctx, "u1")
	require.False(t, ok)
	require.Equal(t, int64(3), gen)

	mock.ExpectSet("snippets:list:u1:3", string(payload), time.Minute).SetVal("OK")
	c.SetSnippets(ctx, "u1", gen, snippets)

	mock.ExpectGet("snippets:gen:u1").SetVal("3")
	mock.ExpectGet("snippets:list:u1:3").SetVal(string(payload))
	got, _, ok := c.GetSnippets(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, snippets, got)
}

func TestGetSnippets_NeverInvalidatedUserIsGenerationZero(t *testing.T) {
	c, mock := newTestCache(t)

	mock.ExpectGet("snippets:gen:u1").RedisNil()
	mock.ExpectGet("snippets:list:u1:0").RedisNil()
	_, gen, ok := c.GetSnippets(context.Background(), "u1")
	assert.False(t, ok)
	assert.Zero(t, gen)
}

func TestGetSnippets_ErrorIsMiss(t *testing.T) {
	c, mock := newTestCache(t)

	mock.ExpectGet("snippets:gen:u1").SetErr(errors.New("connection refused"))
	_, gen, ok := c.GetSnippets(context.Background(), "u1")
	assert.False(t, ok)
	assert.Negative(t, gen, "an unknown generation must not be written back")

	// SetSnippets with that generation does not touch Redis; the mock
	// would fail on an unexpected SET.
	c.SetSnippets(context.Background(), "u1", gen, []model.Snippet{})
}

func TestGetSnippets_CorruptEntryIsEvicted(t *testing.T) {
	c, mock := newTestCache(t)

	mock.ExpectGet("snippets:gen:u1").SetVal("1")
	mock.ExpectGet("snippets:list:u1:1").SetVal("{not json")
	mock.ExpectDel("snippets:list:u1:1").SetVal(1)

	_, _, ok := c.GetSnippets(context.Background(), "u1")
	assert.False(t, ok)
}

func TestInvalidateSnippets(t *testing.T) {
	c, mock := newTestCache(t)

	mock.ExpectIncr("snippets:gen:u1").SetVal(1)
	c.InvalidateSnippets(context.Background(), "u1")
}

// A read that misses, then loses the race against a mutation, writes its
// list under the old generation. The next read must not see it.
func TestSnippets_WriteBackAfterInvalidationIsNotServed(t *testing.T) {
	c, mock := newTestCache(t)
	ctx := context.Background()

	// List: miss at generation 0, then reads the store.
	mock.ExpectGet("snippets:gen:u1").RedisNil()
	mock.ExpectGet("snippets:list:u1:0").RedisNil()
	_, gen, ok := c.GetSnippets(ctx, "u1")
	require.False(t, ok)

	// Create commits and invalidates in between.
	mock.ExpectIncr("snippets:gen:u1").SetVal(1)
	c.InvalidateSnippets(ctx, "u1")

	// List finishes with its now stale rows.
	stale, err := json.Marshal([]model.Snippet{})
	require.NoError(t, err)
	mock.ExpectSet("snippets:list:u1:0", string(stale), time.Minute).SetVal("OK")
	c.SetSnippets(ctx, "u1", gen, []model.Snippet{})

	// The next List looks at generation 1 and goes to the store.
	mock.ExpectGet("snippets:gen:u1").SetVal("1")
	mock.ExpectGet("snippets:list:u1:1").RedisNil()
	_, gen, ok = c.GetSnippets(ctx, "u1")
	assert.False(t, ok)
	assert.Equal(t, int64(1), gen)
}

func TestClassification(t *testing.T) {
	c, mock := newTestCache(t)
	ctx := context.Background()
	key := classificationKey("SELECT 1")

	mock.ExpectGet(key).RedisNil()
	_, ok := c.GetClassification(ctx, "SELECT 1")
	assert.False(t, ok)

	mock.ExpectSet(key, "SQL", time.Hour).SetVal("OK")
	c.SetClassification(ctx, "SELECT 1", model.CategorySQL)

	mock.ExpectGet(key).SetVal("SQL")
	got, ok := c.GetClassification(ctx, "SELECT 1")
	assert.True(t, ok)
	assert.Equal(t, model.CategorySQL, got)
}

func TestClassificationKey_IsStableAndOpaque(t *testing.T) {
	a := classificationKey("code")
	assert.Equal(t, a, classificationKey("code"))
	assert.NotEqual(t, a, classificationKey("code "))
	assert.NotContains(t, a, "code")
}

func TestNop(t *testing.T) {
	var n Nop
	_, _, ok := n.GetSnippets(context.Background(), "u")
	assert.False(t, ok)
	_, ok = n.GetClassification(context.Background(), "x")
	assert.False(t, ok)
}
