package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/repository/sqlite"
)

// =========================================================================
// END-TO-END SCENARIOS ON A REAL STORE
// =========================================================================
//
// These run the services against in-memory SQLite instead of fakes, so the
// transactional guarantees (quota check, cascade) are the real ones.

type sqliteServices struct {
	db       *sqlite.DB
	snippets *SnippetService
	subs     *SubCategoryService
	quota    *QuotaService
}

func newSQLiteServices(t *testing.T, policy quota.Policy) *sqliteServices {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := discardLogger()
	return &sqliteServices{
		db:       db,
		snippets: NewSnippetService(db, db, policy, classifier.Disabled{}, cache.Nop{}, events.Nop{}, logger),
		subs:     NewSubCategoryService(db, cache.Nop{}, events.Nop{}, logger),
		quota:    NewQuotaService(db, policy, logger),
	}
}

func TestScenario_DefaultUserAt39(t *testing.T) {
	env := newSQLiteServices(t, quota.NewAllowListPolicy(40, 75, nil))
	ctx := context.Background()

	for i := 0; i < 39; i++ {
		_, err := env.snippets.Create(ctx, "u1", manual("seed", model.CategoryGo))
		require.NoError(t, err)
	}

	_, err := env.snippets.Create(ctx, "u1", manual("fortieth", model.CategoryGo))
	require.NoError(t, err)
	usage, err := env.quota.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, usage.Count)

	_, err = env.snippets.Create(ctx, "u1", manual("forty-first", model.CategoryGo))
	assert.EqualError(t, err, "You have reached the maximum limit of 40 snippets.")

	usage, err = env.quota.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 40, usage.Count, "a rejected insert writes nothing")
}

func TestScenario_ElevatedUserAt74(t *testing.T) {
	env := newSQLiteServices(t, quota.NewAllowListPolicy(40, 75, []string{"vip"}))
	ctx := context.Background()

	for i := 0; i < 74; i++ {
		_, err := env.snippets.Create(ctx, "vip", manual("seed", model.CategoryGo))
		require.NoError(t, err)
	}

	_, err := env.snippets.Create(ctx, "vip", manual("seventy-fifth", model.CategoryGo))
	require.NoError(t, err)

	_, err = env.snippets.Create(ctx, "vip", manual("seventy-sixth", model.CategoryGo))
	limit, ok := apperror.LimitOf(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, 75, limit)
}

func TestScenario_ConcurrentCreatesRespectTheLimit(t *testing.T) {
	env := newSQLiteServices(t, quota.PolicyFunc(func(string) model.QuotaTier {
		return model.QuotaTier{Name: "tiny", Limit: 5}
	}))
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, full int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.snippets.Create(ctx, "u1", manual("race", model.CategoryGo))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, apperror.ErrQuotaExceeded):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 15, full)

	rec, err := env.quota.Reconcile(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Corrected, "counter matches the real count")
	assert.Equal(t, 5, rec.Actual)
}

func TestScenario_HooksCascade(t *testing.T) {
	env := newSQLiteServices(t, quota.NewAllowListPolicy(40, 75, nil))
	ctx := context.Background()

	hooks, err := env.subs.Create(ctx, "u1", "Hooks", "React")
	require.NoError(t, err)

	var ids []string
	for _, title := range []string{"useFetch", "useDebounce", "useToggle"} {
		in := manual(title, model.CategoryReact)
		in.SubCategoryName = "Hooks"
		res, err := env.snippets.Create(ctx, "u1", in)
		require.NoError(t, err)
		ids = append(ids, res.Snippet.ID)
	}

	before := time.Now().UTC()
	cleared, err := env.subs.Delete(ctx, "u1", hooks.SubCategory.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, cleared)

	for _, id := range ids {
		got, err := env.snippets.GetByID(ctx, "u1", id)
		require.NoError(t, err)
		assert.Nil(t, got.SubCategoryName)
		assert.False(t, got.UpdatedAt.Before(before), "updatedAt is refreshed by the cascade")
	}

	react, err := env.subs.List(ctx, "u1", "React")
	require.NoError(t, err)
	assert.Empty(t, react)
}

// The oracle here would say JavaScript; a manual Python must survive both
// create and update.
func TestScenario_ManualPythonIsNeverOverridden(t *testing.T) {
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alwaysJS := classifierFunc(func(context.Context, string) (model.Category, error) {
		return model.CategoryJavaScript, nil
	})
	policy := quota.NewAllowListPolicy(40, 75, nil)
	svc := NewSnippetService(db, db, policy, alwaysJS, cache.Nop{}, events.Nop{}, discardLogger())
	ctx := context.Background()

	in := SnippetInput{Title: "arrow", Code: "const f = () => 1;", Category: "Python"}
	res, err := svc.Create(ctx, "u1", in)
	require.NoError(t, err)

	_, err = svc.Update(ctx, "u1", res.Snippet.ID, in)
	require.NoError(t, err)

	got, err := svc.GetByID(ctx, "u1", res.Snippet.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPython, got.Category)
}

type classifierFunc func(ctx context.Context, code string) (model.Category, error)

func (f classifierFunc) Classify(ctx context.Context, code string) (model.Category, error) {
	return f(ctx, code)
}
