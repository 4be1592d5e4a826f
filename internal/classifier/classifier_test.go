package classifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/model"
)

type stubClassifier struct {
	category model.Category
	err      error
	calls    int
}

func (s *stubClassifier) Classify(context.Context, string) (model.Category, error) {
	s.calls++
	return s.category, s.err
}

type mapCache map[string]model.Category

func (m mapCache) GetClassification(_ context.Context, code string) (model.Category, bool) {
	c, ok := m[code]
	return c, ok
}

func (m mapCache) SetClassification(_ context.Context, code string, category model.Category) {
	m[code] = category
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Classify(context.Background(), "print(1)")
	assert.True(t, errors.Is(err, ErrOracleDisabled))
}

func TestCached_HitSkipsOracle(t *testing.T) {
	next := &stubClassifier{category: model.CategoryPython}
	cache := mapCache{}
	c := NewCached(next, cache, discard())

	for i := 0; i < 3; i++ {
		got, err := c.Classify(context.Background(), "print(1)")
		require.NoError(t, err)
		assert.Equal(t, model.CategoryPython, got)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCached_FailuresAreNotCached(t *testing.T) {
	next := &stubClassifier{err: errors.New("timeout")}
	cache := mapCache{}
	c := NewCached(next, cache, discard())

	_, err := c.Classify(context.Background(), "x")
	require.Error(t, err)
	_, err = c.Classify(context.Background(), "x")
	require.Error(t, err)

	assert.Equal(t, 2, next.calls)
	assert.Empty(t, cache)
}
