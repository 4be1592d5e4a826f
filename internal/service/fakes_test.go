package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// WHY HAND-WRITTEN FAKES?
// The repositories have real behaviour the services depend on (a counter
// that moves with inserts and deletes, a cascade that rewrites snippets).
// A small in-memory implementation shows exactly what that behaviour is.
// Collaborators that are just "called or not" (classifier, publisher) use
// gomock instead, see internal/mock.

// fakeStore implements SnippetRepository, QuotaRepository and
// SubCategoryRepository on maps.
type fakeStore struct {
	mu       sync.Mutex
	snippets map[string]*model.Snippet
	counters map[string]int
	subs     map[string]*model.SubCategory
	nextID   int

	// set to a non-nil error to simulate a database failure
	createErr error
	listErr   error
	subErr    error

	listCalls int

	// afterList runs once the rows are read, outside the lock, to interleave
	// another operation with a List.
	afterList func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snippets: make(map[string]*model.Snippet),
		counters: make(map[string]int),
		subs:     make(map[string]*model.SubCategory),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateWithinQuota(_ context.Context, s *model.Snippet, limit int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if f.counters[s.UserID] >= limit {
		return apperror.QuotaExceeded(limit)
	}
	s.ID = f.id("snip")
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	stored := *s
	f.snippets[s.ID] = &stored
	f.counters[s.UserID]++
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, userID, id string) (*model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snippets[id]
	if !ok || s.UserID != userID {
		return nil, apperror.NotFound("snippet", id)
	}
	result := *s
	return &result, nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]model.Snippet, error) {
	result, err := f.listByUser(userID)
	if err == nil && f.afterList != nil {
		hook := f.afterList
		f.afterList = nil
		hook()
	}
	return result, err
}

func (f *fakeStore) listByUser(userID string) ([]model.Snippet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	result := []model.Snippet{}
	for _, s := range f.snippets {
		if s.UserID == userID {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (f *fakeStore) Update(_ context.Context, s *model.Snippet) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.snippets[s.ID]
	if !ok || existing.UserID != s.UserID {
		return apperror.NotFound("snippet", s.ID)
	}
	s.CreatedAt = existing.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	stored := *s
	f.snippets[s.ID] = &stored
	return nil
}

func (f *fakeStore) Delete(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.snippets[id]
	if !ok || s.UserID != userID {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	if n, ok := f.counters[userID]; ok {
		f.counters[userID] = max(0, n-1)
	}
	return nil
}

func (f *fakeStore) SnippetCount(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[userID], nil
}

func (f *fakeStore) RecountSnippets(_ context.Context, userID string) (*model.Reconciliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actual := 0
	for _, s := range f.snippets {
		if s.UserID == userID {
			actual++
		}
	}
	recorded := f.counters[userID]
	f.counters[userID] = actual
	return &model.Reconciliation{
		UserID:    userID,
		Recorded:  recorded,
		Actual:    actual,
		Corrected: recorded != actual,
	}, nil
}

func (f *fakeStore) CreateIfAbsent(_ context.Context, sub *model.SubCategory) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return false, f.subErr
	}
	for _, existing := range f.subs {
		if existing.UserID == sub.UserID && existing.ParentCategory == sub.ParentCategory && existing.Name == sub.Name {
			*sub = *existing
			return false, nil
		}
	}
	sub.ID = f.id("sub")
	sub.CreatedAt = time.Now().UTC()
	stored := *sub
	f.subs[sub.ID] = &stored
	return true, nil
}

func (f *fakeStore) List(_ context.Context, userID string, parent model.Category) ([]model.SubCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := []model.SubCategory{}
	for _, s := range f.subs {
		if s.UserID == userID && (parent == "" || s.ParentCategory == parent) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ParentCategory != result[j].ParentCategory {
			return result[i].ParentCategory < result[j].ParentCategory
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (f *fakeStore) DeleteCascade(_ context.Context, userID, id string) (*model.SubCategory, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[id]
	if !ok || sub.UserID != userID {
		return nil, 0, apperror.NotFound("sub-category", id)
	}
	delete(f.subs, id)

	cleared := 0
	for _, s := range f.snippets {
		if s.UserID == userID && s.Category == sub.ParentCategory &&
			s.SubCategoryName != nil && *s.SubCategoryName == sub.Name {
			s.SubCategoryName = nil
			cleared++
		}
	}
	return sub, cleared, nil
}

// fakeLists is an in-memory cache.SnippetLists with the same generation
// rules as the Redis cache. It records invalidations.
type fakeLists struct {
	mu          sync.Mutex
	generations map[string]int64
	entries     map[string][]model.Snippet // keyed by user and generation
	invalidated []string
}

func newFakeLists() *fakeLists {
	return &fakeLists{
		generations: make(map[string]int64),
		entries:     make(map[string][]model.Snippet),
	}
}

func listKey(userID string, gen int64) string {
	return fmt.Sprintf("%s:%d", userID, gen)
}

func (c *fakeLists) GetSnippets(_ context.Context, userID string) ([]model.Snippet, int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generations[userID]
	s, ok := c.entries[listKey(userID, gen)]
	return s, gen, ok
}

func (c *fakeLists) SetSnippets(_ context.Context, userID string, gen int64, snippets []model.Snippet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[listKey(userID, gen)] = snippets
}

func (c *fakeLists) InvalidateSnippets(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[userID]++
	c.invalidated = append(c.invalidated, userID)
}

// fakeChangelogRepo is an in-memory repository.ChangelogRepository.
type fakeChangelogRepo struct {
	entries map[string]*model.ChangelogEntry
	nextID  int
}

func newFakeChangelogRepo() *fakeChangelogRepo {
	return &fakeChangelogRepo{entries: make(map[string]*model.ChangelogEntry)}
}

func (f *fakeChangelogRepo) Create(_ context.Context, e *model.ChangelogEntry) error {
	f.nextID++
	e.ID = fmt.Sprintf("log-%d", f.nextID)
	e.CreatedAt = time.Now().UTC()
	e.UpdatedAt = e.CreatedAt
	stored := *e
	f.entries[e.ID] = &stored
	return nil
}

func (f *fakeChangelogRepo) Update(_ context.Context, e *model.ChangelogEntry) error {
	existing, ok := f.entries[e.ID]
	if !ok {
		return apperror.NotFound("changelog", e.ID)
	}
	e.CreatedAt = existing.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	stored := *e
	f.entries[e.ID] = &stored
	return nil
}

func (f *fakeChangelogRepo) Delete(_ context.Context, id string) error {
	if _, ok := f.entries[id]; !ok {
		return apperror.NotFound("changelog", id)
	}
	delete(f.entries, id)
	return nil
}

func (f *fakeChangelogRepo) GetByID(_ context.Context, id string) (*model.ChangelogEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, apperror.NotFound("changelog", id)
	}
	result := *e
	return &result, nil
}

func (f *fakeChangelogRepo) List(context.Context) ([]model.ChangelogEntry, error) {
	result := make([]model.ChangelogEntry, 0, len(f.entries))
	for _, e := range f.entries {
		result = append(result, *e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
