// Package cache keeps derived data in Redis.
//
// Two things are cached:
//   - each user's snippet list, invalidated by every snippet or sub-category
//     mutation of that user
//   - a per-user list generation, bumped by every invalidation
//   - oracle answers, keyed by the SHA-256 of the classified code
//
// The cache is never a source of truth. Every failure is logged and treated
// as a miss, so a Redis outage only costs latency.
package cache

import (
	"context"

	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/model"
)

// SnippetLists caches ListByUser results.
//
// GENERATIONS:
// A list is stored under the generation that was current when the read
// started. InvalidateSnippets moves the user to a new generation, so a list
// read from the store before a mutation but written after it lands under a
// generation nobody looks up any more.
//
//	gen := Get      (miss, generation 7)
//	                          Create commits, InvalidateSnippets → 8
//	ListByUser      (old rows)
//	Set(gen 7)      → dead entry, the next Get looks at generation 8
//
// GetSnippets returns the generation on a miss too; pass it unchanged to
// SetSnippets. A negative generation means the cache could not tell, and
// SetSnippets ignores it.
type SnippetLists interface {
	GetSnippets(ctx context.Context, userID string) (snippets []model.Snippet, generation int64, ok bool)
	SetSnippets(ctx context.Context, userID string, generation int64, snippets []model.Snippet)
	InvalidateSnippets(ctx context.Context, userID string)
}

// Nop disables caching. It satisfies SnippetLists and classifier.ResultCache.
type Nop struct{}

var (
	_ SnippetLists           = Nop{}
	_ classifier.ResultCache = Nop{}
)

func (Nop) GetSnippets(context.Context, string) ([]model.Snippet, int64, bool) { return nil, -1, false }

func (Nop) SetSnippets(context.Context, string, int64, []model.Snippet) {}

func (Nop) InvalidateSnippets(context.Context, string) {}

func (Nop) GetClassification(context.Context, string) (model.Category, bool) { return "", false }

func (Nop) SetClassification(context.Context, string, model.Category) {}
