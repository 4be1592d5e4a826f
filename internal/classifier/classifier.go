// Package classifier defines the code classification oracle contract.
//
// Callers treat every error as "could not classify": the snippet service
// falls back to model.CategoryOther and reports a warning instead of
// failing the save.
package classifier

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/model"
)

//go:generate mockgen -destination=../mock/classifier.go -package=mock github.com/sakif/snippet-vault/internal/classifier Classifier

// Classifier labels a piece of code with one of model.ClassifiableCategories.
type Classifier interface {
	Classify(ctx context.Context, code string) (model.Category, error)
}

var (
	// ErrOracleDisabled is returned when no oracle is configured.
	ErrOracleDisabled = errors.New("classification oracle is not configured")
	// ErrUnrecognisedLabel is returned when the oracle answers outside
	// model.ClassifiableCategories.
	ErrUnrecognisedLabel = errors.New("classification oracle returned an unrecognised label")
)

// Disabled is the Classifier used when the oracle has no credentials.
type Disabled struct{}

func (Disabled) Classify(context.Context, string) (model.Category, error) {
	return "", ErrOracleDisabled
}

// ResultCache stores oracle answers keyed by the code they were computed for.
// Lookups never fail: a broken cache is a miss.
type ResultCache interface {
	GetClassification(ctx context.Context, code string) (model.Category, bool)
	SetClassification(ctx context.Context, code string, category model.Category)
}

// Cached serves repeated classifications of identical code from a cache.
// Only successful answers are stored.
type Cached struct {
	next   Classifier
	cache  ResultCache
	logger *slog.Logger
}

func NewCached(next Classifier, cache ResultCache, logger *slog.Logger) *Cached {
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Classify(ctx context.Context, code string) (model.Category, error) {
	if category, ok := c.cache.GetClassification(ctx, code); ok {
		c.logger.Debug("classification cache hit", slog.String("category", string(category)))
		return category, nil
	}

	category, err := c.next.Classify(ctx, code)
	if err != nil {
		return "", err
	}
	c.cache.SetClassification(ctx, code, category)
	return category, nil
}
