package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/cache"
	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/repository"
)

const MaxSubCategoryLabelLength = 50

// SubCategoryResult tells the caller whether Create inserted a new record
// or found an identical one. Transports use it to pick 201 or 200.
type SubCategoryResult struct {
	SubCategory *model.SubCategory
	Created     bool
}

// SubCategoryService manages user-defined labels under a fixed category.
type SubCategoryService struct {
	repo      repository.SubCategoryRepository
	lists     cache.SnippetLists
	publisher events.Publisher
	logger    *slog.Logger
}

func NewSubCategoryService(
	repo repository.SubCategoryRepository,
	lists cache.SnippetLists,
	publisher events.Publisher,
	logger *slog.Logger,
) *SubCategoryService {
	return &SubCategoryService{
		repo:      repo,
		lists:     lists,
		publisher: publisher,
		logger:    logger,
	}
}

// Create adds a sub-category unless the user already has one with the same
// name under the same parent. The match is exact and case-sensitive.
func (s *SubCategoryService) Create(ctx context.Context, userID, name, parent string) (*SubCategoryResult, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	name = strings.TrimSpace(name)
	if err := validateSubCategoryName(name); err != nil {
		return nil, err
	}
	category, err := model.ParseCategory(parent)
	if err != nil {
		return nil, apperror.ValidationFailed("parentCategory", err.Error())
	}

	sub := &model.SubCategory{
		UserID:         userID,
		Name:           name,
		ParentCategory: category,
	}
	created, err := s.repo.CreateIfAbsent(ctx, sub)
	if err != nil {
		s.logger.Error("failed to create sub-category",
			slog.String("user_id", userID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating sub-category: %w", err)
	}

	if created {
		s.logger.Info("sub-category created",
			slog.String("id", sub.ID),
			slog.String("user_id", userID),
			slog.String("parent", string(category)),
		)
	}
	return &SubCategoryResult{SubCategory: sub, Created: created}, nil
}

// List returns the user's sub-categories, optionally filtered by parent.
// An empty parent means "all of them".
func (s *SubCategoryService) List(ctx context.Context, userID, parent string) ([]model.SubCategory, error) {
	var category model.Category
	if parent = strings.TrimSpace(parent); parent != "" {
		c, err := model.ParseCategory(parent)
		if err != nil {
			return nil, apperror.ValidationFailed("parentCategory", err.Error())
		}
		category = c
	}

	subs, err := s.repo.List(ctx, userID, category)
	if err != nil {
		s.logger.Error("failed to list sub-categories",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing sub-categories: %w", err)
	}
	return subs, nil
}

// Delete removes a sub-category and clears it from every snippet that used
// it, all in one transaction. It returns how many snippets were cleared.
func (s *SubCategoryService) Delete(ctx context.Context, userID, id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, apperror.ValidationFailed("id", "sub-category ID is required")
	}

	sub, cleared, err := s.repo.DeleteCascade(ctx, userID, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return 0, err
		}
		s.logger.Error("failed to delete sub-category",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("deleting sub-category: %w", err)
	}

	// The cached list only goes stale when the cascade rewrote snippets.
	if cleared > 0 {
		s.lists.InvalidateSnippets(ctx, userID)
	}

	event := events.New(events.SubCategoryDeleted, userID)
	event.SubCategoryID = sub.ID
	event.Cleared = cleared
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("type", string(event.Type)),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("sub-category deleted",
		slog.String("id", sub.ID),
		slog.String("user_id", userID),
		slog.Int("cleared", cleared),
	)
	return cleared, nil
}

func validateSubCategoryName(name string) error {
	if name == "" {
		return apperror.ValidationFailed("name", "sub-category name is required")
	}
	if utf8.RuneCountInString(name) > MaxSubCategoryLabelLength {
		return apperror.ValidationFailed("name",
			fmt.Sprintf("sub-category name must be %d characters or less", MaxSubCategoryLabelLength))
	}
	return nil
}
