// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// In a well-structured Go web app, code is organised into three layers:
//
//	Handler (HTTP / MCP)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// The services in this package never see an *http.Request. The same
// SnippetService backs the REST handlers, the MCP tools and the tests.
//
// THE DEPENDENCY CHAIN:
//
//	main.go creates:  Store → Services → Handlers
//	At runtime:       Handler calls Service calls Repository calls Store
//
// DEPENDENCY INJECTION:
// Every service takes interfaces (repository.SnippetRepository, quota.Policy,
// classifier.Classifier, ...) rather than concrete types. Tests pass fakes or
// gomock mocks; main.go passes SQLite or MongoDB, Redis or a no-op cache,
// RabbitMQ or a no-op publisher.
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
	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/repository"
)

// Validation constants.
// Limits are counted in characters (runes), except code which is counted
// in bytes.
const (
	MaxTitleLength           = 100
	MaxDescriptionLength     = 500
	MaxCodeLength            = 100000 // ~100KB of code
	MaxSubCategoryNameLength = 100
)

// ClassificationWarning is attached to a save whose category had to fall
// back to "Other" because the oracle could not answer.
const ClassificationWarning = "Automatic classification failed, the snippet was saved as Other."

// SnippetInput is the full payload of a create or update.
//
// Category is optional: when empty the code is sent to the classifier.
// NewSubCategoryName creates the sub-category on the fly (if it does not
// exist yet) and assigns it. It requires a manual Category.
type SnippetInput struct {
	Title              string
	Description        string
	Code               string
	Category           string
	SubCategoryName    string
	NewSubCategoryName string
}

// SaveResult is what Create and Update return. Warning is non-empty when the
// save succeeded but something non-fatal went wrong along the way.
type SaveResult struct {
	Snippet *model.Snippet
	Warning string
}

// Classification is the result of a standalone classify call. Error carries
// the oracle failure, in which case Category is "Other".
type Classification struct {
	Category model.Category
	Error    string
}

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	snippets   repository.SnippetRepository
	subs       repository.SubCategoryRepository
	policy     quota.Policy
	classifier classifier.Classifier
	lists      cache.SnippetLists
	publisher  events.Publisher
	logger     *slog.Logger
}

// NewSnippetService wires a SnippetService. Pass cache.Nop{} and events.Nop{}
// when Redis or RabbitMQ are not configured.
func NewSnippetService(
	snippets repository.SnippetRepository,
	subs repository.SubCategoryRepository,
	policy quota.Policy,
	cls classifier.Classifier,
	lists cache.SnippetLists,
	publisher events.Publisher,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		snippets:   snippets,
		subs:       subs,
		policy:     policy,
		classifier: cls,
		lists:      lists,
		publisher:  publisher,
		logger:     logger,
	}
}

// Create validates, classifies and saves a new snippet under the user's quota.
//
// THE ORDER MATTERS:
//  1. Validate the payload (no store access yet)
//  2. Pick the category: manual wins, otherwise ask the oracle
//  3. Resolve the user's quota tier and insert inside one transaction
//  4. Only after the commit: create the inline sub-category, drop the
//     cached list and publish the event
//
// If the user is at the limit, step 3 fails with apperror.ErrQuotaExceeded
// and nothing at all has been written.
func (s *SnippetService) Create(ctx context.Context, userID string, in SnippetInput) (*SaveResult, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	draft, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	draft.snippet.UserID = userID

	tier := s.policy.Resolve(userID)
	if err := s.snippets.CreateWithinQuota(ctx, draft.snippet, tier.Limit); err != nil {
		if errors.Is(err, apperror.ErrQuotaExceeded) {
			s.logger.Info("snippet quota reached",
				slog.String("user_id", userID),
				slog.String("tier", tier.Name),
				slog.Int("limit", tier.Limit),
			)
			return nil, err
		}
		s.logger.Error("failed to create snippet",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	warning := joinWarnings(draft.warning, s.ensureInlineSubCategory(ctx, draft.snippet, draft.newSub))

	s.lists.InvalidateSnippets(ctx, userID)
	s.publish(ctx, events.SnippetCreated, userID, draft.snippet.ID)

	s.logger.Info("snippet created",
		slog.String("id", draft.snippet.ID),
		slog.String("user_id", userID),
		slog.String("category", string(draft.snippet.Category)),
	)

	return &SaveResult{Snippet: draft.snippet, Warning: warning}, nil
}

// Update replaces every mutable field of an existing snippet.
// There is no quota check: the number of snippets does not change.
func (s *SnippetService) Update(ctx context.Context, userID, id string, in SnippetInput) (*SaveResult, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	draft, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	draft.snippet.ID = id
	draft.snippet.UserID = userID

	if err := s.snippets.Update(ctx, draft.snippet); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	warning := joinWarnings(draft.warning, s.ensureInlineSubCategory(ctx, draft.snippet, draft.newSub))

	s.lists.InvalidateSnippets(ctx, userID)
	s.publish(ctx, events.SnippetUpdated, userID, id)

	s.logger.Info("snippet updated",
		slog.String("id", id),
		slog.String("user_id", userID),
	)

	return &SaveResult{Snippet: draft.snippet, Warning: warning}, nil
}

// GetByID retrieves one of the user's snippets.
// Returns apperror.ErrNotFound if it doesn't exist or belongs to someone else.
func (s *SnippetService) GetByID(ctx context.Context, userID, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}

	// NotFound is a normal answer, so it is returned as-is and not logged.
	return s.snippets.GetByID(ctx, userID, id)
}

// List returns every snippet of the user, most recently updated first.
//
// CACHE-THROUGH READ:
// The list is served from the cache when present. On a miss it is read from
// the store and written back under the generation seen before the read.
// Every mutation of the user's snippets (and every sub-category cascade)
// moves the user to a new generation, so a write-back that raced a mutation
// is never served.
func (s *SnippetService) List(ctx context.Context, userID string) ([]model.Snippet, error) {
	cached, generation, ok := s.lists.GetSnippets(ctx, userID)
	if ok {
		return cached, nil
	}

	snippets, err := s.snippets.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list snippets",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing snippets: %w", err)
	}

	s.lists.SetSnippets(ctx, userID, generation, snippets)
	return snippets, nil
}

// Delete removes a snippet and releases one unit of quota.
// Returns apperror.ErrNotFound if the snippet doesn't exist; the counter is
// untouched in that case.
func (s *SnippetService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "snippet ID is required")
	}

	if err := s.snippets.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting snippet: %w", err)
	}

	s.lists.InvalidateSnippets(ctx, userID)
	s.publish(ctx, events.SnippetDeleted, userID, id)

	s.logger.Info("snippet deleted", slog.String("id", id), slog.String("user_id", userID))
	return nil
}

// Classify asks the oracle about a piece of code without saving anything.
// Only invalid input is returned as an error; an oracle failure is reported
// inside the Classification next to the "Other" fallback.
func (s *SnippetService) Classify(ctx context.Context, code string) (*Classification, error) {
	if err := validateCode(code); err != nil {
		return nil, err
	}

	category, err := s.classify(ctx, code)
	if err != nil {
		return &Classification{Category: model.CategoryOther, Error: err.Error()}, nil
	}
	return &Classification{Category: category}, nil
}

// draft is a validated snippet that has not been stored yet.
type draft struct {
	snippet *model.Snippet
	newSub  string
	warning string
}

// prepare validates the input and resolves the category.
func (s *SnippetService) prepare(ctx context.Context, in SnippetInput) (*draft, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperror.ValidationFailed("title", "snippet title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("snippet title must be %d characters or less", MaxTitleLength))
	}

	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	if err := validateCode(in.Code); err != nil {
		return nil, err
	}

	subName := strings.TrimSpace(in.SubCategoryName)
	newSub := strings.TrimSpace(in.NewSubCategoryName)
	if utf8.RuneCountInString(subName) > MaxSubCategoryNameLength {
		return nil, apperror.ValidationFailed("subCategoryName",
			fmt.Sprintf("sub-category name must be %d characters or less", MaxSubCategoryNameLength))
	}

	d := &draft{snippet: &model.Snippet{
		Title:       title,
		Description: description,
		Code:        in.Code,
	}}

	manual := strings.TrimSpace(in.Category)
	if manual != "" {
		category, err := model.ParseCategory(manual)
		if err != nil {
			return nil, apperror.ValidationFailed("category", err.Error())
		}
		d.snippet.Category = category
	}

	if newSub != "" {
		if manual == "" {
			return nil, apperror.ValidationFailed("newSubCategoryName",
				"a category must be selected to create a sub-category")
		}
		if err := validateSubCategoryName(newSub); err != nil {
			return nil, err
		}
		// the new label replaces any existing selection
		subName = newSub
		d.newSub = newSub
	}
	d.snippet.SubCategoryName = model.StringPtr(subName)

	// MANUAL CATEGORY ALWAYS WINS:
	// The oracle is only consulted when the user left the category empty.
	if manual == "" {
		category, err := s.classify(ctx, in.Code)
		if err != nil {
			s.logger.Warn("classification failed, falling back to Other",
				slog.String("error", err.Error()),
			)
			category = model.CategoryOther
			d.warning = ClassificationWarning
		}
		d.snippet.Category = category
	}

	return d, nil
}

// classify calls the oracle and rejects answers outside the oracle subset.
func (s *SnippetService) classify(ctx context.Context, code string) (model.Category, error) {
	category, err := s.classifier.Classify(ctx, code)
	if err != nil {
		return "", err
	}
	matched, ok := model.MatchClassifiable(string(category))
	if !ok {
		return "", fmt.Errorf("%w: %q", classifier.ErrUnrecognisedLabel, category)
	}
	return matched, nil
}

// ensureInlineSubCategory creates the sub-category named in the payload.
// It runs after the snippet is stored; a failure is reported as a warning
// because the snippet already carries the name.
func (s *SnippetService) ensureInlineSubCategory(ctx context.Context, snippet *model.Snippet, name string) string {
	if name == "" {
		return ""
	}

	sub := &model.SubCategory{
		UserID:         snippet.UserID,
		Name:           name,
		ParentCategory: snippet.Category,
	}
	created, err := s.subs.CreateIfAbsent(ctx, sub)
	if err != nil {
		s.logger.Error("failed to create inline sub-category",
			slog.String("user_id", snippet.UserID),
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		return fmt.Sprintf("The sub-category %q could not be created.", name)
	}
	if created {
		s.logger.Info("sub-category created inline",
			slog.String("id", sub.ID),
			slog.String("user_id", snippet.UserID),
		)
	}
	return ""
}

// publish sends an event after the commit. Failures are logged and dropped.
func (s *SnippetService) publish(ctx context.Context, t events.Type, userID, snippetID string) {
	event := events.New(t, userID)
	event.SnippetID = snippetID
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("type", string(t)),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed("code", "code is required")
	}
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}
	return nil
}

func joinWarnings(warnings ...string) string {
	var parts []string
	for _, w := range warnings {
		if w != "" {
			parts = append(parts, w)
		}
	}
	return strings.Join(parts, " ")
}
