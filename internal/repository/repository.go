// Package repository declares the storage contracts used by the services.
//
// Two backends implement them: repository/sqlite (default, embedded) and
// repository/mongo. Every method is scoped by user id where the data is
// per-user, so one user can never read or mutate another user's rows.
package repository

import (
	"context"

	"github.com/sakif/snippet-vault/internal/model"
)

// SnippetRepository persists snippets together with the per-user quota
// counter. Create and Delete touch both inside one transaction.
type SnippetRepository interface {
	// CreateWithinQuota reads the user's counter, fails with
	// apperror.QuotaExceeded(limit) when count >= limit, and otherwise inserts
	// the snippet and increments (or initialises to 1) the counter.
	CreateWithinQuota(ctx context.Context, snippet *model.Snippet, limit int) error
	GetByID(ctx context.Context, userID, id string) (*model.Snippet, error)
	// ListByUser returns every snippet of the user, most recently updated first.
	ListByUser(ctx context.Context, userID string) ([]model.Snippet, error)
	// Update replaces the mutable fields and refreshes UpdatedAt.
	Update(ctx context.Context, snippet *model.Snippet) error
	// Delete removes the snippet and decrements the counter, clamped at zero.
	// A missing counter is left missing.
	Delete(ctx context.Context, userID, id string) error
}

// QuotaRepository reads and repairs the denormalised snippet counter.
type QuotaRepository interface {
	// SnippetCount returns the counter value, 0 when it does not exist yet.
	SnippetCount(ctx context.Context, userID string) (int, error)
	// RecountSnippets overwrites the counter with the real number of snippets.
	RecountSnippets(ctx context.Context, userID string) (*model.Reconciliation, error)
}

// SubCategoryRepository manages user-defined labels.
type SubCategoryRepository interface {
	// CreateIfAbsent inserts sub unless (user, parent, name) already exists.
	// On return sub holds the stored record; created reports which case ran.
	CreateIfAbsent(ctx context.Context, sub *model.SubCategory) (created bool, err error)
	// List returns the user's sub-categories. An empty parent lists all of
	// them ordered by parent then name; otherwise only that parent, by name.
	List(ctx context.Context, userID string, parent model.Category) ([]model.SubCategory, error)
	// DeleteCascade deletes the sub-category and clears SubCategoryName on every
	// snippet of the user that references it, in one transaction. It returns
	// the deleted record and how many snippets were cleared.
	DeleteCascade(ctx context.Context, userID, id string) (*model.SubCategory, int, error)
}

type UserRepository interface {
	// Create inserts a password account. Duplicate emails yield apperror.Conflict.
	Create(ctx context.Context, user *model.User) error
	// Upsert creates or refreshes the account bound to user.GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type ChangelogRepository interface {
	Create(ctx context.Context, entry *model.ChangelogEntry) error
	Update(ctx context.Context, entry *model.ChangelogEntry) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.ChangelogEntry, error)
	// List returns entries newest first.
	List(ctx context.Context) ([]model.ChangelogEntry, error)
}
