// Package worker holds background event handlers.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/events"
	"github.com/sakif/snippet-vault/internal/model"
)

// QuotaReconciler is satisfied by *service.QuotaService.
type QuotaReconciler interface {
	Reconcile(ctx context.Context, userID string) (*model.Reconciliation, error)
}

// Reconcile recounts a user's snippets whenever one is created or deleted,
// repairing any drift between the counter and the snippet set.
type Reconcile struct {
	quota  QuotaReconciler
	logger *slog.Logger
}

func NewReconcile(quota QuotaReconciler, logger *slog.Logger) *Reconcile {
	return &Reconcile{quota: quota, logger: logger}
}

// Handle has the rabbitmq.Handler signature. Events that cannot change the
// count are acknowledged without work.
func (w *Reconcile) Handle(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.SnippetCreated, events.SnippetDeleted:
	default:
		return nil
	}

	rec, err := w.quota.Reconcile(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("reconciling %s: %w", event.UserID, err)
	}

	if rec.Corrected {
		w.logger.Warn("snippet counter drift corrected",
			slog.String("user_id", rec.UserID),
			slog.Int("recorded", rec.Recorded),
			slog.Int("actual", rec.Actual),
			slog.String("trigger", string(event.Type)),
		)
	}
	return nil
}
