package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/repository"
)

// QuotaService reports and repairs the per-user snippet counter.
//
// The counter is maintained by the snippet repository inside the insert and
// delete transactions. This service never touches it on the hot path: Usage
// only reads it, and Reconcile is an explicit, separate repair operation.
type QuotaService struct {
	repo   repository.QuotaRepository
	policy quota.Policy
	logger *slog.Logger
}

func NewQuotaService(repo repository.QuotaRepository, policy quota.Policy, logger *slog.Logger) *QuotaService {
	return &QuotaService{repo: repo, policy: policy, logger: logger}
}

// Tier resolves the user's quota tier without touching the store.
func (s *QuotaService) Tier(userID string) model.QuotaTier {
	return s.policy.Resolve(userID)
}

// Usage reads the counter against the user's tier.
func (s *QuotaService) Usage(ctx context.Context, userID string) (*model.QuotaUsage, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	count, err := s.repo.SnippetCount(ctx, userID)
	if err != nil {
		s.logger.Error("failed to read snippet counter",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("reading quota: %w", err)
	}

	tier := s.policy.Resolve(userID)
	return &model.QuotaUsage{
		Count:     count,
		Limit:     tier.Limit,
		Remaining: max(0, tier.Limit-count),
		Tier:      tier,
	}, nil
}

// Reconcile recounts the user's snippets and overwrites the counter.
func (s *QuotaService) Reconcile(ctx context.Context, userID string) (*model.Reconciliation, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	rec, err := s.repo.RecountSnippets(ctx, userID)
	if err != nil {
		s.logger.Error("failed to reconcile snippet counter",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("reconciling quota: %w", err)
	}

	s.logger.Info("snippet counter reconciled",
		slog.String("user_id", userID),
		slog.Int("recorded", rec.Recorded),
		slog.Int("actual", rec.Actual),
		slog.Bool("corrected", rec.Corrected),
	)
	return rec, nil
}
