package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
	"github.com/sakif/snippet-vault/internal/quota"
	"github.com/sakif/snippet-vault/internal/repository"
)

const MaxVersionLength = 20

// ChangelogInput is the payload of a changelog create or update.
type ChangelogInput struct {
	Version string
	Date    string
	Changes []string
}

// ChangelogService serves the public release notes. Reading is open to
// everyone; writing is reserved to users the quota policy marks privileged.
type ChangelogService struct {
	repo   repository.ChangelogRepository
	policy quota.Policy
	logger *slog.Logger
}

func NewChangelogService(repo repository.ChangelogRepository, policy quota.Policy, logger *slog.Logger) *ChangelogService {
	return &ChangelogService{repo: repo, policy: policy, logger: logger}
}

// List returns every entry, newest first.
func (s *ChangelogService) List(ctx context.Context) ([]model.ChangelogEntry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list changelog", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing changelog: %w", err)
	}
	return entries, nil
}

func (s *ChangelogService) Create(ctx context.Context, userID string, in ChangelogInput) (*model.ChangelogEntry, error) {
	if err := s.requirePrivileged(userID); err != nil {
		return nil, err
	}
	entry, err := buildChangelogEntry(in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to create changelog entry",
			slog.String("version", entry.Version),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating changelog entry: %w", err)
	}

	s.logger.Info("changelog entry created",
		slog.String("id", entry.ID),
		slog.String("version", entry.Version),
		slog.String("by", userID),
	)
	return entry, nil
}

func (s *ChangelogService) Update(ctx context.Context, userID, id string, in ChangelogInput) (*model.ChangelogEntry, error) {
	if err := s.requirePrivileged(userID); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "changelog ID is required")
	}
	entry, err := buildChangelogEntry(in)
	if err != nil {
		return nil, err
	}
	entry.ID = id

	if err := s.repo.Update(ctx, entry); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update changelog entry",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating changelog entry: %w", err)
	}

	s.logger.Info("changelog entry updated", slog.String("id", id), slog.String("by", userID))
	return entry, nil
}

func (s *ChangelogService) Delete(ctx context.Context, userID, id string) error {
	if err := s.requirePrivileged(userID); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "changelog ID is required")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to delete changelog entry",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("deleting changelog entry: %w", err)
	}

	s.logger.Info("changelog entry deleted", slog.String("id", id), slog.String("by", userID))
	return nil
}

func (s *ChangelogService) requirePrivileged(userID string) error {
	if userID == "" {
		return apperror.Unauthorized("authentication required")
	}
	if !s.policy.Resolve(userID).Privileged {
		return apperror.Forbidden("only privileged users can edit the changelog")
	}
	return nil
}

func buildChangelogEntry(in ChangelogInput) (*model.ChangelogEntry, error) {
	version := strings.TrimSpace(in.Version)
	if version == "" {
		return nil, apperror.ValidationFailed("version", "version is required")
	}
	if utf8.RuneCountInString(version) > MaxVersionLength {
		return nil, apperror.ValidationFailed("version",
			fmt.Sprintf("version must be %d characters or less", MaxVersionLength))
	}

	date := strings.TrimSpace(in.Date)
	if date == "" {
		return nil, apperror.ValidationFailed("date", "date is required")
	}

	changes := make([]string, 0, len(in.Changes))
	for _, c := range in.Changes {
		if c = strings.TrimSpace(c); c != "" {
			changes = append(changes, c)
		}
	}
	if len(changes) == 0 {
		return nil, apperror.ValidationFailed("changes", "at least one change is required")
	}

	return &model.ChangelogEntry{
		Version: version,
		Date:    date,
		Changes: changes,
	}, nil
}
