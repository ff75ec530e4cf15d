package audit

import (
	"context"
	"log/slog"
	"time"
)

// Repository interface defines the data access methods for audit entries.
// There is deliberately no update or delete.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	History(ctx context.Context, entityType string, entityID int64, limit, offset int) ([]*Entry, error)
}

// Service is the append-only audit trail.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new audit service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// Record appends one entry to the trail. Used for mutations that are not
// already composed into a storage transaction; transactional callers insert
// entries through their own repository so the entry commits with the change.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	if entry.Action == "" || entry.EntityType == "" {
		return ErrEntryInvalid
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ChangedFields == nil && (entry.OldValues != nil || entry.NewValues != nil) {
		entry.ChangedFields = ChangedFields(entry.OldValues, entry.NewValues)
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry",
			"error", err,
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID)
		return err
	}

	return nil
}

// History returns the entries for one entity, oldest first.
func (s *Service) History(ctx context.Context, entityType string, entityID int64, limit, offset int) ([]*Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.History(ctx, entityType, entityID, limit, offset)
	if err != nil {
		s.logger.Error("failed to query audit history",
			"error", err,
			"entity_type", entityType,
			"entity_id", entityID)
		return nil, err
	}

	return entries, nil
}
