package user

import (
	"context"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/google/uuid"
)

// RunBulk applies one operation to many users sequentially. A failing item
// never stops the batch: its error is captured and the runner moves on. The
// whole batch is summarized in a single audit entry keyed by a batch id.
func (s *Service) RunBulk(ctx context.Context, principal *auth.Principal, dto BulkOperationDTO) (*BulkResult, error) {
	if !auth.HasRole(principal, auth.RoleAdmin) {
		s.logger.Warn("bulk operation denied: insufficient role", "actor_id", principal.ID)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	if len(dto.UserIDs) > s.bulkBatchSize {
		return nil, internal.NewValidationError(
			"batch exceeds the maximum size", internal.ErrCodeBatchTooLarge)
	}

	result := &BulkResult{
		BatchID:        uuid.New().String(),
		Operation:      dto.Operation,
		TotalRequested: len(dto.UserIDs),
		Errors:         []BulkItemError{},
	}

	s.logger.Info("bulk operation started",
		"batch_id", result.BatchID,
		"operation", dto.Operation,
		"total", result.TotalRequested,
		"actor_id", principal.ID)

	for _, id := range dto.UserIDs {
		err := s.applyBulkItem(ctx, principal, dto, id)
		result.Processed++
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, BulkItemError{ID: id, Error: bulkItemMessage(err)})
			s.logger.Warn("bulk item failed",
				"batch_id", result.BatchID,
				"user_id", id,
				"error", err)
			continue
		}
		result.SuccessfulCount++
	}

	summary := &audit.Entry{
		Action:     audit.ActionBulk,
		EntityType: audit.EntityBulkBatch,
		ActorID:    principal.ID,
		NewValues: audit.JSONMap{
			"batch_id":         result.BatchID,
			"operation":        result.Operation,
			"total_requested":  result.TotalRequested,
			"successful_count": result.SuccessfulCount,
			"failed_count":     result.FailedCount,
		},
		Description: "bulk user operation " + dto.Operation,
		CreatedAt:   time.Now(),
	}
	if err := s.auditor.Record(ctx, summary); err != nil {
		s.logger.Error("failed to record bulk summary", "error", err, "batch_id", result.BatchID)
	}

	s.logger.Info("bulk operation finished",
		"batch_id", result.BatchID,
		"successful", result.SuccessfulCount,
		"failed", result.FailedCount)

	return result, nil
}

func (s *Service) applyBulkItem(ctx context.Context, principal *auth.Principal, dto BulkOperationDTO, id int64) error {
	switch dto.Operation {
	case BulkOpDeactivate:
		_, err := s.Deactivate(ctx, principal, id)
		return err
	case BulkOpActivate:
		_, err := s.Activate(ctx, principal, id)
		return err
	case BulkOpChangeRole:
		_, err := s.ChangeRole(ctx, principal, id, ChangeRoleDTO{Role: dto.Data["role"]})
		return err
	default:
		return internal.NewValidationError("unrecognized bulk operation", internal.ErrCodeValidationFailed)
	}
}

// bulkItemMessage keeps per-item errors readable for API consumers.
func bulkItemMessage(err error) string {
	if appErr, ok := internal.IsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
