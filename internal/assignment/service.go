package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/core/events"
)

// AssignResult carries the committed assignment together with the asset tag
// resolved inside the transaction, so callers do not re-read the asset.
type AssignResult struct {
	Assignment *Assignment
	AssetTag   string
}

// Repository interface defines the data access methods for assignments.
// Assign and Return run the full custody transition in one transaction: the
// asset row is locked, preconditions checked in order, both rows updated and
// the audit entry inserted, or nothing commits at all.
type Repository interface {
	Assign(ctx context.Context, a *Assignment, entry *audit.Entry) (*AssignResult, error)
	Return(ctx context.Context, assetID int64, returnedBy int64, dto ReturnDTO, entry *audit.Entry) (*AssignResult, error)
	GetByID(ctx context.Context, id int64) (*Assignment, error)
	GetActiveByAssetID(ctx context.Context, assetID int64) (*Assignment, error)
	List(ctx context.Context, filter ListFilter) ([]*Assignment, error)
}

// EventPublisher publishes domain events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Service handles assignment business logic
type Service struct {
	repo     Repository
	eventBus EventPublisher
	logger   *slog.Logger
}

// NewService creates a new assignment service
func NewService(repo Repository, eventBus EventPublisher, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		eventBus: eventBus,
		logger:   logger,
	}
}

// Assign hands the asset to a user. Requires manager role or above. The
// availability and single-holder checks happen inside the repository
// transaction, under the asset row lock.
func (s *Service) Assign(ctx context.Context, principal *auth.Principal, assetID int64, dto AssignDTO) (*AssignmentResponse, error) {
	if !auth.HasRole(principal, auth.RoleManager) {
		s.logger.Warn("assign denied: insufficient role", "user_id", principal.ID, "asset_id", assetID)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	now := time.Now()
	a := &Assignment{
		AssetID:          assetID,
		UserID:           dto.UserID,
		Status:           StatusActive,
		AssignedAt:       now,
		ExpectedReturnAt: dto.ExpectedReturnAt,
		AssignedBy:       principal.ID,
		Purpose:          dto.Purpose,
		Notes:            dto.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	entry := &audit.Entry{
		Action:      audit.ActionAssign,
		EntityType:  audit.EntityAssignment,
		ActorID:     principal.ID,
		Description: fmt.Sprintf("asset %d assigned to user %d", assetID, dto.UserID),
		CreatedAt:   now,
	}

	result, err := s.repo.Assign(ctx, a, entry)
	if err != nil {
		s.logger.Error("failed to assign asset",
			"error", err,
			"asset_id", assetID,
			"target_user_id", dto.UserID,
			"actor_id", principal.ID)
		return nil, err
	}

	s.logger.Info("asset assigned",
		"assignment_id", result.Assignment.ID,
		"asset_id", assetID,
		"asset_tag", result.AssetTag,
		"user_id", dto.UserID,
		"actor_id", principal.ID)

	if s.eventBus != nil {
		event := events.NewAssetAssignedEvent(
			result.Assignment.ID, assetID, result.AssetTag,
			dto.UserID, principal.ID, dto.ExpectedReturnAt)
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish assignment event", "error", err, "assignment_id", result.Assignment.ID)
		}
	}

	return NewAssignmentResponse(result.Assignment, now), nil
}

// Return takes the asset back, resolving the active assignment by asset id.
// Requires manager role or above.
func (s *Service) Return(ctx context.Context, principal *auth.Principal, assetID int64, dto ReturnDTO) (*AssignmentResponse, error) {
	if !auth.HasRole(principal, auth.RoleManager) {
		s.logger.Warn("return denied: insufficient role", "user_id", principal.ID, "asset_id", assetID)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeValidationFailed)
	}

	now := time.Now()
	entry := &audit.Entry{
		Action:      audit.ActionReturn,
		EntityType:  audit.EntityAssignment,
		ActorID:     principal.ID,
		Description: fmt.Sprintf("asset %d returned", assetID),
		CreatedAt:   now,
	}

	result, err := s.repo.Return(ctx, assetID, principal.ID, dto, entry)
	if err != nil {
		s.logger.Error("failed to return asset", "error", err, "asset_id", assetID, "actor_id", principal.ID)
		return nil, err
	}

	wasOverdue := result.Assignment.ExpectedReturnAt != nil &&
		result.Assignment.ReturnedAt != nil &&
		result.Assignment.ReturnedAt.After(*result.Assignment.ExpectedReturnAt)

	s.logger.Info("asset returned",
		"assignment_id", result.Assignment.ID,
		"asset_id", assetID,
		"asset_tag", result.AssetTag,
		"user_id", result.Assignment.UserID,
		"was_overdue", wasOverdue,
		"actor_id", principal.ID)

	if s.eventBus != nil {
		event := events.NewAssetReturnedEvent(
			result.Assignment.ID, assetID, result.AssetTag,
			result.Assignment.UserID, principal.ID, dto.ReturnCondition, wasOverdue)
		if err := s.eventBus.Publish(ctx, event); err != nil {
			s.logger.Error("failed to publish return event", "error", err, "assignment_id", result.Assignment.ID)
		}
	}

	return NewAssignmentResponse(result.Assignment, now), nil
}

// GetAssignment retrieves one assignment by id.
func (s *Service) GetAssignment(ctx context.Context, id int64) (*AssignmentResponse, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get assignment", "error", err, "assignment_id", id)
		return nil, err
	}
	return NewAssignmentResponse(a, time.Now()), nil
}

// ListAssignments retrieves assignments matching the filter.
func (s *Service) ListAssignments(ctx context.Context, filter ListFilter) ([]*AssignmentResponse, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list assignments", "error", err)
		return nil, err
	}

	now := time.Now()
	responses := make([]*AssignmentResponse, 0, len(list))
	for _, a := range list {
		responses = append(responses, NewAssignmentResponse(a, now))
	}
	return responses, nil
}
