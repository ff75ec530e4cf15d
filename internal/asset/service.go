package asset

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/assetops/asset-management/internal/auth"
)

// Repository interface defines the data access methods for assets. The
// mutating methods insert the supplied audit entry inside the same storage
// transaction as the change itself, so the trail can never miss a committed
// mutation.
type Repository interface {
	Create(ctx context.Context, a *Asset, tagPrefix string, entry *audit.Entry) error
	GetByID(ctx context.Context, id int64) (*Asset, error)
	List(ctx context.Context, filter ListFilter) ([]*Asset, error)
	UpdateStatus(ctx context.Context, id int64, status string, entry *audit.Entry) (*Asset, error)
	SoftDelete(ctx context.Context, id int64, entry *audit.Entry) error
	AllocateTag(ctx context.Context, tagPrefix, category string, entry *audit.Entry) (*TagAllocation, error)
}

// Service handles asset business logic
type Service struct {
	repo      Repository
	tagPrefix string
	logger    *slog.Logger
}

// NewService creates a new asset service
func NewService(repo Repository, tagPrefix string, logger *slog.Logger) *Service {
	if tagPrefix == "" {
		tagPrefix = "IT"
	}
	return &Service{
		repo:      repo,
		tagPrefix: tagPrefix,
		logger:    logger,
	}
}

// CreateAsset registers a new asset. The tag is allocated from the category
// counter inside the same transaction as the insert, so two concurrent
// creates can never share a tag.
func (s *Service) CreateAsset(ctx context.Context, principal *auth.Principal, dto CreateAssetDTO) (*Asset, error) {
	if !auth.HasRole(principal, auth.RoleAdmin) {
		s.logger.Warn("create asset denied: insufficient role", "user_id", principal.ID, "role", principal.Role)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		s.logger.Error("asset validation failed", "error", err, "user_id", principal.ID)
		return nil, err
	}

	now := time.Now()
	a := &Asset{
		Name:         dto.Name,
		Category:     dto.Category,
		Status:       StatusAvailable,
		SerialNumber: dto.SerialNumber,
		PurchaseDate: dto.PurchaseDate,
		Notes:        dto.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	entry := &audit.Entry{
		Action:     audit.ActionCreate,
		EntityType: audit.EntityAsset,
		ActorID:    principal.ID,
		NewValues:  a.Snapshot(),
		CreatedAt:  now,
	}

	if err := s.repo.Create(ctx, a, s.tagPrefix, entry); err != nil {
		s.logger.Error("failed to create asset", "error", err, "user_id", principal.ID, "category", dto.Category)
		return nil, err
	}

	s.logger.Info("asset created",
		"asset_id", a.ID,
		"asset_tag", a.AssetTag,
		"category", a.Category,
		"actor_id", principal.ID)

	return a, nil
}

// GetAsset retrieves one asset by id.
func (s *Service) GetAsset(ctx context.Context, id int64) (*Asset, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get asset", "error", err, "asset_id", id)
		return nil, err
	}
	return a, nil
}

// ListAssets retrieves assets matching the filter.
func (s *Service) ListAssets(ctx context.Context, filter ListFilter) ([]*Asset, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Status != "" && !ValidStatus(filter.Status) {
		return nil, internal.NewValidationError("unrecognized asset status", internal.ErrCodeInvalidStatus)
	}

	assets, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list assets", "error", err)
		return nil, err
	}
	return assets, nil
}

// NextTag hands out the next unique tag for a category. Any authenticated
// principal may call it; the counter row lock serializes concurrent callers.
func (s *Service) NextTag(ctx context.Context, principal *auth.Principal, category string) (*NextTagResponse, error) {
	if category == "" {
		return nil, internal.NewValidationError("category is required", internal.ErrCodeInvalidCategory)
	}

	entry := &audit.Entry{
		Action:     audit.ActionAllocateTag,
		EntityType: audit.EntityCounter,
		ActorID:    principal.ID,
		CreatedAt:  time.Now(),
	}

	allocation, err := s.repo.AllocateTag(ctx, s.tagPrefix, category, entry)
	if err != nil {
		s.logger.Error("tag allocation failed", "error", err, "category", category, "actor_id", principal.ID)
		return nil, err
	}

	s.logger.Info("tag allocated",
		"asset_tag", allocation.Tag,
		"category", allocation.Category,
		"number", allocation.Number,
		"actor_id", principal.ID)

	return &NextTagResponse{
		AssetTag:   allocation.Tag,
		NextNumber: allocation.Number,
		Category:   allocation.Category,
	}, nil
}

// UpdateStatus moves an asset through the maintenance workflow. The status
// invariant is enforced under the asset row lock: an asset with an active
// assignment can only move to lost or stolen, which also closes the
// assignment.
func (s *Service) UpdateStatus(ctx context.Context, principal *auth.Principal, id int64, dto UpdateStatusDTO) (*Asset, error) {
	if !auth.HasRole(principal, auth.RoleManager) {
		s.logger.Warn("update asset status denied: insufficient role", "user_id", principal.ID, "asset_id", id)
		return nil, internal.ErrInsufficientRole
	}

	if err := dto.Validate(); err != nil {
		return nil, internal.NewValidationError(err.Error(), internal.ErrCodeInvalidStatus)
	}

	entry := &audit.Entry{
		Action:      audit.ActionUpdate,
		EntityType:  audit.EntityAsset,
		EntityID:    id,
		ActorID:     principal.ID,
		Description: fmt.Sprintf("status changed to %s", dto.Status),
		CreatedAt:   time.Now(),
	}
	if dto.Notes != "" {
		entry.Description = fmt.Sprintf("%s: %s", entry.Description, dto.Notes)
	}

	a, err := s.repo.UpdateStatus(ctx, id, dto.Status, entry)
	if err != nil {
		s.logger.Error("failed to update asset status", "error", err, "asset_id", id, "status", dto.Status)
		return nil, err
	}

	s.logger.Info("asset status updated",
		"asset_id", a.ID,
		"asset_tag", a.AssetTag,
		"status", a.Status,
		"actor_id", principal.ID)

	return a, nil
}

// DeleteAsset soft-deletes an asset. Assets holding an active assignment
// cannot be deleted.
func (s *Service) DeleteAsset(ctx context.Context, principal *auth.Principal, id int64) error {
	if !auth.HasRole(principal, auth.RoleAdmin) {
		s.logger.Warn("delete asset denied: insufficient role", "user_id", principal.ID, "asset_id", id)
		return internal.ErrInsufficientRole
	}

	entry := &audit.Entry{
		Action:     audit.ActionDelete,
		EntityType: audit.EntityAsset,
		EntityID:   id,
		ActorID:    principal.ID,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.SoftDelete(ctx, id, entry); err != nil {
		s.logger.Error("failed to delete asset", "error", err, "asset_id", id)
		return err
	}

	s.logger.Info("asset deleted", "asset_id", id, "actor_id", principal.ID)
	return nil
}
