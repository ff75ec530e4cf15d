package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/asset"
	"github.com/assetops/asset-management/internal/assignment"
	"github.com/assetops/asset-management/internal/audit"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRepository implements the assignment.Repository interface using GORM
type AssignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository creates a new assignment repository
func NewAssignmentRepository(db *gorm.DB) assignment.Repository {
	return &AssignmentRepository{db: db}
}

// lockForUpdate takes a row lock on dialects that support it. SQLite, used
// in tests, serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Assign runs the custody handover in one transaction. The asset row lock
// serializes concurrent attempts; the checks run in a fixed order so the
// caller always gets the most specific failure.
func (r *AssignmentRepository) Assign(ctx context.Context, a *assignment.Assignment, entry *audit.Entry) (*assignment.AssignResult, error) {
	var result assignment.AssignResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target asset.Asset
		if err := lockForUpdate(tx).
			Where("id = ?", a.AssetID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAssetNotFound
			}
			return err
		}

		if target.IsRetired() {
			return internal.ErrAssetRetired
		}
		if !target.CanBeAssigned() {
			if target.Status == asset.StatusAssigned {
				return internal.ErrAlreadyAssigned
			}
			return internal.ErrAssetUnavailable
		}

		var isActive bool
		row := tx.Raw("SELECT is_active FROM users WHERE id = ?", a.UserID).Row()
		if err := row.Scan(&isActive); err != nil {
			return internal.ErrUserNotFound
		}
		if !isActive {
			return internal.ErrTargetInactive
		}

		var activeCount int64
		if err := tx.Model(&assignment.Assignment{}).
			Where("asset_id = ? AND status = ?", a.AssetID, assignment.StatusActive).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			return internal.ErrAlreadyAssigned
		}

		if err := tx.Create(a).Error; err != nil {
			return err
		}

		if err := tx.Model(&asset.Asset{}).Where("id = ?", a.AssetID).
			Updates(map[string]interface{}{
				"status":     asset.StatusAssigned,
				"updated_at": time.Now(),
			}).Error; err != nil {
			return err
		}

		entry.EntityID = a.ID
		entry.NewValues = a.Snapshot()
		entry.ChangedFields = audit.ChangedFields(nil, entry.NewValues)
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		result.Assignment = a
		result.AssetTag = target.AssetTag
		return nil
	})

	if err != nil {
		return nil, translateAssignmentError(err)
	}
	return &result, nil
}

// Return closes the active assignment for an asset and releases the asset
// back to available, in one transaction.
func (r *AssignmentRepository) Return(ctx context.Context, assetID int64, returnedBy int64, dto assignment.ReturnDTO, entry *audit.Entry) (*assignment.AssignResult, error) {
	var result assignment.AssignResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target asset.Asset
		if err := lockForUpdate(tx).
			Where("id = ?", assetID).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAssetNotFound
			}
			return err
		}

		var a assignment.Assignment
		if err := lockForUpdate(tx).
			Where("asset_id = ? AND status = ?", assetID, assignment.StatusActive).
			First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAssignmentNotFound
			}
			return err
		}

		entry.OldValues = a.Snapshot()

		now := time.Now()
		a.Status = assignment.StatusReturned
		a.ReturnedAt = &now
		a.ReturnedBy = &returnedBy
		a.ReturnNotes = dto.ReturnNotes
		a.ReturnCondition = dto.ReturnCondition
		a.UpdatedAt = now

		if err := tx.Model(&assignment.Assignment{}).Where("id = ?", a.ID).
			Updates(map[string]interface{}{
				"status":           a.Status,
				"returned_at":      a.ReturnedAt,
				"returned_by":      a.ReturnedBy,
				"return_notes":     a.ReturnNotes,
				"return_condition": a.ReturnCondition,
				"updated_at":       a.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		if err := tx.Model(&asset.Asset{}).Where("id = ?", assetID).
			Updates(map[string]interface{}{
				"status":     asset.StatusAvailable,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		entry.EntityID = a.ID
		entry.NewValues = a.Snapshot()
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		result.Assignment = &a
		result.AssetTag = target.AssetTag
		return nil
	})

	if err != nil {
		return nil, translateAssignmentError(err)
	}
	return &result, nil
}

// GetByID retrieves an assignment by its ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id int64) (*assignment.Assignment, error) {
	var a assignment.Assignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetActiveByAssetID retrieves the active assignment for an asset, if any.
func (r *AssignmentRepository) GetActiveByAssetID(ctx context.Context, assetID int64) (*assignment.Assignment, error) {
	var a assignment.Assignment
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND status = ?", assetID, assignment.StatusActive).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAssignmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List retrieves assignments matching the filter with pagination
func (r *AssignmentRepository) List(ctx context.Context, filter assignment.ListFilter) ([]*assignment.Assignment, error) {
	var list []*assignment.Assignment
	query := r.db.WithContext(ctx)

	if filter.AssetID > 0 {
		query = query.Where("asset_id = ?", filter.AssetID)
	}
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	err := query.
		Order("assigned_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&list).Error
	return list, err
}

// translateAssignmentError maps storage-level failures onto the error
// taxonomy. A unique violation on the partial active index means another
// transaction won the race.
func translateAssignmentError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return internal.ErrAlreadyAssigned
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.ErrAlreadyAssigned
	}
	return err
}
