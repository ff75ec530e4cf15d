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

// AssetRepository implements the asset.Repository interface using GORM
type AssetRepository struct {
	db *gorm.DB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *gorm.DB) asset.Repository {
	return &AssetRepository{db: db}
}

// lockForUpdate takes a row lock on dialects that support it. SQLite, used
// in tests, serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// Create inserts a new asset, allocating its tag from the category counter
// in the same transaction. Either both rows commit or neither does.
func (r *AssetRepository) Create(ctx context.Context, a *asset.Asset, tagPrefix string, entry *audit.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocation, err := allocateTag(tx, tagPrefix, a.Category)
		if err != nil {
			return err
		}
		a.AssetTag = allocation.Tag

		if err := tx.Create(a).Error; err != nil {
			return err
		}

		entry.EntityID = a.ID
		if entry.NewValues == nil {
			entry.NewValues = a.Snapshot()
		} else {
			entry.NewValues["asset_tag"] = a.AssetTag
		}
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		return tx.Create(entry).Error
	})

	return translateAssetError(err)
}

// GetByID retrieves an asset by its ID
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*asset.Asset, error) {
	var a asset.Asset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrAssetNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List retrieves assets matching the filter with pagination
func (r *AssetRepository) List(ctx context.Context, filter asset.ListFilter) ([]*asset.Asset, error) {
	var assets []*asset.Asset
	query := r.db.WithContext(ctx)

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}

	err := query.
		Order("asset_tag ASC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&assets).Error
	return assets, err
}

// UpdateStatus changes the asset status under a row lock. An asset with an
// active assignment may only move to lost or stolen, which also closes the
// assignment; retired assets do not move again.
func (r *AssetRepository) UpdateStatus(ctx context.Context, id int64, status string, entry *audit.Entry) (*asset.Asset, error) {
	var a asset.Asset

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ?", id).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAssetNotFound
			}
			return err
		}

		if a.IsRetired() {
			return internal.NewConflictError("retired assets cannot change status", internal.ErrCodeAssetRetired)
		}

		var activeCount int64
		if err := tx.Model(&assignment.Assignment{}).
			Where("asset_id = ? AND status = ?", a.ID, assignment.StatusActive).
			Count(&activeCount).Error; err != nil {
			return err
		}

		if activeCount > 0 {
			if status != asset.StatusLost && status != asset.StatusStolen {
				return internal.NewConflictError(
					"asset has an active assignment; return it first", internal.ErrCodeAlreadyAssigned)
			}
			// Losing custody of the asset terminates the assignment.
			if err := tx.Model(&assignment.Assignment{}).
				Where("asset_id = ? AND status = ?", a.ID, assignment.StatusActive).
				Updates(map[string]interface{}{
					"status":     assignment.StatusLost,
					"updated_at": time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		entry.OldValues = a.Snapshot()

		a.Status = status
		a.UpdatedAt = time.Now()
		if err := tx.Model(&asset.Asset{}).Where("id = ?", a.ID).
			Updates(map[string]interface{}{
				"status":     a.Status,
				"updated_at": a.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		entry.NewValues = a.Snapshot()
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		return tx.Create(entry).Error
	})

	if err != nil {
		return nil, translateAssetError(err)
	}
	return &a, nil
}

// SoftDelete marks an asset deleted. Assets with an active assignment are
// refused.
func (r *AssetRepository) SoftDelete(ctx context.Context, id int64, entry *audit.Entry) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a asset.Asset
		if err := lockForUpdate(tx).
			Where("id = ?", id).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return internal.ErrAssetNotFound
			}
			return err
		}

		var activeCount int64
		if err := tx.Model(&assignment.Assignment{}).
			Where("asset_id = ? AND status = ?", a.ID, assignment.StatusActive).
			Count(&activeCount).Error; err != nil {
			return err
		}
		if activeCount > 0 {
			return internal.NewConflictError(
				"asset has an active assignment; return it first", internal.ErrCodeAlreadyAssigned)
		}

		if err := tx.Delete(&a).Error; err != nil {
			return err
		}

		entry.OldValues = a.Snapshot()
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, nil)
		return tx.Create(entry).Error
	})

	return translateAssetError(err)
}

// AllocateTag advances the category counter under a row lock and records
// the allocation in the audit trail, all in one transaction.
func (r *AssetRepository) AllocateTag(ctx context.Context, tagPrefix, category string, entry *audit.Entry) (*asset.TagAllocation, error) {
	var allocation *asset.TagAllocation

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		allocation, err = allocateTag(tx, tagPrefix, category)
		if err != nil {
			return err
		}

		entry.OldValues = audit.JSONMap{"category": allocation.Category, "next_number": allocation.Number}
		entry.NewValues = audit.JSONMap{"category": allocation.Category, "next_number": allocation.Number + 1}
		entry.ChangedFields = audit.ChangedFields(entry.OldValues, entry.NewValues)
		return tx.Create(entry).Error
	})

	if err != nil {
		return nil, translateAssetError(err)
	}
	return allocation, nil
}

// allocateTag performs the read-modify-write on the counter row. The row
// lock is what keeps two concurrent callers from observing the same number.
func allocateTag(tx *gorm.DB, tagPrefix, category string) (*asset.TagAllocation, error) {
	var counter asset.AssetCounter

	err := lockForUpdate(tx).
		Where("category = ?", category).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = asset.AssetCounter{Category: category, NextNumber: 1}
		if err := tx.Create(&counter).Error; err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	current := counter.NextNumber
	if err := tx.Model(&asset.AssetCounter{}).
		Where("category = ?", category).
		Update("next_number", current+1).Error; err != nil {
		return nil, err
	}

	return &asset.TagAllocation{
		Category: category,
		Number:   current,
		Tag:      asset.FormatTag(tagPrefix, category, current),
	}, nil
}

// translateAssetError maps storage-level failures onto the error taxonomy
// so drivers never leak to callers.
func translateAssetError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return internal.NewDuplicateError("asset tag already exists", internal.ErrCodeDuplicateTag).WithCause(err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return internal.NewDuplicateError("asset tag already exists", internal.ErrCodeDuplicateTag).WithCause(err)
	}
	return err
}
