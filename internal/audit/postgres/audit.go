package postgres

import (
	"context"

	"github.com/assetops/asset-management/internal/audit"
	"gorm.io/gorm"
)

// AuditRepository implements the audit.Repository interface using GORM
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) audit.Repository {
	return &AuditRepository{db: db}
}

// Create appends a new audit entry. The table carries no update path.
func (r *AuditRepository) Create(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// History retrieves entries for one entity ordered oldest first, so the
// caller can replay the entity's change history.
func (r *AuditRepository) History(ctx context.Context, entityType string, entityID int64, limit, offset int) ([]*audit.Entry, error) {
	var entries []*audit.Entry
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	return entries, err
}
