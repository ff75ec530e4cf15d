package assignment

import (
	"errors"
	"time"
)

// Assignment records custody of one asset by one user. At most one active
// assignment may exist per asset, enforced by the assign transaction and
// backed by a partial unique index on (asset_id) WHERE status = 'active'.
type Assignment struct {
	ID               int64      `json:"id" gorm:"primaryKey"`
	AssetID          int64      `json:"asset_id" gorm:"column:asset_id;not null;index"`
	UserID           int64      `json:"user_id" gorm:"column:user_id;not null;index"`
	Status           string     `json:"status" gorm:"column:status;default:active"`
	AssignedAt       time.Time  `json:"assigned_at" gorm:"column:assigned_at"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty" gorm:"column:expected_return_at"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty" gorm:"column:returned_at"`
	AssignedBy       int64      `json:"assigned_by" gorm:"column:assigned_by"`
	ReturnedBy       *int64     `json:"returned_by,omitempty" gorm:"column:returned_by"`
	Purpose          string     `json:"purpose,omitempty" gorm:"column:purpose"`
	Notes            string     `json:"notes,omitempty" gorm:"column:notes"`
	ReturnNotes      string     `json:"return_notes,omitempty" gorm:"column:return_notes"`
	ReturnCondition  string     `json:"return_condition,omitempty" gorm:"column:return_condition"`
	CreatedAt        time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

// TableName returns the table name for GORM
func (Assignment) TableName() string {
	return "asset_assignments"
}

// Assignment status constants
const (
	StatusActive   = "active"
	StatusReturned = "returned"
	StatusLost     = "lost"
)

// IsActive reports whether the assignment still holds custody.
func (a *Assignment) IsActive() bool {
	return a.Status == StatusActive
}

// IsOverdue reports whether an active assignment has passed its expected
// return date. Never persisted; always computed against the given clock.
func (a *Assignment) IsOverdue(now time.Time) bool {
	if a.Status != StatusActive || a.ExpectedReturnAt == nil {
		return false
	}
	return now.After(*a.ExpectedReturnAt)
}

// Snapshot returns the auditable field values of the assignment.
func (a *Assignment) Snapshot() map[string]interface{} {
	snap := map[string]interface{}{
		"asset_id": a.AssetID,
		"user_id":  a.UserID,
		"status":   a.Status,
	}
	if a.ExpectedReturnAt != nil {
		snap["expected_return_at"] = a.ExpectedReturnAt.Format(time.RFC3339)
	}
	if a.ReturnedAt != nil {
		snap["returned_at"] = a.ReturnedAt.Format(time.RFC3339)
	}
	return snap
}

// Domain errors
var (
	ErrNotFound        = errors.New("assignment not found")
	ErrNotActive       = errors.New("assignment is not active")
	ErrAssetInCustody  = errors.New("asset already has an active assignment")
	ErrAssetNotHeld    = errors.New("asset has no active assignment")
	ErrUserUnavailable = errors.New("user cannot receive assignments")
)
