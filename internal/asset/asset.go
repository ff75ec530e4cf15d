package asset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Asset represents one tracked physical or IT asset.
type Asset struct {
	ID           int64          `json:"id" gorm:"primaryKey"`
	AssetTag     string         `json:"asset_tag" gorm:"column:asset_tag;uniqueIndex;not null"`
	Name         string         `json:"name" gorm:"not null"`
	Category     string         `json:"category" gorm:"not null"`
	Status       string         `json:"status" gorm:"column:status;default:available"`
	SerialNumber *string        `json:"serial_number,omitempty" gorm:"column:serial_number"`
	PurchaseDate *time.Time     `json:"purchase_date,omitempty" gorm:"column:purchase_date;type:date"`
	Notes        string         `json:"notes,omitempty" gorm:"column:notes"`
	CreatedAt    time.Time      `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"column:updated_at;default:now()"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"column:deleted_at;index"`
}

// TableName returns the table name for GORM
func (Asset) TableName() string {
	return "assets"
}

// Asset status constants
const (
	StatusAvailable   = "available"
	StatusAssigned    = "assigned"
	StatusMaintenance = "maintenance"
	StatusRepair      = "repair"
	StatusRetired     = "retired"
	StatusLost        = "lost"
	StatusStolen      = "stolen"
)

var validStatuses = map[string]bool{
	StatusAvailable:   true,
	StatusAssigned:    true,
	StatusMaintenance: true,
	StatusRepair:      true,
	StatusRetired:     true,
	StatusLost:        true,
	StatusStolen:      true,
}

// ValidStatus reports whether s is a recognized asset status.
func ValidStatus(s string) bool {
	return validStatuses[s]
}

// CanBeAssigned reports whether the asset may enter a new assignment.
// Retired assets never can.
func (a *Asset) CanBeAssigned() bool {
	return a.Status == StatusAvailable
}

// IsRetired reports whether the asset is permanently out of service.
func (a *Asset) IsRetired() bool {
	return a.Status == StatusRetired
}

// Snapshot returns the auditable field values of the asset.
func (a *Asset) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"asset_tag": a.AssetTag,
		"name":      a.Name,
		"category":  a.Category,
		"status":    a.Status,
	}
}

// AssetCounter is the per-category tag sequence. next_number is only ever
// read and advanced under a row lock.
type AssetCounter struct {
	Category   string `json:"category" gorm:"primaryKey"`
	NextNumber int64  `json:"next_number" gorm:"column:next_number;default:1"`
}

// TableName returns the table name for GORM
func (AssetCounter) TableName() string {
	return "asset_counters"
}

// TagAllocation is the result of one counter increment.
type TagAllocation struct {
	Category string `json:"category"`
	Number   int64  `json:"next_number"`
	Tag      string `json:"asset_tag"`
}

// tagPrefixes maps known categories to their tag prefix.
var tagPrefixes = map[string]string{
	"laptop":    "LAP",
	"desktop":   "DSK",
	"monitor":   "MON",
	"phone":     "PHN",
	"tablet":    "TAB",
	"printer":   "PRN",
	"server":    "SRV",
	"network":   "NET",
	"accessory": "ACC",
}

// CategoryPrefix returns the tag prefix for a category. Unknown categories
// fall back to the first three characters, uppercased.
func CategoryPrefix(category string) string {
	key := strings.ToLower(strings.TrimSpace(category))
	if prefix, ok := tagPrefixes[key]; ok {
		return prefix
	}
	if len(key) > 3 {
		key = key[:3]
	}
	return strings.ToUpper(key)
}

// FormatTag renders the persisted tag format, e.g. IT-LAP-0001.
func FormatTag(prefix, category string, number int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, CategoryPrefix(category), number)
}

// Domain errors
var (
	ErrNotFound       = errors.New("asset not found")
	ErrInvalidStatus  = errors.New("invalid asset status")
	ErrEmptyCategory  = errors.New("category is required")
	ErrStatusConflict = errors.New("asset status conflicts with an active assignment")
)
