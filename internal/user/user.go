package user

import (
	"errors"
	"time"

	"github.com/assetops/asset-management/internal/auth"
)

// User represents an account that can hold assets and sign in.
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"column:password_hash;not null"`
	Name         string    `json:"name" gorm:"not null"`
	Phone        string    `json:"phone,omitempty" gorm:"column:phone"`
	Position     string    `json:"position,omitempty" gorm:"column:position"`
	Role         string    `json:"role" gorm:"column:role;default:user"`
	Department   string    `json:"department" gorm:"column:department"`
	IsActive     bool      `json:"is_active" gorm:"column:is_active;default:true"`
	CreatedAt    time.Time `json:"created_at" gorm:"column:created_at;default:now()"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"column:updated_at;default:now()"`
}

// TableName returns the table name for GORM
func (User) TableName() string {
	return "users"
}

// Snapshot returns the auditable field values of the user. The password
// hash never appears in audit records.
func (u *User) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"email":      u.Email,
		"name":       u.Name,
		"role":       u.Role,
		"department": u.Department,
		"is_active":  u.IsActive,
	}
}

// Project renders the user with only the fields the caller may see.
func (u *User) Project(fields auth.FieldSet) map[string]interface{} {
	out := map[string]interface{}{}
	if fields.Has("id") {
		out["id"] = u.ID
	}
	if fields.Has("name") {
		out["name"] = u.Name
	}
	if fields.Has("role") {
		out["role"] = u.Role
	}
	if fields.Has("department") {
		out["department"] = u.Department
	}
	if fields.Has("is_active") {
		out["is_active"] = u.IsActive
	}
	if fields.Has("email") {
		out["email"] = u.Email
	}
	if fields.Has("phone") {
		out["phone"] = u.Phone
	}
	if fields.Has("position") {
		out["position"] = u.Position
	}
	if fields.Has("created_at") {
		out["created_at"] = u.CreatedAt
	}
	if fields.Has("updated_at") {
		out["updated_at"] = u.UpdatedAt
	}
	return out
}

// Domain errors
var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrInactive       = errors.New("user is inactive")
)
