package user

import (
	"errors"

	internalerrors "github.com/assetops/asset-management/internal"
	"github.com/assetops/asset-management/internal/auth"
	"github.com/assetops/asset-management/internal/core/common/validation"
)

// CreateUserDTO represents the request payload for creating a user.
type CreateUserDTO struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone,omitempty"`
	Position   string `json:"position,omitempty"`
	Role       string `json:"role" validate:"required"`
	Department string `json:"department" validate:"required"`
}

// Validate validates the CreateUserDTO
func (dto CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("email", dto.Email).Required().Email()
	v.Field("password", dto.Password).Required().MinLength(8)
	v.Field("name", dto.Name).Required().MaxLength(200)
	v.Field("department", dto.Department).Required()
	v.Field("role", dto.Role).Custom(func(value interface{}) *internalerrors.AppError {
		if role, ok := value.(string); ok && !auth.Role(role).Valid() {
			return internalerrors.NewValidationFieldError("role", "unrecognized role", internalerrors.ErrCodeInvalidRole)
		}
		return nil
	})
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// ChangeRoleDTO represents the request for changing a user's role.
type ChangeRoleDTO struct {
	Role string `json:"role" validate:"required"`
}

// Validate validates the ChangeRoleDTO
func (dto ChangeRoleDTO) Validate() error {
	if !auth.Role(dto.Role).Valid() {
		return errors.New("unrecognized role")
	}
	return nil
}

// Bulk operation names
const (
	BulkOpDeactivate = "deactivate"
	BulkOpActivate   = "activate"
	BulkOpChangeRole = "change_role"
)

// BulkOperationDTO represents a batch request applied to many users.
type BulkOperationDTO struct {
	Operation string            `json:"operation" validate:"required"`
	UserIDs   []int64           `json:"user_ids" validate:"required,min=1"`
	Data      map[string]string `json:"data,omitempty"`
}

// Validate validates the BulkOperationDTO
func (dto BulkOperationDTO) Validate() error {
	switch dto.Operation {
	case BulkOpDeactivate, BulkOpActivate, BulkOpChangeRole:
	default:
		return errors.New("unrecognized bulk operation")
	}
	if len(dto.UserIDs) == 0 {
		return errors.New("user_ids is required")
	}
	if dto.Operation == BulkOpChangeRole {
		if !auth.Role(dto.Data["role"]).Valid() {
			return errors.New("change_role requires a valid role in data")
		}
	}
	return nil
}

// BulkItemError records why one item of a batch failed.
type BulkItemError struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// BulkResult summarizes a completed batch. Successful plus failed always
// equals processed, which always equals the total requested.
type BulkResult struct {
	BatchID         string          `json:"batch_id"`
	Operation       string          `json:"operation"`
	TotalRequested  int             `json:"total_requested"`
	Processed       int             `json:"processed"`
	SuccessfulCount int             `json:"successful_count"`
	FailedCount     int             `json:"failed_count"`
	Errors          []BulkItemError `json:"errors"`
}

// ListFilter narrows user listings.
type ListFilter struct {
	Department string
	Role       string
	Limit      int
	Offset     int
}
