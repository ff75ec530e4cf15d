package asset

import (
	"errors"
	"time"

	"github.com/assetops/asset-management/internal/core/common/validation"
)

// CreateAssetDTO represents the request payload for registering an asset.
// The asset tag is never supplied by the caller; it is allocated atomically
// from the category counter.
type CreateAssetDTO struct {
	Name         string     `json:"name" validate:"required,min=1,max=200"`
	Category     string     `json:"category" validate:"required"`
	SerialNumber *string    `json:"serial_number,omitempty"`
	PurchaseDate *time.Time `json:"purchase_date,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// Validate validates the CreateAssetDTO
func (dto CreateAssetDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(200)
	v.Field("category", dto.Category).Required()
	v.Field("purchase_date", dto.PurchaseDate).NotFuture()
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// UpdateStatusDTO represents the request for moving an asset through the
// maintenance workflow states.
type UpdateStatusDTO struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes,omitempty"`
}

// Validate validates the UpdateStatusDTO
func (dto UpdateStatusDTO) Validate() error {
	if dto.Status == "" {
		return errors.New("status is required")
	}
	if !ValidStatus(dto.Status) {
		return errors.New("unrecognized asset status")
	}
	if dto.Status == StatusAssigned {
		return errors.New("assigned status is managed by the assignment workflow")
	}
	return nil
}

// ListFilter narrows asset listings.
type ListFilter struct {
	Status   string
	Category string
	Limit    int
	Offset   int
}

// NextTagResponse is the payload returned by the tag preview endpoint.
type NextTagResponse struct {
	AssetTag   string `json:"asset_tag"`
	NextNumber int64  `json:"next_number"`
	Category   string `json:"category"`
}
