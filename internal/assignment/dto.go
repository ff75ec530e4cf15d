package assignment

import (
	"errors"
	"time"
)

// AssignDTO is the request payload for handing an asset to a user.
type AssignDTO struct {
	UserID           int64      `json:"user_id" validate:"required"`
	Purpose          string     `json:"purpose,omitempty"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty"`
	Notes            string     `json:"notes,omitempty"`
}

// Validate validates the AssignDTO
func (dto AssignDTO) Validate() error {
	if dto.UserID <= 0 {
		return errors.New("user_id is required")
	}
	if dto.ExpectedReturnAt != nil && dto.ExpectedReturnAt.Before(time.Now()) {
		return errors.New("expected return date cannot be in the past")
	}
	if len(dto.Purpose) > 500 {
		return errors.New("purpose must be less than 500 characters")
	}
	return nil
}

// ReturnDTO is the request payload for taking an asset back.
type ReturnDTO struct {
	ReturnNotes     string `json:"return_notes,omitempty"`
	ReturnCondition string `json:"return_condition,omitempty"`
}

// Validate validates the ReturnDTO
func (dto ReturnDTO) Validate() error {
	if len(dto.ReturnNotes) > 500 {
		return errors.New("return notes must be less than 500 characters")
	}
	return nil
}

// ListFilter narrows assignment listings.
type ListFilter struct {
	AssetID int64
	UserID  int64
	Status  string
	Limit   int
	Offset  int
}

// AssignmentResponse decorates an assignment with its computed overdue flag.
type AssignmentResponse struct {
	*Assignment
	Overdue bool `json:"overdue"`
}

// NewAssignmentResponse computes the overdue flag at response time.
func NewAssignmentResponse(a *Assignment, now time.Time) *AssignmentResponse {
	return &AssignmentResponse{Assignment: a, Overdue: a.IsOverdue(now)}
}
