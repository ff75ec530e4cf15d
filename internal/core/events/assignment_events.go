package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeAssetAssigned = "asset.assigned"
	EventTypeAssetReturned = "asset.returned"
)

type AssetAssignedEvent struct {
	BaseEvent
	AssignmentID     int64      `json:"assignment_id"`
	AssetID          int64      `json:"asset_id"`
	AssetTag         string     `json:"asset_tag"`
	UserID           int64      `json:"user_id"`
	AssignedBy       int64      `json:"assigned_by"`
	ExpectedReturnAt *time.Time `json:"expected_return_at,omitempty"`
}

func NewAssetAssignedEvent(assignmentID, assetID int64, assetTag string, userID, assignedBy int64, expectedReturnAt *time.Time) *AssetAssignedEvent {
	return &AssetAssignedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAssetAssigned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"assignment_id": assignmentID,
				"asset_id":      assetID,
				"asset_tag":     assetTag,
				"user_id":       userID,
				"assigned_by":   assignedBy,
			},
		},
		AssignmentID:     assignmentID,
		AssetID:          assetID,
		AssetTag:         assetTag,
		UserID:           userID,
		AssignedBy:       assignedBy,
		ExpectedReturnAt: expectedReturnAt,
	}
}

type AssetReturnedEvent struct {
	BaseEvent
	AssignmentID int64  `json:"assignment_id"`
	AssetID      int64  `json:"asset_id"`
	AssetTag     string `json:"asset_tag"`
	UserID       int64  `json:"user_id"`
	ReturnedBy   int64  `json:"returned_by"`
	Condition    string `json:"condition,omitempty"`
	WasOverdue   bool   `json:"was_overdue"`
}

func NewAssetReturnedEvent(assignmentID, assetID int64, assetTag string, userID, returnedBy int64, condition string, wasOverdue bool) *AssetReturnedEvent {
	return &AssetReturnedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeAssetReturned,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"assignment_id": assignmentID,
				"asset_id":      assetID,
				"asset_tag":     assetTag,
				"user_id":       userID,
				"returned_by":   returnedBy,
				"condition":     condition,
				"was_overdue":   wasOverdue,
			},
		},
		AssignmentID: assignmentID,
		AssetID:      assetID,
		AssetTag:     assetTag,
		UserID:       userID,
		ReturnedBy:   returnedBy,
		Condition:    condition,
		WasOverdue:   wasOverdue,
	}
}
