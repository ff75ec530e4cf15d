package audit

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// Entry is one append-only audit record. Entries are never updated or
// deleted; per-entity history is reconstructed by ordering on created_at.
type Entry struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	Action        string     `json:"action" gorm:"column:action;not null"`
	EntityType    string     `json:"entity_type" gorm:"column:entity_type;not null;index:idx_audit_entity"`
	EntityID      int64      `json:"entity_id" gorm:"column:entity_id;index:idx_audit_entity"`
	ActorID       int64      `json:"actor_id" gorm:"column:actor_id"`
	OldValues     JSONMap    `json:"old_values,omitempty" gorm:"column:old_values;type:jsonb"`
	NewValues     JSONMap    `json:"new_values,omitempty" gorm:"column:new_values;type:jsonb"`
	ChangedFields StringList `json:"changed_fields,omitempty" gorm:"column:changed_fields;type:jsonb"`
	Description   string     `json:"description" gorm:"column:description"`
	CreatedAt     time.Time  `json:"created_at" gorm:"column:created_at;default:now()"`
}

// TableName returns the table name for GORM
func (Entry) TableName() string {
	return "audit_logs"
}

// Audited entity types.
const (
	EntityAsset      = "asset"
	EntityUser       = "user"
	EntityAssignment = "assignment"
	EntityCounter    = "asset_counter"
	EntityBulkBatch  = "user_bulk_batch"
)

// Audit actions.
const (
	ActionCreate      = "create"
	ActionUpdate      = "update"
	ActionDelete      = "delete"
	ActionAssign      = "assign"
	ActionReturn      = "return"
	ActionDeactivate  = "deactivate"
	ActionActivate    = "activate"
	ActionChangeRole  = "change_role"
	ActionAllocateTag = "allocate_tag"
	ActionBulk        = "bulk_operation"
)

// JSONMap stores an opaque before/after snapshot as a jsonb column. The
// trail never interprets the payload.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", value)
	}
}

// StringList stores the changed field names as a jsonb array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported type %T for StringList", value)
	}
}

// ChangedFields returns the sorted set of keys whose values differ between
// the old and new snapshots, including keys present on only one side.
func ChangedFields(oldValues, newValues JSONMap) StringList {
	seen := make(map[string]bool)
	var changed []string

	for key, oldVal := range oldValues {
		newVal, ok := newValues[key]
		if !ok || !reflect.DeepEqual(oldVal, newVal) {
			changed = append(changed, key)
		}
		seen[key] = true
	}
	for key := range newValues {
		if !seen[key] {
			changed = append(changed, key)
		}
	}

	sort.Strings(changed)
	return changed
}

// Domain errors
var (
	ErrEntryInvalid = errors.New("audit entry missing action or entity type")
)
