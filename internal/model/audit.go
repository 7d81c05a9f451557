package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	UserID     uuid.UUID       `json:"user_id" db:"user_id"`
	FacilityID uuid.UUID       `json:"facility_id" db:"facility_id"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes" db:"changes"`
	Reason     *string         `json:"reason,omitempty" db:"reason"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate         = "create"
	AuditActionUpdate         = "update"
	AuditActionDelete         = "delete"
	AuditActionTransition     = "transition"
	AuditActionStatusOverride = "status_override"
	AuditActionDeactivate     = "deactivate"

	// Entity types
	AuditEntityTheatre    = "theatre"
	AuditEntityCase       = "surgical_case"
	AuditEntityConsumable = "surgery_consumable"
)

type AuditFilter struct {
	EntityType string
	EntityID   *uuid.UUID
	FacilityID *uuid.UUID
	Pagination
}
