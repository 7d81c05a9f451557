package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all models
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Pagination represents common pagination parameters
type Pagination struct {
	Limit  int `json:"limit" form:"limit"`
	Offset int `json:"offset" form:"offset"`
}

// Normalize clamps limit to (0, 200] with a default of 50.
func (p Pagination) Normalize() Pagination {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Limit > 200 {
		p.Limit = 200
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Actor identifies who performed an operation.
type Actor struct {
	UserID     uuid.UUID
	FacilityID uuid.UUID
}

// CanAccess reports whether the actor may act on the facility's records.
// An actor without a facility claim is not restricted.
func (a Actor) CanAccess(facilityID uuid.UUID) bool {
	return a.FacilityID == uuid.Nil || a.FacilityID == facilityID
}
