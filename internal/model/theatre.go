package model

import (
	"github.com/google/uuid"
)

type TheatreType string

const (
	TheatreTypeGeneral    TheatreType = "GENERAL"
	TheatreTypeOrthopedic TheatreType = "ORTHOPEDIC"
	TheatreTypeCardiac    TheatreType = "CARDIAC"
	TheatreTypeNeuro      TheatreType = "NEURO"
	TheatreTypeObstetric  TheatreType = "OBSTETRIC"
	TheatreTypeOphthalmic TheatreType = "OPHTHALMIC"
	TheatreTypeENT        TheatreType = "ENT"
	TheatreTypeUrology    TheatreType = "UROLOGY"
	TheatreTypePaediatric TheatreType = "PAEDIATRIC"
	TheatreTypeDaySurgery TheatreType = "DAY_SURGERY"
	TheatreTypeOther      TheatreType = "OTHER"
)

var theatreTypes = map[TheatreType]bool{
	TheatreTypeGeneral: true, TheatreTypeOrthopedic: true, TheatreTypeCardiac: true,
	TheatreTypeNeuro: true, TheatreTypeObstetric: true, TheatreTypeOphthalmic: true,
	TheatreTypeENT: true, TheatreTypeUrology: true, TheatreTypePaediatric: true,
	TheatreTypeDaySurgery: true, TheatreTypeOther: true,
}

func (t TheatreType) Valid() bool { return theatreTypes[t] }

type TheatreStatus string

const (
	TheatreStatusAvailable    TheatreStatus = "AVAILABLE"
	TheatreStatusInUse        TheatreStatus = "IN_USE"
	TheatreStatusCleaning     TheatreStatus = "CLEANING"
	TheatreStatusMaintenance  TheatreStatus = "MAINTENANCE"
	TheatreStatusOutOfService TheatreStatus = "OUT_OF_SERVICE"
)

func (s TheatreStatus) Valid() bool {
	switch s {
	case TheatreStatusAvailable, TheatreStatusInUse, TheatreStatusCleaning,
		TheatreStatusMaintenance, TheatreStatusOutOfService:
		return true
	}
	return false
}

// Theatre is a bookable operating room. Theatres are deactivated, never deleted.
type Theatre struct {
	Base
	FacilityID uuid.UUID     `json:"facility_id" db:"facility_id"`
	Name       string        `json:"name" db:"name"`
	Code       string        `json:"code" db:"code"`
	Type       TheatreType   `json:"type" db:"type"`
	Status     TheatreStatus `json:"status" db:"status"`
	Location   *string       `json:"location,omitempty" db:"location"`
	Capacity   *int          `json:"capacity,omitempty" db:"capacity"`
	IsActive   bool          `json:"is_active" db:"is_active"`
}

type CreateTheatreRequest struct {
	FacilityID uuid.UUID   `json:"facility_id" binding:"required"`
	Name       string      `json:"name" binding:"required,max=100"`
	Code       string      `json:"code" binding:"required,max=20"`
	Type       TheatreType `json:"type" binding:"required,theatre_type"`
	Location   *string     `json:"location" binding:"omitempty,max=200"`
	Capacity   *int        `json:"capacity" binding:"omitempty,min=1"`
}

type UpdateTheatreRequest struct {
	Name     *string      `json:"name" binding:"omitempty,max=100"`
	Type     *TheatreType `json:"type" binding:"omitempty,theatre_type"`
	Location *string      `json:"location" binding:"omitempty,max=200"`
	Capacity *int         `json:"capacity" binding:"omitempty,min=1"`
}

type SetTheatreStatusRequest struct {
	Status TheatreStatus `json:"status" binding:"required,theatre_status"`
	Reason string        `json:"reason" binding:"max=500"`
}

type TheatreFilter struct {
	FacilityID uuid.UUID
	ActiveOnly bool
}
