package model

import (
	"github.com/google/uuid"
)

// DaySchedule lists a facility's cases for one day ordered by theatre and time.
type DaySchedule struct {
	FacilityID uuid.UUID       `json:"facility_id"`
	Date       Date            `json:"date"`
	Cases      []*SurgicalCase `json:"cases"`
}

type WeekSchedule struct {
	FacilityID uuid.UUID      `json:"facility_id"`
	WeekStart  Date           `json:"week_start"`
	Days       []*DaySchedule `json:"days"`
}

type TheatreOccupancy struct {
	Total            int                   `json:"total"`
	ByStatus         map[TheatreStatus]int `json:"by_status"`
	OccupancyPercent float64               `json:"occupancy_percent"`
}

type Dashboard struct {
	FacilityID      uuid.UUID        `json:"facility_id"`
	Date            Date             `json:"date"`
	ScheduledToday  int              `json:"scheduled_today"`
	InProgressCases []*SurgicalCase  `json:"in_progress_cases"`
	PostOpCases     []*SurgicalCase  `json:"post_op_cases"`
	Occupancy       TheatreOccupancy `json:"theatre_occupancy"`
}
