package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type CaseStatus string

const (
	CaseStatusScheduled  CaseStatus = "SCHEDULED"
	CaseStatusPreOp      CaseStatus = "PRE_OP"
	CaseStatusInProgress CaseStatus = "IN_PROGRESS"
	CaseStatusPostOp     CaseStatus = "POST_OP"
	CaseStatusCompleted  CaseStatus = "COMPLETED"
	CaseStatusPostponed  CaseStatus = "POSTPONED"
	CaseStatusCancelled  CaseStatus = "CANCELLED"
)

func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusScheduled, CaseStatusPreOp, CaseStatusInProgress, CaseStatusPostOp,
		CaseStatusCompleted, CaseStatusPostponed, CaseStatusCancelled:
		return true
	}
	return false
}

// Finalized cases no longer accept consumable changes.
func (s CaseStatus) Finalized() bool {
	return s == CaseStatusCompleted || s == CaseStatusCancelled
}

type SurgeryType string

const (
	SurgeryTypeMajor   SurgeryType = "MAJOR"
	SurgeryTypeMinor   SurgeryType = "MINOR"
	SurgeryTypeDayCase SurgeryType = "DAY_CASE"
)

func (t SurgeryType) Valid() bool {
	return t == SurgeryTypeMajor || t == SurgeryTypeMinor || t == SurgeryTypeDayCase
}

type CasePriority string

const (
	PriorityElective  CasePriority = "ELECTIVE"
	PriorityUrgent    CasePriority = "URGENT"
	PriorityEmergency CasePriority = "EMERGENCY"
)

func (p CasePriority) Valid() bool {
	return p == PriorityElective || p == PriorityUrgent || p == PriorityEmergency
}

// RequiresConsent reports whether a signed consent gates the start of surgery.
func (p CasePriority) RequiresConsent() bool {
	return p == PriorityElective
}

type ChecklistItem struct {
	Item      string     `json:"item"`
	Checked   bool       `json:"checked"`
	CheckedBy *uuid.UUID `json:"checked_by,omitempty"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
}

type Complication struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type Specimen struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Label       *string `json:"label,omitempty"`
	SentTo      *string `json:"sent_to,omitempty"`
}

// SurgicalCase is one procedure for one patient, from booking to completion.
type SurgicalCase struct {
	Base
	CaseNumber               string       `json:"case_number" db:"case_number"`
	PatientID                uuid.UUID    `json:"patient_id" db:"patient_id"`
	EncounterID              *uuid.UUID   `json:"encounter_id,omitempty" db:"encounter_id"`
	TheatreID                uuid.UUID    `json:"theatre_id" db:"theatre_id"`
	FacilityID               uuid.UUID    `json:"facility_id" db:"facility_id"`
	ProcedureName            string       `json:"procedure_name" db:"procedure_name"`
	ProcedureCode            *string      `json:"procedure_code,omitempty" db:"procedure_code"`
	Diagnosis                *string      `json:"diagnosis,omitempty" db:"diagnosis"`
	SurgeryType              SurgeryType  `json:"surgery_type" db:"surgery_type"`
	Priority                 CasePriority `json:"priority" db:"priority"`
	Status                   CaseStatus   `json:"status" db:"status"`
	ScheduledDate            Date         `json:"scheduled_date" db:"scheduled_date"`
	ScheduledTime            ClockTime    `json:"scheduled_time" db:"scheduled_time"`
	EstimatedDurationMinutes int          `json:"estimated_duration_minutes" db:"estimated_duration_minutes"`
	ActualStartTime          *time.Time   `json:"actual_start_time,omitempty" db:"actual_start_time"`
	ActualEndTime            *time.Time   `json:"actual_end_time,omitempty" db:"actual_end_time"`

	LeadSurgeonID      uuid.UUID        `json:"lead_surgeon_id" db:"lead_surgeon_id"`
	AssistantSurgeonID *uuid.UUID       `json:"assistant_surgeon_id,omitempty" db:"assistant_surgeon_id"`
	AnesthesiologistID *uuid.UUID       `json:"anesthesiologist_id,omitempty" db:"anesthesiologist_id"`
	NursingTeam        JSONList[string] `json:"nursing_team" db:"nursing_team"`
	AnesthesiaType     *string          `json:"anesthesia_type,omitempty" db:"anesthesia_type"`
	AnesthesiaNotes    *string          `json:"anesthesia_notes,omitempty" db:"anesthesia_notes"`

	PreOpChecklist  JSONList[ChecklistItem] `json:"pre_op_checklist" db:"pre_op_checklist"`
	PreOpNotes      *string                 `json:"pre_op_notes,omitempty" db:"pre_op_notes"`
	ConsentSigned   bool                    `json:"consent_signed" db:"consent_signed"`
	ConsentSignedAt *time.Time              `json:"consent_signed_at,omitempty" db:"consent_signed_at"`
	BloodAvailable  bool                    `json:"blood_available" db:"blood_available"`

	OperativeFindings *string                `json:"operative_findings,omitempty" db:"operative_findings"`
	OperativeNotes    *string                `json:"operative_notes,omitempty" db:"operative_notes"`
	Complications     JSONList[Complication] `json:"complications" db:"complications"`
	BloodLossMl       *int                   `json:"blood_loss_ml,omitempty" db:"blood_loss_ml"`
	Specimens         JSONList[Specimen]     `json:"specimens" db:"specimens"`

	PostOpDiagnosis         *string    `json:"post_op_diagnosis,omitempty" db:"post_op_diagnosis"`
	PostOpInstructions      *string    `json:"post_op_instructions,omitempty" db:"post_op_instructions"`
	RecoveryNotes           *string    `json:"recovery_notes,omitempty" db:"recovery_notes"`
	DischargeDestination    *string    `json:"discharge_destination,omitempty" db:"discharge_destination"`
	DischargedFromTheatreAt *time.Time `json:"discharged_from_theatre_at,omitempty" db:"discharged_from_theatre_at"`

	Notes     *string   `json:"notes,omitempty" db:"notes"`
	CreatedBy uuid.UUID `json:"created_by" db:"created_by"`
	Version   int       `json:"version" db:"version"`
}

// CaseNumberPrefix is the part of a case number shared by one day's cases.
func CaseNumberPrefix(d Date) string {
	return "SUR" + d.Compact() + "-"
}

// FormatCaseNumber renders SUR<YYYYMMDD>-<NNNN>.
func FormatCaseNumber(d Date, seq int) string {
	return fmt.Sprintf("%s%04d", CaseNumberPrefix(d), seq)
}

// Window returns the theatre time the case reserves on its scheduled date.
func (c *SurgicalCase) Window() Window {
	return Window{Start: c.ScheduledTime, Duration: c.EstimatedDurationMinutes}
}

// AppendNote adds a line to the free-text notes.
func (c *SurgicalCase) AppendNote(line string) {
	if c.Notes == nil || *c.Notes == "" {
		c.Notes = &line
		return
	}
	joined := *c.Notes + "\n" + line
	c.Notes = &joined
}

// ConflictingCase is the summary returned when a booking collides.
type ConflictingCase struct {
	ID            uuid.UUID `json:"id"`
	CaseNumber    string    `json:"case_number"`
	ProcedureName string    `json:"procedure_name"`
	ScheduledTime ClockTime `json:"scheduled_time"`
	EndTime       ClockTime `json:"end_time"`
	Duration      int       `json:"estimated_duration_minutes"`
}

func SummarizeConflicts(cases []*SurgicalCase) []ConflictingCase {
	out := make([]ConflictingCase, 0, len(cases))
	for _, c := range cases {
		out = append(out, ConflictingCase{
			ID:            c.ID,
			CaseNumber:    c.CaseNumber,
			ProcedureName: c.ProcedureName,
			ScheduledTime: c.ScheduledTime,
			EndTime:       ClockTime(c.Window().End()),
			Duration:      c.EstimatedDurationMinutes,
		})
	}
	return out
}

type ScheduleCaseRequest struct {
	FacilityID               uuid.UUID    `json:"facility_id" binding:"required"`
	PatientID                uuid.UUID    `json:"patient_id" binding:"required"`
	EncounterID              *uuid.UUID   `json:"encounter_id"`
	TheatreID                uuid.UUID    `json:"theatre_id" binding:"required"`
	ProcedureName            string       `json:"procedure_name" binding:"required,max=255"`
	ProcedureCode            *string      `json:"procedure_code" binding:"omitempty,max=50"`
	Diagnosis                *string      `json:"diagnosis"`
	SurgeryType              SurgeryType  `json:"surgery_type" binding:"required,surgery_type"`
	Priority                 CasePriority `json:"priority" binding:"required,case_priority"`
	ScheduledDate            Date         `json:"scheduled_date"`
	ScheduledTime            ClockTime    `json:"scheduled_time"`
	EstimatedDurationMinutes int          `json:"estimated_duration_minutes" binding:"required,min=1,max=1440"`
	LeadSurgeonID            uuid.UUID    `json:"lead_surgeon_id" binding:"required"`
	AssistantSurgeonID       *uuid.UUID   `json:"assistant_surgeon_id"`
	AnesthesiologistID       *uuid.UUID   `json:"anesthesiologist_id"`
	NursingTeam              []string     `json:"nursing_team"`
	AnesthesiaType           *string      `json:"anesthesia_type" binding:"omitempty,max=50"`
	Notes                    *string      `json:"notes"`
}

type UpdatePreOpRequest struct {
	Checklist       []ChecklistItem `json:"checklist"`
	PreOpNotes      *string         `json:"pre_op_notes"`
	ConsentSigned   *bool           `json:"consent_signed"`
	BloodAvailable  *bool           `json:"blood_available"`
	AnesthesiaType  *string         `json:"anesthesia_type" binding:"omitempty,max=50"`
	AnesthesiaNotes *string         `json:"anesthesia_notes"`
}

type UpdateIntraOpRequest struct {
	OperativeFindings *string        `json:"operative_findings"`
	OperativeNotes    *string        `json:"operative_notes"`
	AnesthesiaNotes   *string        `json:"anesthesia_notes"`
	Complications     []Complication `json:"complications"`
	BloodLossMl       *int           `json:"blood_loss_ml" binding:"omitempty,min=0"`
	Specimens         []Specimen     `json:"specimens"`
}

type CompleteSurgeryRequest struct {
	OperativeFindings    *string `json:"operative_findings"`
	OperativeNotes       *string `json:"operative_notes"`
	BloodLossMl          *int    `json:"blood_loss_ml" binding:"omitempty,min=0"`
	PostOpDiagnosis      *string `json:"post_op_diagnosis"`
	PostOpInstructions   *string `json:"post_op_instructions"`
	RecoveryNotes        *string `json:"recovery_notes"`
	DischargeDestination *string `json:"discharge_destination" binding:"omitempty,open_tag"`
}

type DischargeRequest struct {
	RecoveryNotes        *string `json:"recovery_notes"`
	DischargeDestination *string `json:"discharge_destination" binding:"omitempty,open_tag"`
}

// CancelCaseRequest cancels a case, or postpones it when both NewDate and NewTime are set.
type CancelCaseRequest struct {
	Reason  string     `json:"reason" binding:"required,max=1000"`
	NewDate *Date      `json:"new_date"`
	NewTime *ClockTime `json:"new_time"`
}

// Postpone reports whether the request carries a new slot.
func (r CancelCaseRequest) Postpone() bool {
	return r.NewDate != nil && r.NewTime != nil
}

type RescheduleCaseRequest struct {
	TheatreID                *uuid.UUID `json:"theatre_id"`
	ScheduledDate            *Date      `json:"scheduled_date"`
	ScheduledTime            *ClockTime `json:"scheduled_time"`
	EstimatedDurationMinutes *int       `json:"estimated_duration_minutes" binding:"omitempty,min=1,max=1440"`
}

type CheckConflictsRequest struct {
	TheatreID       uuid.UUID  `json:"theatre_id" binding:"required"`
	Date            Date       `json:"date"`
	StartTime       ClockTime  `json:"start_time"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1,max=1440"`
	ExcludeCaseID   *uuid.UUID `json:"exclude_case_id"`
}

type CaseFilter struct {
	FacilityID uuid.UUID
	TheatreID  *uuid.UUID
	Status     *CaseStatus
	SurgeonID  *uuid.UUID
	PatientID  *uuid.UUID
	From       *Date
	To         *Date
	Pagination
}
