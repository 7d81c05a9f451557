package surgery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
	"github.com/jwalitptl/theatre-api/pkg/telemetry"
)

type SurgeryServicer interface {
	ScheduleCase(ctx context.Context, actor model.Actor, req *model.ScheduleCaseRequest) (*model.SurgicalCase, error)
	GetCase(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SurgicalCase, error)
	ListCases(ctx context.Context, filter model.CaseFilter) ([]*model.SurgicalCase, int, error)
	CheckConflicts(ctx context.Context, actor model.Actor, req *model.CheckConflictsRequest) ([]*model.SurgicalCase, error)
	UpdatePreOp(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePreOpRequest) (*model.SurgicalCase, error)
	StartSurgery(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SurgicalCase, error)
	UpdateIntraOp(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateIntraOpRequest) (*model.SurgicalCase, error)
	CompleteSurgery(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.CompleteSurgeryRequest) (*model.SurgicalCase, error)
	Discharge(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.DischargeRequest) (*model.SurgicalCase, error)
	CancelCase(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.CancelCaseRequest) (*model.SurgicalCase, error)
	RescheduleCase(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleCaseRequest) (*model.SurgicalCase, error)
}

// TheatreStatusUpdater applies the theatre side effects of case transitions.
type TheatreStatusUpdater interface {
	ApplyCaseStatus(ctx context.Context, theatreID uuid.UUID, status model.TheatreStatus, caseID uuid.UUID) error
}

type Config struct {
	// CaseNumberAttempts bounds booking retries after a case number collision.
	CaseNumberAttempts int
	// Location decides which calendar day a case number belongs to.
	Location *time.Location
}

type Service struct {
	tx            repository.Transactor
	cases         repository.SurgicalCaseRepository
	numbers       repository.CaseNumberRepository
	theatres      repository.TheatreRepository
	theatreStatus TheatreStatusUpdater
	auditor       *audit.Service
	events        *event.EventService
	metrics       *metrics.Metrics
	logger        *logger.Logger
	config        Config
	now           func() time.Time
}

func NewService(
	tx repository.Transactor,
	cases repository.SurgicalCaseRepository,
	numbers repository.CaseNumberRepository,
	theatres repository.TheatreRepository,
	theatreStatus TheatreStatusUpdater,
	auditor *audit.Service,
	events *event.EventService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
	config Config,
) *Service {
	if config.CaseNumberAttempts <= 0 {
		config.CaseNumberAttempts = 3
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Service{
		tx:            tx,
		cases:         cases,
		numbers:       numbers,
		theatres:      theatres,
		theatreStatus: theatreStatus,
		auditor:       auditor,
		events:        events,
		metrics:       metrics,
		logger:        logger,
		config:        config,
		now:           time.Now,
	}
}

type caseEvent struct {
	CaseID        uuid.UUID        `json:"case_id"`
	CaseNumber    string           `json:"case_number"`
	FacilityID    uuid.UUID        `json:"facility_id"`
	TheatreID     uuid.UUID        `json:"theatre_id"`
	PatientID     uuid.UUID        `json:"patient_id"`
	From          model.CaseStatus `json:"from,omitempty"`
	To            model.CaseStatus `json:"to"`
	ScheduledDate model.Date       `json:"scheduled_date"`
	ScheduledTime model.ClockTime  `json:"scheduled_time"`
	Reason        string           `json:"reason,omitempty"`
}

func newCaseEvent(c *model.SurgicalCase, from model.CaseStatus, reason string) caseEvent {
	return caseEvent{
		CaseID:        c.ID,
		CaseNumber:    c.CaseNumber,
		FacilityID:    c.FacilityID,
		TheatreID:     c.TheatreID,
		PatientID:     c.PatientID,
		From:          from,
		To:            c.Status,
		ScheduledDate: c.ScheduledDate,
		ScheduledTime: c.ScheduledTime,
		Reason:        reason,
	}
}

// ScheduleCase books a theatre window and creates the case in SCHEDULED.
// Each attempt runs in its own transaction holding the theatre-day lock;
// a case number collision rolls the attempt back and retries.
func (s *Service) ScheduleCase(ctx context.Context, actor model.Actor, req *model.ScheduleCaseRequest) (*model.SurgicalCase, error) {
	ctx, span := telemetry.StartSpan(ctx, "surgery.ScheduleCase",
		attribute.String("theatre_id", req.TheatreID.String()),
		attribute.String("scheduled_date", req.ScheduledDate.String()))
	defer span.End()

	c, err := s.scheduleCase(ctx, actor, req)
	telemetry.RecordError(span, err)
	return c, err
}

func (s *Service) scheduleCase(ctx context.Context, actor model.Actor, req *model.ScheduleCaseRequest) (*model.SurgicalCase, error) {
	if err := s.validateSchedule(actor, req); err != nil {
		return nil, err
	}
	if _, err := s.bookableTheatre(ctx, req.FacilityID, req.TheatreID); err != nil {
		return nil, err
	}

	numberDate := model.DateOf(s.now().In(s.config.Location))

	var lastErr error
	for attempt := 1; attempt <= s.config.CaseNumberAttempts; attempt++ {
		c := newCase(actor, req)

		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.ensureFree(ctx, c.TheatreID, c.ScheduledDate, c.Window(), nil); err != nil {
				return err
			}

			seq, err := s.numbers.Next(ctx, c.FacilityID, numberDate)
			if err != nil {
				return err
			}
			c.CaseNumber = model.FormatCaseNumber(numberDate, seq)

			if err := s.cases.Create(ctx, c); err != nil {
				return err
			}
			if err := s.events.Emit(ctx, model.EventCaseScheduled, model.AuditEntityCase, c.ID,
				newCaseEvent(c, "", "")); err != nil {
				return err
			}
			return s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityCase, c.ID,
				&audit.LogOptions{Changes: c})
		})

		switch {
		case err == nil:
			s.metrics.CasesScheduled.WithLabelValues(string(c.Priority)).Inc()
			s.logger.WithContext(ctx).Info("case scheduled",
				"case_number", c.CaseNumber,
				"theatre_id", c.TheatreID.String(),
				"scheduled_date", c.ScheduledDate.String(),
				"scheduled_time", c.ScheduledTime.String())
			return c, nil
		case errors.Is(err, repository.ErrDuplicateCaseNumber):
			s.metrics.CaseNumberRetries.Inc()
			s.logger.WithContext(ctx).Warn("case number collision, retrying",
				"case_number", c.CaseNumber, "attempt", attempt)
			lastErr = err
		case errors.Is(err, repository.ErrTheatreDoubleBooked):
			return nil, s.conflictError(ctx, c.TheatreID, c.ScheduledDate, c.Window(), nil)
		default:
			if apperrors.HasCode(err, apperrors.ErrSchedulingConflict) {
				s.metrics.SchedulingConflicts.Inc()
			}
			return nil, err
		}
	}

	return nil, apperrors.NumberGenerationFailed(s.config.CaseNumberAttempts, lastErr)
}

func (s *Service) validateSchedule(actor model.Actor, req *model.ScheduleCaseRequest) error {
	if !actor.CanAccess(req.FacilityID) {
		return apperrors.Forbidden("cannot book cases for another facility")
	}
	if req.ScheduledDate.IsZero() {
		return apperrors.BadRequest("scheduled_date is required", nil)
	}
	if !req.SurgeryType.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid surgery type %q", req.SurgeryType), nil)
	}
	if !req.Priority.Valid() {
		return apperrors.BadRequest(fmt.Sprintf("invalid priority %q", req.Priority), nil)
	}
	if strings.TrimSpace(req.ProcedureName) == "" {
		return apperrors.BadRequest("procedure_name is required", nil)
	}
	return validateWindow(model.Window{Start: req.ScheduledTime, Duration: req.EstimatedDurationMinutes})
}

func validateWindow(w model.Window) error {
	if w.Duration <= 0 {
		return apperrors.BadRequest("estimated duration must be positive", nil)
	}
	if !w.FitsInDay() {
		return apperrors.BadRequest(fmt.Sprintf("a %d minute case starting at %s runs past midnight",
			w.Duration, w.Start), nil)
	}
	return nil
}

func newCase(actor model.Actor, req *model.ScheduleCaseRequest) *model.SurgicalCase {
	return &model.SurgicalCase{
		PatientID:                req.PatientID,
		EncounterID:              req.EncounterID,
		TheatreID:                req.TheatreID,
		FacilityID:               req.FacilityID,
		ProcedureName:            strings.TrimSpace(req.ProcedureName),
		ProcedureCode:            req.ProcedureCode,
		Diagnosis:                req.Diagnosis,
		SurgeryType:              req.SurgeryType,
		Priority:                 req.Priority,
		Status:                   model.CaseStatusScheduled,
		ScheduledDate:            req.ScheduledDate,
		ScheduledTime:            req.ScheduledTime,
		EstimatedDurationMinutes: req.EstimatedDurationMinutes,
		LeadSurgeonID:            req.LeadSurgeonID,
		AssistantSurgeonID:       req.AssistantSurgeonID,
		AnesthesiologistID:       req.AnesthesiologistID,
		NursingTeam:              model.JSONList[string](req.NursingTeam),
		AnesthesiaType:           req.AnesthesiaType,
		PreOpChecklist:           model.JSONList[model.ChecklistItem]{},
		Complications:            model.JSONList[model.Complication]{},
		Specimens:                model.JSONList[model.Specimen]{},
		Notes:                    req.Notes,
		CreatedBy:                actor.UserID,
	}
}

// bookableTheatre loads the theatre and checks it can take bookings for the facility.
func (s *Service) bookableTheatre(ctx context.Context, facilityID, theatreID uuid.UUID) (*model.Theatre, error) {
	theatre, err := s.theatres.GetByID(ctx, theatreID)
	if err != nil {
		return nil, err
	}
	if theatre.FacilityID != facilityID {
		return nil, apperrors.BadRequest("theatre belongs to another facility", nil)
	}
	if !theatre.IsActive {
		return nil, apperrors.BadRequest(fmt.Sprintf("theatre %s is deactivated", theatre.Code), nil)
	}
	return theatre, nil
}

// ensureFree locks the theatre day and fails with SchedulingConflict when a
// SCHEDULED case overlaps w. Must run inside a transaction.
func (s *Service) ensureFree(ctx context.Context, theatreID uuid.UUID, date model.Date, w model.Window, exclude *uuid.UUID) error {
	if err := s.cases.LockTheatreDay(ctx, theatreID, date); err != nil {
		return err
	}
	candidates, err := s.cases.FindScheduledOnTheatreDay(ctx, theatreID, date)
	if err != nil {
		return err
	}
	if conflicts := FindConflicts(candidates, w, exclude); len(conflicts) > 0 {
		s.logger.WithContext(ctx).Info("booking rejected, theatre window taken",
			"theatre_id", theatreID.String(),
			"date", date.String(),
			"conflicts", len(conflicts))
		return apperrors.SchedulingConflict(model.SummarizeConflicts(conflicts))
	}
	return nil
}

// conflictError rebuilds the conflict list after the storage layer rejected
// an overlapping write.
func (s *Service) conflictError(ctx context.Context, theatreID uuid.UUID, date model.Date, w model.Window, exclude *uuid.UUID) error {
	s.metrics.SchedulingConflicts.Inc()
	candidates, err := s.cases.FindScheduledOnTheatreDay(ctx, theatreID, date)
	if err != nil {
		return apperrors.SchedulingConflict(nil)
	}
	return apperrors.SchedulingConflict(model.SummarizeConflicts(FindConflicts(candidates, w, exclude)))
}

// CheckConflicts lists the SCHEDULED cases overlapping the requested window.
// A theatre outside the caller's facility is reported as not found.
func (s *Service) CheckConflicts(ctx context.Context, actor model.Actor, req *model.CheckConflictsRequest) ([]*model.SurgicalCase, error) {
	if req.Date.IsZero() {
		return nil, apperrors.BadRequest("date is required", nil)
	}
	w := model.Window{Start: req.StartTime, Duration: req.DurationMinutes}
	if err := validateWindow(w); err != nil {
		return nil, err
	}
	theatre, err := s.theatres.GetByID(ctx, req.TheatreID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(theatre.FacilityID) {
		return nil, apperrors.NotFound("theatre", nil)
	}
	candidates, err := s.cases.FindScheduledOnTheatreDay(ctx, req.TheatreID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to load theatre schedule: %w", err)
	}
	return FindConflicts(candidates, w, req.ExcludeCaseID), nil
}

func (s *Service) GetCase(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SurgicalCase, error) {
	c, err := s.cases.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(c.FacilityID) {
		return nil, apperrors.NotFound("surgical case", nil)
	}
	return c, nil
}

func (s *Service) ListCases(ctx context.Context, filter model.CaseFilter) ([]*model.SurgicalCase, int, error) {
	cases, total, err := s.cases.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, total, nil
}

// mutation changes the loaded case before it is written. Returning an error
// aborts the transition with nothing persisted.
type mutation func(ctx context.Context, c *model.SurgicalCase) error

// transition loads the case, checks the state machine, applies fn and
// writes the case, event and audit entry in one transaction.
func (s *Service) transition(ctx context.Context, actor model.Actor, id uuid.UUID, op Operation, eventType, reason string, fn mutation) (*model.SurgicalCase, error) {
	ctx, span := telemetry.StartSpan(ctx, "surgery.transition",
		attribute.String("case_id", id.String()),
		attribute.String("operation", string(op)))
	defer span.End()

	var (
		result *model.SurgicalCase
		from   model.CaseStatus
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.cases.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(c.FacilityID) {
			return apperrors.NotFound("surgical case", nil)
		}

		from = c.Status
		to, err := guard(op, c.Status)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(ctx, c); err != nil {
				return err
			}
		}
		c.Status = to

		if err := s.cases.Update(ctx, c); err != nil {
			return err
		}
		if err := s.events.Emit(ctx, eventType, model.AuditEntityCase, c.ID, newCaseEvent(c, from, reason)); err != nil {
			return err
		}
		if err := s.auditor.Log(ctx, actor, model.AuditActionTransition, model.AuditEntityCase, c.ID, &audit.LogOptions{
			Changes: map[string]interface{}{"operation": op, "from": from, "to": to},
			Reason:  reason,
		}); err != nil {
			return err
		}
		result = c
		return nil
	})
	if err != nil {
		err = s.mapWriteError(err)
		telemetry.RecordError(span, err)
		return nil, err
	}

	if from != result.Status {
		s.metrics.CaseTransitions.WithLabelValues(string(from), string(result.Status)).Inc()
	}
	return result, nil
}

func (s *Service) mapWriteError(err error) error {
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		s.metrics.StaleUpdates.Inc()
		return apperrors.StaleState("surgical case")
	case errors.Is(err, repository.ErrTheatreDoubleBooked):
		s.metrics.SchedulingConflicts.Inc()
		return apperrors.SchedulingConflict(nil)
	case apperrors.HasCode(err, apperrors.ErrSchedulingConflict):
		s.metrics.SchedulingConflicts.Inc()
	}
	return err
}

// UpdatePreOp records the pre-operative checklist and moves the case to PRE_OP.
func (s *Service) UpdatePreOp(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdatePreOpRequest) (*model.SurgicalCase, error) {
	return s.transition(ctx, actor, id, OpUpdatePreOp, model.EventCasePreOpUpdated, "", func(ctx context.Context, c *model.SurgicalCase) error {
		now := s.now().UTC()

		if req.Checklist != nil {
			checklist := make(model.JSONList[model.ChecklistItem], 0, len(req.Checklist))
			for _, item := range req.Checklist {
				if item.Checked && item.CheckedBy == nil {
					item.CheckedBy = &actor.UserID
				}
				if item.Checked && item.CheckedAt == nil {
					item.CheckedAt = &now
				}
				checklist = append(checklist, item)
			}
			c.PreOpChecklist = checklist
		}
		if req.PreOpNotes != nil {
			c.PreOpNotes = req.PreOpNotes
		}
		if req.ConsentSigned != nil {
			switch {
			case *req.ConsentSigned && !c.ConsentSigned:
				c.ConsentSigned = true
				c.ConsentSignedAt = &now
			case !*req.ConsentSigned:
				c.ConsentSigned = false
				c.ConsentSignedAt = nil
			}
		}
		if req.BloodAvailable != nil {
			c.BloodAvailable = *req.BloodAvailable
		}
		if req.AnesthesiaType != nil {
			c.AnesthesiaType = req.AnesthesiaType
		}
		if req.AnesthesiaNotes != nil {
			c.AnesthesiaNotes = req.AnesthesiaNotes
		}
		return nil
	})
}

// StartSurgery moves the case to IN_PROGRESS and marks the theatre IN_USE.
// Elective cases need signed consent.
func (s *Service) StartSurgery(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SurgicalCase, error) {
	return s.transition(ctx, actor, id, OpStart, model.EventCaseStarted, "", func(ctx context.Context, c *model.SurgicalCase) error {
		if c.Priority.RequiresConsent() && !c.ConsentSigned {
			return apperrors.ConsentRequired()
		}
		now := s.now().UTC()
		c.ActualStartTime = &now
		return s.theatreStatus.ApplyCaseStatus(ctx, c.TheatreID, model.TheatreStatusInUse, c.ID)
	})
}

// UpdateIntraOp merges operative notes. Complications and specimens are appended.
func (s *Service) UpdateIntraOp(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateIntraOpRequest) (*model.SurgicalCase, error) {
	return s.transition(ctx, actor, id, OpUpdateIntraOp, model.EventCaseIntraOpUpdated, "", func(ctx context.Context, c *model.SurgicalCase) error {
		if req.OperativeFindings != nil {
			c.OperativeFindings = req.OperativeFindings
		}
		if req.OperativeNotes != nil {
			c.OperativeNotes = req.OperativeNotes
		}
		if req.AnesthesiaNotes != nil {
			c.AnesthesiaNotes = req.AnesthesiaNotes
		}
		if req.BloodLossMl != nil {
			c.BloodLossMl = req.BloodLossMl
		}
		now := s.now().UTC()
		for _, comp := range req.Complications {
			if comp.OccurredAt.IsZero() {
				comp.OccurredAt = now
			}
			c.Complications = append(c.Complications, comp)
		}
		c.Specimens = append(c.Specimens, req.Specimens...)
		return nil
	})
}

// CompleteSurgery ends the operation, moves the case to POST_OP and sends
// the theatre to CLEANING.
func (s *Service) CompleteSurgery(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.CompleteSurgeryRequest) (*model.SurgicalCase, error) {
	destination, err := normalizeDestination(req.DischargeDestination)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, OpComplete, model.EventCaseCompleted, "", func(ctx context.Context, c *model.SurgicalCase) error {
		if c.ActualEndTime != nil {
			return apperrors.InvalidTransition(string(OpComplete), string(c.Status))
		}
		end := s.now().UTC()
		if c.ActualStartTime != nil && end.Before(*c.ActualStartTime) {
			end = *c.ActualStartTime
		}
		c.ActualEndTime = &end

		if req.OperativeFindings != nil {
			c.OperativeFindings = req.OperativeFindings
		}
		if req.OperativeNotes != nil {
			c.OperativeNotes = req.OperativeNotes
		}
		if req.BloodLossMl != nil {
			c.BloodLossMl = req.BloodLossMl
		}
		if req.PostOpDiagnosis != nil {
			c.PostOpDiagnosis = req.PostOpDiagnosis
		}
		if req.PostOpInstructions != nil {
			c.PostOpInstructions = req.PostOpInstructions
		}
		if req.RecoveryNotes != nil {
			c.RecoveryNotes = req.RecoveryNotes
		}
		if destination != nil {
			c.DischargeDestination = destination
		}
		return s.theatreStatus.ApplyCaseStatus(ctx, c.TheatreID, model.TheatreStatusCleaning, c.ID)
	})
}

// Discharge closes the case once the patient leaves recovery.
func (s *Service) Discharge(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.DischargeRequest) (*model.SurgicalCase, error) {
	destination, err := normalizeDestination(req.DischargeDestination)
	if err != nil {
		return nil, err
	}

	return s.transition(ctx, actor, id, OpDischarge, model.EventCaseDischarged, "", func(ctx context.Context, c *model.SurgicalCase) error {
		if req.RecoveryNotes != nil {
			c.RecoveryNotes = req.RecoveryNotes
		}
		if destination != nil {
			c.DischargeDestination = destination
		}
		now := s.now().UTC()
		c.DischargedFromTheatreAt = &now
		return nil
	})
}

func normalizeDestination(dest *string) (*string, error) {
	if dest == nil {
		return nil, nil
	}
	tag, err := model.NormalizeTag(*dest)
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid discharge destination %q", *dest), err)
	}
	return &tag, nil
}

// CancelCase cancels the case, or postpones it when a new date and time are
// given. The reason is appended to the case notes either way.
func (s *Service) CancelCase(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.CancelCaseRequest) (*model.SurgicalCase, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperrors.BadRequest("a reason is required", nil)
	}
	if (req.NewDate == nil) != (req.NewTime == nil) {
		return nil, apperrors.BadRequest("postponing needs both new_date and new_time", nil)
	}

	if !req.Postpone() {
		return s.transition(ctx, actor, id, OpCancel, model.EventCaseCancelled, reason, func(ctx context.Context, c *model.SurgicalCase) error {
			c.AppendNote(fmt.Sprintf("[%s] Cancelled: %s", s.now().UTC().Format(time.RFC3339), reason))
			return nil
		})
	}

	return s.transition(ctx, actor, id, OpPostpone, model.EventCasePostponed, reason, func(ctx context.Context, c *model.SurgicalCase) error {
		if err := validateWindow(model.Window{Start: *req.NewTime, Duration: c.EstimatedDurationMinutes}); err != nil {
			return err
		}
		c.AppendNote(fmt.Sprintf("[%s] Postponed from %s %s to %s %s: %s",
			s.now().UTC().Format(time.RFC3339),
			c.ScheduledDate, c.ScheduledTime, *req.NewDate, *req.NewTime, reason))
		c.ScheduledDate = *req.NewDate
		c.ScheduledTime = *req.NewTime
		return nil
	})
}

// RescheduleCase books a POSTPONED case back into SCHEDULED, optionally on a
// new theatre, date, time or duration. The window is checked against other
// scheduled cases under the theatre-day lock.
func (s *Service) RescheduleCase(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.RescheduleCaseRequest) (*model.SurgicalCase, error) {
	return s.transition(ctx, actor, id, OpReschedule, model.EventCaseRescheduled, "", func(ctx context.Context, c *model.SurgicalCase) error {
		if req.TheatreID != nil && *req.TheatreID != c.TheatreID {
			if _, err := s.bookableTheatre(ctx, c.FacilityID, *req.TheatreID); err != nil {
				return err
			}
			c.TheatreID = *req.TheatreID
		}
		if req.ScheduledDate != nil {
			c.ScheduledDate = *req.ScheduledDate
		}
		if req.ScheduledTime != nil {
			c.ScheduledTime = *req.ScheduledTime
		}
		if req.EstimatedDurationMinutes != nil {
			c.EstimatedDurationMinutes = *req.EstimatedDurationMinutes
		}
		if err := validateWindow(c.Window()); err != nil {
			return err
		}
		return s.ensureFree(ctx, c.TheatreID, c.ScheduledDate, c.Window(), &c.ID)
	})
}
