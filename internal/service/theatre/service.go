package theatre

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
)

type TheatreServicer interface {
	RegisterTheatre(ctx context.Context, actor model.Actor, req *model.CreateTheatreRequest) (*model.Theatre, error)
	GetTheatre(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Theatre, error)
	ListTheatres(ctx context.Context, actor model.Actor, facilityID uuid.UUID, activeOnly bool) ([]*model.Theatre, error)
	UpdateTheatre(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateTheatreRequest) (*model.Theatre, error)
	DeactivateTheatre(ctx context.Context, actor model.Actor, id uuid.UUID) error
	SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.SetTheatreStatusRequest) (*model.Theatre, error)
	ApplyCaseStatus(ctx context.Context, theatreID uuid.UUID, status model.TheatreStatus, caseID uuid.UUID) error
}

type Service struct {
	tx       repository.Transactor
	theatres repository.TheatreRepository
	cases    repository.SurgicalCaseRepository
	auditor  *audit.Service
	events   *event.EventService
	logger   *logger.Logger
}

func NewService(
	tx repository.Transactor,
	theatres repository.TheatreRepository,
	cases repository.SurgicalCaseRepository,
	auditor *audit.Service,
	events *event.EventService,
	logger *logger.Logger,
) *Service {
	return &Service{
		tx:       tx,
		theatres: theatres,
		cases:    cases,
		auditor:  auditor,
		events:   events,
		logger:   logger,
	}
}

type statusChanged struct {
	TheatreID uuid.UUID           `json:"theatre_id"`
	From      model.TheatreStatus `json:"from"`
	To        model.TheatreStatus `json:"to"`
	Source    string              `json:"source"`
	CaseID    *uuid.UUID          `json:"case_id,omitempty"`
	Reason    string              `json:"reason,omitempty"`
}

// RegisterTheatre creates an AVAILABLE, active theatre.
func (s *Service) RegisterTheatre(ctx context.Context, actor model.Actor, req *model.CreateTheatreRequest) (*model.Theatre, error) {
	if err := checkFacility(actor, req.FacilityID); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid theatre type %q", req.Type), nil)
	}

	theatre := &model.Theatre{
		FacilityID: req.FacilityID,
		Name:       strings.TrimSpace(req.Name),
		Code:       strings.ToUpper(strings.TrimSpace(req.Code)),
		Type:       req.Type,
		Status:     model.TheatreStatusAvailable,
		Location:   req.Location,
		Capacity:   req.Capacity,
		IsActive:   true,
	}
	if theatre.Name == "" || theatre.Code == "" {
		return nil, apperrors.BadRequest("theatre name and code are required", nil)
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.theatres.Create(ctx, theatre); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityTheatre, theatre.ID,
			&audit.LogOptions{Changes: theatre})
	})
	if err != nil {
		return nil, err
	}
	return theatre, nil
}

func (s *Service) GetTheatre(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Theatre, error) {
	theatre, err := s.theatres.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(theatre.FacilityID) {
		return nil, apperrors.NotFound("theatre", nil)
	}
	return theatre, nil
}

// ListTheatres returns the facility's theatres ordered by name.
func (s *Service) ListTheatres(ctx context.Context, actor model.Actor, facilityID uuid.UUID, activeOnly bool) ([]*model.Theatre, error) {
	if !actor.CanAccess(facilityID) {
		return nil, apperrors.Forbidden("cannot list another facility's theatres")
	}
	theatres, err := s.theatres.List(ctx, model.TheatreFilter{FacilityID: facilityID, ActiveOnly: activeOnly})
	if err != nil {
		return nil, fmt.Errorf("failed to list theatres: %w", err)
	}
	return theatres, nil
}

func (s *Service) UpdateTheatre(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateTheatreRequest) (*model.Theatre, error) {
	var theatre *model.Theatre
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		theatre, err = s.theatres.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkFacility(actor, theatre.FacilityID); err != nil {
			return err
		}

		if req.Name != nil {
			theatre.Name = strings.TrimSpace(*req.Name)
		}
		if req.Type != nil {
			if !req.Type.Valid() {
				return apperrors.BadRequest(fmt.Sprintf("invalid theatre type %q", *req.Type), nil)
			}
			theatre.Type = *req.Type
		}
		if req.Location != nil {
			theatre.Location = req.Location
		}
		if req.Capacity != nil {
			theatre.Capacity = req.Capacity
		}

		if err := s.theatres.Update(ctx, theatre); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityTheatre, id,
			&audit.LogOptions{Changes: req})
	})
	if err != nil {
		return nil, err
	}
	return theatre, nil
}

// DeactivateTheatre hides the theatre from active listings. Theatres are never deleted.
func (s *Service) DeactivateTheatre(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		theatre, err := s.theatres.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkFacility(actor, theatre.FacilityID); err != nil {
			return err
		}
		if !theatre.IsActive {
			return nil
		}

		theatre.IsActive = false
		if err := s.theatres.Update(ctx, theatre); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionDeactivate, model.AuditEntityTheatre, id, nil)
	})
}

// SetStatus overwrites the theatre status without checking in-flight cases.
// The override is audited separately from automatic case-driven changes.
func (s *Service) SetStatus(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.SetTheatreStatusRequest) (*model.Theatre, error) {
	if !req.Status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid theatre status %q", req.Status), nil)
	}

	var theatre *model.Theatre
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		theatre, err = s.theatres.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := checkFacility(actor, theatre.FacilityID); err != nil {
			return err
		}

		if req.Status == model.TheatreStatusOutOfService || req.Status == model.TheatreStatusMaintenance {
			s.warnIfOccupied(ctx, theatre, req.Status)
		}

		from := theatre.Status
		if err := s.theatres.UpdateStatus(ctx, id, req.Status); err != nil {
			return err
		}
		theatre.Status = req.Status

		change := statusChanged{TheatreID: id, From: from, To: req.Status, Source: "override", Reason: req.Reason}
		if err := s.auditor.Log(ctx, actor, model.AuditActionStatusOverride, model.AuditEntityTheatre, id,
			&audit.LogOptions{Changes: change, Reason: req.Reason}); err != nil {
			return err
		}
		return s.events.Emit(ctx, model.EventTheatreStatusChanged, model.AuditEntityTheatre, id, change)
	})
	if err != nil {
		return nil, err
	}
	return theatre, nil
}

// ApplyCaseStatus is the automatic status change driven by a case
// transition. It joins the caller's transaction.
func (s *Service) ApplyCaseStatus(ctx context.Context, theatreID uuid.UUID, status model.TheatreStatus, caseID uuid.UUID) error {
	theatre, err := s.theatres.GetByID(ctx, theatreID)
	if err != nil {
		return err
	}
	if theatre.Status == status {
		return nil
	}
	if err := s.theatres.UpdateStatus(ctx, theatreID, status); err != nil {
		return err
	}
	return s.events.Emit(ctx, model.EventTheatreStatusChanged, model.AuditEntityTheatre, theatreID, statusChanged{
		TheatreID: theatreID,
		From:      theatre.Status,
		To:        status,
		Source:    "case",
		CaseID:    &caseID,
	})
}

func (s *Service) warnIfOccupied(ctx context.Context, theatre *model.Theatre, status model.TheatreStatus) {
	inProgress, err := s.cases.ListByStatus(ctx, theatre.FacilityID, model.CaseStatusInProgress)
	if err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to check in-progress cases", "theatre_id", theatre.ID.String())
		return
	}
	for _, c := range inProgress {
		if c.TheatreID == theatre.ID {
			s.logger.WithContext(ctx).Warn("theatre status overridden while a case is in progress",
				"theatre_id", theatre.ID.String(),
				"case_number", c.CaseNumber,
				"status", string(status))
		}
	}
}

func checkFacility(actor model.Actor, facilityID uuid.UUID) error {
	if !actor.CanAccess(facilityID) {
		return apperrors.Forbidden("theatre belongs to another facility")
	}
	return nil
}
