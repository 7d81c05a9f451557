package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

type surgicalCaseRepository struct {
	BaseRepository
}

var caseColumns = []interface{}{
	"id", "case_number", "patient_id", "encounter_id", "theatre_id", "facility_id",
	"procedure_name", "procedure_code", "diagnosis", "surgery_type", "priority", "status",
	"scheduled_date", "scheduled_time", "estimated_duration_minutes",
	"actual_start_time", "actual_end_time",
	"lead_surgeon_id", "assistant_surgeon_id", "anesthesiologist_id", "nursing_team",
	"anesthesia_type", "anesthesia_notes",
	"pre_op_checklist", "pre_op_notes", "consent_signed", "consent_signed_at", "blood_available",
	"operative_findings", "operative_notes", "complications", "blood_loss_ml", "specimens",
	"post_op_diagnosis", "post_op_instructions", "recovery_notes", "discharge_destination",
	"discharged_from_theatre_at", "notes", "created_by", "version", "created_at", "updated_at",
}

const insertCaseQuery = `
	INSERT INTO surgery_cases (
		id, case_number, patient_id, encounter_id, theatre_id, facility_id,
		procedure_name, procedure_code, diagnosis, surgery_type, priority, status,
		scheduled_date, scheduled_time, estimated_duration_minutes,
		lead_surgeon_id, assistant_surgeon_id, anesthesiologist_id, nursing_team,
		anesthesia_type, pre_op_checklist, complications, specimens,
		notes, created_by, version, created_at, updated_at
	) VALUES (
		:id, :case_number, :patient_id, :encounter_id, :theatre_id, :facility_id,
		:procedure_name, :procedure_code, :diagnosis, :surgery_type, :priority, :status,
		:scheduled_date, :scheduled_time, :estimated_duration_minutes,
		:lead_surgeon_id, :assistant_surgeon_id, :anesthesiologist_id, :nursing_team,
		:anesthesia_type, :pre_op_checklist, :complications, :specimens,
		:notes, :created_by, :version, :created_at, :updated_at
	)
`

const updateCaseQuery = `
	UPDATE surgery_cases SET
		theatre_id = :theatre_id,
		status = :status,
		scheduled_date = :scheduled_date,
		scheduled_time = :scheduled_time,
		estimated_duration_minutes = :estimated_duration_minutes,
		actual_start_time = :actual_start_time,
		actual_end_time = :actual_end_time,
		anesthesia_type = :anesthesia_type,
		anesthesia_notes = :anesthesia_notes,
		pre_op_checklist = :pre_op_checklist,
		pre_op_notes = :pre_op_notes,
		consent_signed = :consent_signed,
		consent_signed_at = :consent_signed_at,
		blood_available = :blood_available,
		operative_findings = :operative_findings,
		operative_notes = :operative_notes,
		complications = :complications,
		blood_loss_ml = :blood_loss_ml,
		specimens = :specimens,
		post_op_diagnosis = :post_op_diagnosis,
		post_op_instructions = :post_op_instructions,
		recovery_notes = :recovery_notes,
		discharge_destination = :discharge_destination,
		discharged_from_theatre_at = :discharged_from_theatre_at,
		notes = :notes,
		version = :version + 1,
		updated_at = :updated_at
	WHERE id = :id AND version = :version
`

func (r *surgicalCaseRepository) Create(ctx context.Context, c *model.SurgicalCase) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1

	if _, err := r.namedExec(ctx, insertCaseQuery, c); err != nil {
		return mapError(fmt.Errorf("failed to create surgical case: %w", err))
	}
	return nil
}

func (r *surgicalCaseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SurgicalCase, error) {
	query, args, err := dialect.From("surgery_cases").
		Select(caseColumns...).
		Where(goqu.Ex{"id": id.String()}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build case query: %w", err)
	}

	var c model.SurgicalCase
	if err := r.get(ctx, &c, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("surgical case", err)
		}
		return nil, fmt.Errorf("failed to get surgical case: %w", err)
	}
	return &c, nil
}

func (r *surgicalCaseRepository) Update(ctx context.Context, c *model.SurgicalCase) error {
	c.UpdatedAt = time.Now().UTC()

	n, err := r.namedExec(ctx, updateCaseQuery, c)
	if err != nil {
		return mapError(fmt.Errorf("failed to update surgical case: %w", err))
	}
	if n == 0 {
		return repository.ErrStaleVersion
	}
	c.Version++
	return nil
}

func (r *surgicalCaseRepository) List(ctx context.Context, filter model.CaseFilter) ([]*model.SurgicalCase, int, error) {
	ds := dialect.From("surgery_cases").Where(goqu.Ex{"facility_id": filter.FacilityID.String()})

	if filter.TheatreID != nil {
		ds = ds.Where(goqu.Ex{"theatre_id": filter.TheatreID.String()})
	}
	if filter.Status != nil {
		ds = ds.Where(goqu.Ex{"status": string(*filter.Status)})
	}
	if filter.SurgeonID != nil {
		ds = ds.Where(goqu.Ex{"lead_surgeon_id": filter.SurgeonID.String()})
	}
	if filter.PatientID != nil {
		ds = ds.Where(goqu.Ex{"patient_id": filter.PatientID.String()})
	}
	if filter.From != nil {
		ds = ds.Where(goqu.C("scheduled_date").Gte(filter.From.String()))
	}
	if filter.To != nil {
		ds = ds.Where(goqu.C("scheduled_date").Lte(filter.To.String()))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.get(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count surgical cases: %w", err)
	}

	page := filter.Pagination.Normalize()
	listSQL, listArgs, err := ds.Select(caseColumns...).
		Order(goqu.I("scheduled_date").Asc(), goqu.I("scheduled_time").Asc(), goqu.I("case_number").Asc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	cases := []*model.SurgicalCase{}
	if err := r.selectAll(ctx, &cases, listSQL, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list surgical cases: %w", err)
	}
	return cases, total, nil
}

func (r *surgicalCaseRepository) LockTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) error {
	if TxFromContext(ctx) == nil {
		return errors.New("theatre day lock requires a transaction")
	}
	key := theatreID.String() + "/" + date.String()
	if _, err := r.exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("failed to lock theatre day: %w", err)
	}
	return nil
}

func (r *surgicalCaseRepository) FindScheduledOnTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) ([]*model.SurgicalCase, error) {
	query, args, err := dialect.From("surgery_cases").
		Select(caseColumns...).
		Where(goqu.Ex{
			"theatre_id":     theatreID.String(),
			"scheduled_date": date.String(),
			"status":         string(model.CaseStatusScheduled),
		}).
		Order(goqu.I("scheduled_time").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule query: %w", err)
	}

	cases := []*model.SurgicalCase{}
	if err := r.selectAll(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find scheduled cases: %w", err)
	}
	return cases, nil
}

func (r *surgicalCaseRepository) ListByFacilityDates(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]*model.SurgicalCase, error) {
	query, args, err := dialect.From("surgery_cases").
		Select(caseColumns...).
		Where(
			goqu.Ex{"facility_id": facilityID.String()},
			goqu.C("scheduled_date").Between(goqu.Range(from.String(), to.String())),
		).
		Order(goqu.I("scheduled_date").Asc(), goqu.I("theatre_id").Asc(), goqu.I("scheduled_time").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build schedule query: %w", err)
	}

	cases := []*model.SurgicalCase{}
	if err := r.selectAll(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", err)
	}
	return cases, nil
}

func (r *surgicalCaseRepository) ListByStatus(ctx context.Context, facilityID uuid.UUID, status model.CaseStatus) ([]*model.SurgicalCase, error) {
	query, args, err := dialect.From("surgery_cases").
		Select(caseColumns...).
		Where(goqu.Ex{"facility_id": facilityID.String(), "status": string(status)}).
		Order(goqu.I("actual_start_time").Asc().NullsLast(), goqu.I("scheduled_time").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build status query: %w", err)
	}

	cases := []*model.SurgicalCase{}
	if err := r.selectAll(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cases by status: %w", err)
	}
	return cases, nil
}

func (r *surgicalCaseRepository) CountByDateAndStatus(ctx context.Context, facilityID uuid.UUID, date model.Date, status model.CaseStatus) (int, error) {
	query := `
		SELECT COUNT(*) FROM surgery_cases
		WHERE facility_id = $1 AND scheduled_date = $2 AND status = $3
	`
	var n int
	if err := r.get(ctx, &n, query, facilityID, date, status); err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return n, nil
}
