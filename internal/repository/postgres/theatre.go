package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

type theatreRepository struct {
	BaseRepository
}

const theatreColumns = `id, facility_id, name, code, type, status, location, capacity, is_active, created_at, updated_at`

func (r *theatreRepository) Create(ctx context.Context, theatre *model.Theatre) error {
	query := `
		INSERT INTO theatres (` + theatreColumns + `)
		VALUES (:id, :facility_id, :name, :code, :type, :status, :location, :capacity, :is_active, :created_at, :updated_at)
	`
	if theatre.ID == uuid.Nil {
		theatre.ID = uuid.New()
	}
	now := time.Now().UTC()
	theatre.CreatedAt = now
	theatre.UpdatedAt = now

	if _, err := r.namedExec(ctx, query, theatre); err != nil {
		if isViolation(err, codeUniqueViolation, constraintTheatreCode) {
			return apperrors.DuplicateCode(theatre.Code)
		}
		return fmt.Errorf("failed to create theatre: %w", err)
	}
	return nil
}

func (r *theatreRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Theatre, error) {
	query := `SELECT ` + theatreColumns + ` FROM theatres WHERE id = $1`

	var theatre model.Theatre
	if err := r.get(ctx, &theatre, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("theatre", err)
		}
		return nil, fmt.Errorf("failed to get theatre: %w", err)
	}
	return &theatre, nil
}

func (r *theatreRepository) List(ctx context.Context, filter model.TheatreFilter) ([]*model.Theatre, error) {
	query := `SELECT ` + theatreColumns + ` FROM theatres WHERE facility_id = $1`
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY name ASC`

	theatres := []*model.Theatre{}
	if err := r.selectAll(ctx, &theatres, query, filter.FacilityID); err != nil {
		return nil, fmt.Errorf("failed to list theatres: %w", err)
	}
	return theatres, nil
}

func (r *theatreRepository) Update(ctx context.Context, theatre *model.Theatre) error {
	query := `
		UPDATE theatres
		SET name = :name, type = :type, location = :location, capacity = :capacity,
			is_active = :is_active, updated_at = :updated_at
		WHERE id = :id
	`
	theatre.UpdatedAt = time.Now().UTC()

	n, err := r.namedExec(ctx, query, theatre)
	if err != nil {
		return fmt.Errorf("failed to update theatre: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("theatre", nil)
	}
	return nil
}

func (r *theatreRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TheatreStatus) error {
	query := `UPDATE theatres SET status = $1, updated_at = $2 WHERE id = $3`

	n, err := r.exec(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update theatre status: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("theatre", nil)
	}
	return nil
}

func (r *theatreRepository) CountByStatus(ctx context.Context, facilityID uuid.UUID) (map[model.TheatreStatus]int, error) {
	query := `
		SELECT status, COUNT(*) AS count
		FROM theatres
		WHERE facility_id = $1 AND is_active
		GROUP BY status
	`
	var rows []struct {
		Status model.TheatreStatus `db:"status"`
		Count  int                 `db:"count"`
	}
	if err := r.selectAll(ctx, &rows, query, facilityID); err != nil {
		return nil, fmt.Errorf("failed to count theatres: %w", err)
	}

	counts := make(map[model.TheatreStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
