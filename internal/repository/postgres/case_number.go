package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
)

type caseNumberRepository struct {
	BaseRepository
}

// Next increments the (facility, day) counter in a single statement, so
// concurrent callers never observe the same value. The counter never falls
// behind the highest committed number for the day, so a retry after a
// collision moves past it.
func (r *caseNumberRepository) Next(ctx context.Context, facilityID uuid.UUID, date model.Date) (int, error) {
	query := `
		WITH used AS (
			SELECT COALESCE(MAX(substring(case_number FROM '-([0-9]+)$')::int), 0) + 1 AS floor_value
			FROM surgery_cases
			WHERE facility_id = $1 AND case_number LIKE $3
		)
		INSERT INTO case_number_counters (facility_id, seq_date, last_value)
		SELECT $1, $2, floor_value FROM used
		ON CONFLICT (facility_id, seq_date)
		DO UPDATE SET last_value = GREATEST(case_number_counters.last_value + 1, EXCLUDED.last_value)
		RETURNING last_value
	`
	var next int
	if err := r.get(ctx, &next, query, facilityID, date, model.CaseNumberPrefix(date)+"%"); err != nil {
		return 0, fmt.Errorf("failed to allocate case number: %w", err)
	}
	return next, nil
}
