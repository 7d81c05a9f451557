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
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
)

type consumableRepository struct {
	BaseRepository
}

const consumableColumns = `id, case_id, inventory_item_id, item_code, item_name, category,
	quantity, unit, unit_cost, total_cost, batch_number, expiry_date, usage_phase, used_at,
	is_billable, is_deducted_from_stock, stock_deduction_error, recorded_by, notes,
	created_at, updated_at`

func (r *consumableRepository) Create(ctx context.Context, c *model.SurgeryConsumable) error {
	query := `
		INSERT INTO surgery_consumables (` + consumableColumns + `)
		VALUES (:id, :case_id, :inventory_item_id, :item_code, :item_name, :category,
			:quantity, :unit, :unit_cost, :total_cost, :batch_number, :expiry_date, :usage_phase, :used_at,
			:is_billable, :is_deducted_from_stock, :stock_deduction_error, :recorded_by, :notes,
			:created_at, :updated_at)
	`
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	if _, err := r.namedExec(ctx, query, c); err != nil {
		return fmt.Errorf("failed to create consumable: %w", err)
	}
	return nil
}

func (r *consumableRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.SurgeryConsumable, error) {
	query := `SELECT ` + consumableColumns + ` FROM surgery_consumables WHERE id = $1`

	var c model.SurgeryConsumable
	if err := r.get(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("consumable", err)
		}
		return nil, fmt.Errorf("failed to get consumable: %w", err)
	}
	return &c, nil
}

// Update writes the mutable fields. Unit cost is never updated.
func (r *consumableRepository) Update(ctx context.Context, c *model.SurgeryConsumable) error {
	query := `
		UPDATE surgery_consumables
		SET quantity = :quantity, total_cost = :total_cost, notes = :notes,
			is_deducted_from_stock = :is_deducted_from_stock,
			stock_deduction_error = :stock_deduction_error, updated_at = :updated_at
		WHERE id = :id
	`
	c.UpdatedAt = time.Now().UTC()

	n, err := r.namedExec(ctx, query, c)
	if err != nil {
		return fmt.Errorf("failed to update consumable: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("consumable", nil)
	}
	return nil
}

func (r *consumableRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.exec(ctx, `DELETE FROM surgery_consumables WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete consumable: %w", err)
	}
	if n == 0 {
		return apperrors.NotFound("consumable", nil)
	}
	return nil
}

func (r *consumableRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.SurgeryConsumable, error) {
	query := `SELECT ` + consumableColumns + ` FROM surgery_consumables WHERE case_id = $1 ORDER BY used_at, created_at`

	items := []*model.SurgeryConsumable{}
	if err := r.selectAll(ctx, &items, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list consumables: %w", err)
	}
	return items, nil
}

// CostByItem aggregates consumables of cases whose actual start falls within
// [from, to] inclusive of both days.
func (r *consumableRepository) CostByItem(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]model.ItemCostLine, error) {
	query, args, err := dialect.From(goqu.T("surgery_consumables").As("sc")).
		Join(goqu.T("surgery_cases").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("sc.case_id")))).
		Select(
			goqu.I("sc.inventory_item_id").As("inventory_item_id"),
			goqu.MAX(goqu.I("sc.item_code")).As("item_code"),
			goqu.MAX(goqu.I("sc.item_name")).As("item_name"),
			goqu.SUM(goqu.I("sc.quantity")).As("total_quantity"),
			goqu.SUM(goqu.I("sc.total_cost")).As("total_cost"),
			goqu.COUNT(goqu.DISTINCT(goqu.I("sc.case_id"))).As("case_count"),
		).
		Where(
			goqu.I("c.facility_id").Eq(facilityID.String()),
			goqu.I("c.actual_start_time").Gte(from.Time),
			goqu.I("c.actual_start_time").Lt(to.AddDays(1).Time),
		).
		GroupBy(goqu.I("sc.inventory_item_id")).
		Order(goqu.L("total_cost").Desc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build cost report query: %w", err)
	}

	lines := []model.ItemCostLine{}
	if err := r.selectAll(ctx, &lines, query, args...); err != nil {
		return nil, fmt.Errorf("failed to build cost report: %w", err)
	}
	return lines, nil
}
