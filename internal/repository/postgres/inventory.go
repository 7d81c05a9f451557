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

// inventoryRepository backs the inventory collaborator with the shared
// inventory_items table.
type inventoryRepository struct {
	BaseRepository
}

func (r *inventoryRepository) GetItem(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error) {
	query := `
		SELECT id, facility_id, code, name, unit, quantity_on_hand, default_unit_cost, created_at, updated_at
		FROM inventory_items
		WHERE id = $1
	`
	var item model.InventoryItem
	if err := r.get(ctx, &item, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("inventory item", err)
		}
		return nil, fmt.Errorf("failed to get inventory item: %w", err)
	}
	return &item, nil
}

func (r *inventoryRepository) DeductStock(ctx context.Context, d model.StockDeduction) error {
	return r.WithinTx(ctx, func(ctx context.Context) error {
		query := `
			UPDATE inventory_items
			SET quantity_on_hand = quantity_on_hand - $1, updated_at = $2
			WHERE id = $3 AND facility_id = $4 AND quantity_on_hand >= $1
		`
		n, err := r.exec(ctx, query, d.Quantity, time.Now().UTC(), d.ItemID, d.FacilityID)
		if err != nil {
			return fmt.Errorf("failed to deduct stock: %w", err)
		}
		if n == 0 {
			var exists bool
			if err := r.get(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM inventory_items WHERE id = $1 AND facility_id = $2)`,
				d.ItemID, d.FacilityID); err != nil {
				return fmt.Errorf("failed to check inventory item: %w", err)
			}
			if !exists {
				return apperrors.NotFound("inventory item", nil)
			}
			return apperrors.InsufficientStock(fmt.Errorf("item %s: requested %s", d.ItemID, d.Quantity))
		}

		movement := `
			INSERT INTO inventory_movements (id, item_id, facility_id, quantity, reference_type, reference_id, actor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		if _, err := r.exec(ctx, movement, uuid.New(), d.ItemID, d.FacilityID, d.Quantity.Neg(),
			d.ReferenceType, d.ReferenceID, d.ActorID, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		return nil
	})
}
