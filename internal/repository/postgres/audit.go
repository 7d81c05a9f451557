package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
)

type auditRepository struct {
	BaseRepository
}

func (r *auditRepository) Create(ctx context.Context, log *model.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, facility_id, action, entity_type, entity_id, changes, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	log.CreatedAt = time.Now().UTC()

	changes := "{}"
	if len(log.Changes) > 0 {
		changes = string(log.Changes)
	}

	if _, err := r.exec(ctx, query,
		log.ID, log.UserID, log.FacilityID, log.Action, log.EntityType, log.EntityID,
		changes, log.Reason, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

func (r *auditRepository) List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error) {
	ds := dialect.From("audit_logs").Select(
		"id", "user_id", "facility_id", "action", "entity_type", "entity_id", "changes", "reason", "created_at",
	)
	if filter.EntityType != "" {
		ds = ds.Where(goqu.Ex{"entity_type": filter.EntityType})
	}
	if filter.EntityID != nil {
		ds = ds.Where(goqu.Ex{"entity_id": filter.EntityID.String()})
	}
	if filter.FacilityID != nil {
		ds = ds.Where(goqu.Ex{"facility_id": filter.FacilityID.String()})
	}

	page := filter.Pagination.Normalize()
	query, args, err := ds.Order(goqu.I("created_at").Desc()).
		Limit(uint(page.Limit)).
		Offset(uint(page.Offset)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build audit query: %w", err)
	}

	logs := []*model.AuditLog{}
	if err := r.selectAll(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return logs, nil
}
