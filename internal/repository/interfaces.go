package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
)

type (
	// Transactor runs fn in a transaction carried by the context it passes
	// to fn. Repository calls made with that context join the transaction.
	Transactor interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	TheatreRepository interface {
		Create(ctx context.Context, theatre *model.Theatre) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.Theatre, error)
		List(ctx context.Context, filter model.TheatreFilter) ([]*model.Theatre, error)
		Update(ctx context.Context, theatre *model.Theatre) error
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.TheatreStatus) error
		CountByStatus(ctx context.Context, facilityID uuid.UUID) (map[model.TheatreStatus]int, error)
	}

	SurgicalCaseRepository interface {
		Create(ctx context.Context, c *model.SurgicalCase) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.SurgicalCase, error)
		// Update writes c if its version is unchanged and bumps c.Version.
		Update(ctx context.Context, c *model.SurgicalCase) error
		List(ctx context.Context, filter model.CaseFilter) ([]*model.SurgicalCase, int, error)
		// LockTheatreDay serializes bookings on one theatre and date until the
		// surrounding transaction ends.
		LockTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) error
		FindScheduledOnTheatreDay(ctx context.Context, theatreID uuid.UUID, date model.Date) ([]*model.SurgicalCase, error)
		ListByFacilityDates(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]*model.SurgicalCase, error)
		ListByStatus(ctx context.Context, facilityID uuid.UUID, status model.CaseStatus) ([]*model.SurgicalCase, error)
		CountByDateAndStatus(ctx context.Context, facilityID uuid.UUID, date model.Date, status model.CaseStatus) (int, error)
	}

	CaseNumberRepository interface {
		// Next returns the next sequence value for the facility and day.
		Next(ctx context.Context, facilityID uuid.UUID, date model.Date) (int, error)
	}

	ConsumableRepository interface {
		Create(ctx context.Context, c *model.SurgeryConsumable) error
		GetByID(ctx context.Context, id uuid.UUID) (*model.SurgeryConsumable, error)
		Update(ctx context.Context, c *model.SurgeryConsumable) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.SurgeryConsumable, error)
		CostByItem(ctx context.Context, facilityID uuid.UUID, from, to model.Date) ([]model.ItemCostLine, error)
	}

	InventoryRepository interface {
		GetItem(ctx context.Context, id uuid.UUID) (*model.InventoryItem, error)
		DeductStock(ctx context.Context, d model.StockDeduction) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, final bool) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
	}
)
