package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/theatre-api/internal/repository"
)

func NewTransactor(db *sqlx.DB) repository.Transactor {
	base := NewBaseRepository(db)
	return &base
}

func NewTheatreRepository(db *sqlx.DB) repository.TheatreRepository {
	return &theatreRepository{NewBaseRepository(db)}
}

func NewSurgicalCaseRepository(db *sqlx.DB) repository.SurgicalCaseRepository {
	return &surgicalCaseRepository{NewBaseRepository(db)}
}

func NewCaseNumberRepository(db *sqlx.DB) repository.CaseNumberRepository {
	return &caseNumberRepository{NewBaseRepository(db)}
}

func NewConsumableRepository(db *sqlx.DB) repository.ConsumableRepository {
	return &consumableRepository{NewBaseRepository(db)}
}

func NewInventoryRepository(db *sqlx.DB) repository.InventoryRepository {
	return &inventoryRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{NewBaseRepository(db)}
}
