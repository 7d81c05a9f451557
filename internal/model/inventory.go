package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InventoryItem is the catalogue view the ledger snapshots from.
type InventoryItem struct {
	Base
	FacilityID      uuid.UUID       `json:"facility_id" db:"facility_id"`
	Code            string          `json:"code" db:"code"`
	Name            string          `json:"name" db:"name"`
	Unit            string          `json:"unit" db:"unit"`
	QuantityOnHand  decimal.Decimal `json:"quantity_on_hand" db:"quantity_on_hand"`
	DefaultUnitCost decimal.Decimal `json:"default_unit_cost" db:"default_unit_cost"`
}

const ReferenceTypeSurgeryConsumable = "SURGERY_CONSUMABLE"

// StockDeduction asks the inventory collaborator to decrement on-hand stock.
type StockDeduction struct {
	ItemID        uuid.UUID
	FacilityID    uuid.UUID
	Quantity      decimal.Decimal
	ReferenceType string
	ReferenceID   uuid.UUID
	ActorID       uuid.UUID
}
