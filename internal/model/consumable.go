package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ConsumableCategory string

const (
	CategorySurgicalSupplies      ConsumableCategory = "SURGICAL_SUPPLIES"
	CategoryAnesthesia            ConsumableCategory = "ANESTHESIA"
	CategorySutures               ConsumableCategory = "SUTURES"
	CategoryMedications           ConsumableCategory = "MEDICATIONS"
	CategoryImplants              ConsumableCategory = "IMPLANTS"
	CategoryDisposableInstruments ConsumableCategory = "DISPOSABLE_INSTRUMENTS"
	CategoryDressings             ConsumableCategory = "DRESSINGS"
	CategoryFluids                ConsumableCategory = "FLUIDS"
	CategoryBloodProducts         ConsumableCategory = "BLOOD_PRODUCTS"
	CategoryOther                 ConsumableCategory = "OTHER"
)

func (c ConsumableCategory) Valid() bool {
	switch c {
	case CategorySurgicalSupplies, CategoryAnesthesia, CategorySutures, CategoryMedications,
		CategoryImplants, CategoryDisposableInstruments, CategoryDressings, CategoryFluids,
		CategoryBloodProducts, CategoryOther:
		return true
	}
	return false
}

// SurgeryConsumable is one line of material used in a case. Item code and
// name are copied from the catalogue when the line is recorded.
type SurgeryConsumable struct {
	Base
	CaseID              uuid.UUID          `json:"case_id" db:"case_id"`
	InventoryItemID     uuid.UUID          `json:"inventory_item_id" db:"inventory_item_id"`
	ItemCode            string             `json:"item_code" db:"item_code"`
	ItemName            string             `json:"item_name" db:"item_name"`
	Category            ConsumableCategory `json:"category" db:"category"`
	Quantity            decimal.Decimal    `json:"quantity" db:"quantity"`
	Unit                string             `json:"unit" db:"unit"`
	UnitCost            decimal.Decimal    `json:"unit_cost" db:"unit_cost"`
	TotalCost           decimal.Decimal    `json:"total_cost" db:"total_cost"`
	BatchNumber         *string            `json:"batch_number,omitempty" db:"batch_number"`
	ExpiryDate          *Date              `json:"expiry_date,omitempty" db:"expiry_date"`
	UsagePhase          string             `json:"usage_phase" db:"usage_phase"`
	UsedAt              time.Time          `json:"used_at" db:"used_at"`
	IsBillable          bool               `json:"is_billable" db:"is_billable"`
	IsDeductedFromStock bool               `json:"is_deducted_from_stock" db:"is_deducted_from_stock"`
	StockDeductionError *string            `json:"stock_deduction_error,omitempty" db:"stock_deduction_error"`
	RecordedBy          uuid.UUID          `json:"recorded_by" db:"recorded_by"`
	Notes               *string            `json:"notes,omitempty" db:"notes"`
}

// Recompute sets TotalCost to Quantity x UnitCost.
func (c *SurgeryConsumable) Recompute() {
	c.TotalCost = c.Quantity.Mul(c.UnitCost)
}

type RecordConsumableRequest struct {
	InventoryItemID uuid.UUID          `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal    `json:"quantity"`
	UnitCost        decimal.Decimal    `json:"unit_cost"`
	Category        ConsumableCategory `json:"category" binding:"required,consumable_category"`
	UsagePhase      string             `json:"usage_phase" binding:"required,open_tag"`
	BatchNumber     *string            `json:"batch_number" binding:"omitempty,max=50"`
	ExpiryDate      *Date              `json:"expiry_date"`
	UsedAt          *time.Time         `json:"used_at"`
	IsBillable      *bool              `json:"is_billable"`
	DeductFromStock bool               `json:"deduct_from_stock"`
	Notes           *string            `json:"notes"`
}

type UpdateConsumableRequest struct {
	Quantity *decimal.Decimal `json:"quantity"`
	Notes    *string          `json:"notes"`
}

// CostSummary totals one case's consumables.
type CostSummary struct {
	CaseID       uuid.UUID                  `json:"case_id"`
	LineCount    int                        `json:"line_count"`
	TotalCost    decimal.Decimal            `json:"total_cost"`
	BillableCost decimal.Decimal            `json:"billable_cost"`
	ByCategory   map[string]decimal.Decimal `json:"by_category"`
	ByUsagePhase map[string]decimal.Decimal `json:"by_usage_phase"`
	PendingStock int                        `json:"pending_stock_reconciliation"`
}

// ItemCostLine is one row of the facility cost report.
type ItemCostLine struct {
	InventoryItemID uuid.UUID       `json:"inventory_item_id" db:"inventory_item_id"`
	ItemCode        string          `json:"item_code" db:"item_code"`
	ItemName        string          `json:"item_name" db:"item_name"`
	TotalQuantity   decimal.Decimal `json:"total_quantity" db:"total_quantity"`
	TotalCost       decimal.Decimal `json:"total_cost" db:"total_cost"`
	CaseCount       int             `json:"case_count" db:"case_count"`
}

type CostReport struct {
	FacilityID uuid.UUID       `json:"facility_id"`
	From       Date            `json:"from"`
	To         Date            `json:"to"`
	Items      []ItemCostLine  `json:"items"`
	TotalCost  decimal.Decimal `json:"total_cost"`
}
