package consumable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	"github.com/jwalitptl/theatre-api/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

type ConsumableServicer interface {
	RecordUsage(ctx context.Context, actor model.Actor, caseID uuid.UUID, req *model.RecordConsumableRequest) (*model.SurgeryConsumable, error)
	UpdateUsage(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsumableRequest) (*model.SurgeryConsumable, error)
	DeleteUsage(ctx context.Context, actor model.Actor, id uuid.UUID) error
	ListUsage(ctx context.Context, actor model.Actor, caseID uuid.UUID) ([]*model.SurgeryConsumable, error)
	Summarize(ctx context.Context, actor model.Actor, caseID uuid.UUID) (*model.CostSummary, error)
	Report(ctx context.Context, actor model.Actor, facilityID uuid.UUID, from, to model.Date) (*model.CostReport, error)
}

type Service struct {
	tx          repository.Transactor
	consumables repository.ConsumableRepository
	cases       repository.SurgicalCaseRepository
	inventory   repository.InventoryRepository
	breaker     *circuitbreaker.CircuitBreaker
	auditor     *audit.Service
	events      *event.EventService
	metrics     *metrics.Metrics
	logger      *logger.Logger
	now         func() time.Time
}

func NewService(
	tx repository.Transactor,
	consumables repository.ConsumableRepository,
	cases repository.SurgicalCaseRepository,
	inventory repository.InventoryRepository,
	auditor *audit.Service,
	events *event.EventService,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		tx:          tx,
		consumables: consumables,
		cases:       cases,
		inventory:   inventory,
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:      "inventory",
			IsFailure: isInventoryOutage,
		}),
		auditor: auditor,
		events:  events,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// isInventoryOutage counts only infrastructure errors against the breaker.
// Business rejections from the inventory service mean it is healthy.
func isInventoryOutage(err error) bool {
	if err == nil {
		return false
	}
	return !apperrors.HasCode(err, apperrors.ErrInsufficientStock) && !apperrors.HasCode(err, apperrors.ErrNotFound)
}

type stockDeductionFailed struct {
	ConsumableID    uuid.UUID       `json:"consumable_id"`
	CaseID          uuid.UUID       `json:"case_id"`
	FacilityID      uuid.UUID       `json:"facility_id"`
	InventoryItemID uuid.UUID       `json:"inventory_item_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	Error           string          `json:"error"`
}

// RecordUsage stores a consumable line with the item code and name copied
// from the catalogue. Stock is deducted after the line is committed; a failed
// deduction leaves the line in place, flagged for reconciliation.
func (s *Service) RecordUsage(ctx context.Context, actor model.Actor, caseID uuid.UUID, req *model.RecordConsumableRequest) (*model.SurgeryConsumable, error) {
	if !req.Quantity.IsPositive() {
		return nil, apperrors.BadRequest("quantity must be positive", nil)
	}
	if req.UnitCost.IsNegative() {
		return nil, apperrors.BadRequest("unit cost cannot be negative", nil)
	}
	if !req.Category.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid category %q", req.Category), nil)
	}
	phase, err := model.NormalizeTag(req.UsagePhase)
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid usage phase %q", req.UsagePhase), err)
	}

	c, err := s.loadCase(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	item, err := s.inventory.GetItem(ctx, req.InventoryItemID)
	if err != nil {
		return nil, err
	}

	line := &model.SurgeryConsumable{
		CaseID:          caseID,
		InventoryItemID: item.ID,
		ItemCode:        item.Code,
		ItemName:        item.Name,
		Category:        req.Category,
		Quantity:        req.Quantity,
		Unit:            item.Unit,
		UnitCost:        req.UnitCost,
		BatchNumber:     req.BatchNumber,
		ExpiryDate:      req.ExpiryDate,
		UsagePhase:      phase,
		UsedAt:          s.now().UTC(),
		IsBillable:      true,
		RecordedBy:      actor.UserID,
		Notes:           req.Notes,
	}
	if req.UsedAt != nil {
		line.UsedAt = req.UsedAt.UTC()
	}
	if req.IsBillable != nil {
		line.IsBillable = *req.IsBillable
	}
	line.Recompute()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.consumables.Create(ctx, line); err != nil {
			return err
		}
		if err := s.events.Emit(ctx, model.EventConsumableRecorded, model.AuditEntityConsumable, line.ID, line); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionCreate, model.AuditEntityConsumable, line.ID,
			&audit.LogOptions{Changes: line})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record consumable: %w", err)
	}
	s.metrics.ConsumablesRecorded.WithLabelValues(string(line.Category)).Inc()

	if req.DeductFromStock {
		s.deductStock(ctx, actor, c, line)
	}
	return line, nil
}

// deductStock never fails the recording. The outcome is written back to the line.
func (s *Service) deductStock(ctx context.Context, actor model.Actor, c *model.SurgicalCase, line *model.SurgeryConsumable) {
	err := s.breaker.Execute(func() error {
		return s.inventory.DeductStock(ctx, model.StockDeduction{
			ItemID:        line.InventoryItemID,
			FacilityID:    c.FacilityID,
			Quantity:      line.Quantity,
			ReferenceType: model.ReferenceTypeSurgeryConsumable,
			ReferenceID:   line.ID,
			ActorID:       actor.UserID,
		})
	})

	if err == nil {
		line.IsDeductedFromStock = true
		if err := s.consumables.Update(ctx, line); err != nil {
			s.logger.WithContext(ctx).Error(err, "failed to mark consumable as deducted",
				"consumable_id", line.ID.String())
		}
		return
	}

	msg := err.Error()
	if errors.Is(err, circuitbreaker.ErrOpen) {
		msg = "inventory service unavailable"
	}
	line.StockDeductionError = &msg
	s.metrics.StockDeductionFailures.Inc()
	s.logger.WithContext(ctx).Warn("stock deduction failed, consumable kept for reconciliation",
		"consumable_id", line.ID.String(),
		"item_code", line.ItemCode,
		"quantity", line.Quantity.String(),
		"error", msg)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.consumables.Update(ctx, line); err != nil {
			return err
		}
		return s.events.Emit(ctx, model.EventStockDeductionFailed, model.AuditEntityConsumable, line.ID, stockDeductionFailed{
			ConsumableID:    line.ID,
			CaseID:          line.CaseID,
			FacilityID:      c.FacilityID,
			InventoryItemID: line.InventoryItemID,
			Quantity:        line.Quantity,
			Error:           msg,
		})
	})
	if err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to annotate consumable", "consumable_id", line.ID.String())
	}
}

// UpdateUsage changes quantity or notes and recomputes the line total.
// Unit cost is fixed once recorded.
func (s *Service) UpdateUsage(ctx context.Context, actor model.Actor, id uuid.UUID, req *model.UpdateConsumableRequest) (*model.SurgeryConsumable, error) {
	if req.Quantity != nil && !req.Quantity.IsPositive() {
		return nil, apperrors.BadRequest("quantity must be positive", nil)
	}

	var line *model.SurgeryConsumable
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		line, err = s.mutableLine(ctx, actor, id)
		if err != nil {
			return err
		}

		before := line.Quantity
		if req.Quantity != nil {
			line.Quantity = *req.Quantity
		}
		if req.Notes != nil {
			line.Notes = req.Notes
		}
		line.Recompute()

		if err := s.consumables.Update(ctx, line); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionUpdate, model.AuditEntityConsumable, id, &audit.LogOptions{
			Changes: map[string]interface{}{"quantity_before": before, "quantity": line.Quantity, "total_cost": line.TotalCost},
		})
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteUsage removes a line recorded in error.
func (s *Service) DeleteUsage(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		line, err := s.mutableLine(ctx, actor, id)
		if err != nil {
			return err
		}
		if err := s.consumables.Delete(ctx, id); err != nil {
			return err
		}
		return s.auditor.Log(ctx, actor, model.AuditActionDelete, model.AuditEntityConsumable, id,
			&audit.LogOptions{Changes: line})
	})
}

func (s *Service) mutableLine(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.SurgeryConsumable, error) {
	line, err := s.consumables.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.loadCase(ctx, actor, line.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status.Finalized() {
		return nil, apperrors.CaseFinalized(string(c.Status))
	}
	return line, nil
}

func (s *Service) loadCase(ctx context.Context, actor model.Actor, caseID uuid.UUID) (*model.SurgicalCase, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(c.FacilityID) {
		return nil, apperrors.NotFound("surgical case", nil)
	}
	return c, nil
}

func (s *Service) ListUsage(ctx context.Context, actor model.Actor, caseID uuid.UUID) ([]*model.SurgeryConsumable, error) {
	if _, err := s.loadCase(ctx, actor, caseID); err != nil {
		return nil, err
	}
	lines, err := s.consumables.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumables: %w", err)
	}
	return lines, nil
}

// Summarize totals a case's consumables overall, billable only, by category
// and by usage phase.
func (s *Service) Summarize(ctx context.Context, actor model.Actor, caseID uuid.UUID) (*model.CostSummary, error) {
	lines, err := s.ListUsage(ctx, actor, caseID)
	if err != nil {
		return nil, err
	}
	return summarize(caseID, lines), nil
}

func summarize(caseID uuid.UUID, lines []*model.SurgeryConsumable) *model.CostSummary {
	summary := &model.CostSummary{
		CaseID:       caseID,
		LineCount:    len(lines),
		TotalCost:    decimal.Zero,
		BillableCost: decimal.Zero,
		ByCategory:   map[string]decimal.Decimal{},
		ByUsagePhase: map[string]decimal.Decimal{},
	}
	for _, l := range lines {
		summary.TotalCost = summary.TotalCost.Add(l.TotalCost)
		if l.IsBillable {
			summary.BillableCost = summary.BillableCost.Add(l.TotalCost)
		}
		cat := string(l.Category)
		summary.ByCategory[cat] = summary.ByCategory[cat].Add(l.TotalCost)
		summary.ByUsagePhase[l.UsagePhase] = summary.ByUsagePhase[l.UsagePhase].Add(l.TotalCost)
		if !l.IsDeductedFromStock && l.StockDeductionError != nil {
			summary.PendingStock++
		}
	}
	return summary
}

// Report aggregates consumable cost per item across the facility's cases
// that started within [from, to].
func (s *Service) Report(ctx context.Context, actor model.Actor, facilityID uuid.UUID, from, to model.Date) (*model.CostReport, error) {
	if !actor.CanAccess(facilityID) {
		return nil, apperrors.Forbidden("cannot report on another facility")
	}
	if from.IsZero() || to.IsZero() {
		return nil, apperrors.BadRequest("from and to are required", nil)
	}
	if to.Before(from.Time) {
		return nil, apperrors.BadRequest("to must not be before from", nil)
	}

	items, err := s.consumables.CostByItem(ctx, facilityID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to build cost report: %w", err)
	}
	report := &model.CostReport{FacilityID: facilityID, From: from, To: to, Items: items, TotalCost: decimal.Zero}
	for _, item := range items {
		report.TotalCost = report.TotalCost.Add(item.TotalCost)
	}
	return report, nil
}
