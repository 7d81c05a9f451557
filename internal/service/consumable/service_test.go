package consumable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository/memory"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

type fixture struct {
	svc   *Service
	store *memory.Store
	actor model.Actor
	kase  *model.SurgicalCase
	item  model.InventoryItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	svc := NewService(store, store.Consumables(), store.Cases(), store.Inventory(),
		audit.NewService(store.Audit()), event.NewEventService(store.Outbox()), metrics.NewNop(), logger.Nop())

	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	start := time.Date(2024, time.June, 1, 9, 5, 0, 0, time.UTC)
	kase := &model.SurgicalCase{
		CaseNumber:               "SUR20240601-0001",
		FacilityID:               actor.FacilityID,
		TheatreID:                uuid.New(),
		PatientID:                uuid.New(),
		ProcedureName:            "Total knee replacement",
		SurgeryType:              model.SurgeryTypeMajor,
		Priority:                 model.PriorityElective,
		Status:                   model.CaseStatusInProgress,
		ScheduledDate:            model.NewDate(2024, time.June, 1),
		ScheduledTime:            model.ClockTime(9 * 60),
		EstimatedDurationMinutes: 120,
		ActualStartTime:          &start,
		LeadSurgeonID:            uuid.New(),
	}
	require.NoError(t, store.Cases().Create(context.Background(), kase))

	item := model.InventoryItem{
		Base:           model.Base{ID: uuid.New()},
		FacilityID:     actor.FacilityID,
		Code:           "SUT-001",
		Name:           "Vicryl 2-0",
		Unit:           "pack",
		QuantityOnHand: decimal.NewFromInt(10),
	}
	store.AddItem(item)

	return &fixture{svc: svc, store: store, actor: actor, kase: kase, item: item}
}

func (f *fixture) record(t *testing.T, qty, cost int64, deduct bool) *model.SurgeryConsumable {
	t.Helper()
	line, err := f.svc.RecordUsage(context.Background(), f.actor, f.kase.ID, &model.RecordConsumableRequest{
		InventoryItemID: f.item.ID,
		Quantity:        decimal.NewFromInt(qty),
		UnitCost:        decimal.NewFromInt(cost),
		Category:        model.CategorySutures,
		UsagePhase:      "Intra-Op",
		DeductFromStock: deduct,
	})
	require.NoError(t, err)
	return line
}

func TestRecordAndUpdateRecomputesTotal(t *testing.T) {
	f := newFixture(t)
	line := f.record(t, 3, 1500, false)

	assert.True(t, line.TotalCost.Equal(decimal.NewFromInt(4500)))
	assert.Equal(t, "SUT-001", line.ItemCode)
	assert.Equal(t, "Vicryl 2-0", line.ItemName)
	assert.Equal(t, model.UsagePhaseIntraOp, line.UsagePhase)
	assert.True(t, line.IsBillable)

	five := decimal.NewFromInt(5)
	updated, err := f.svc.UpdateUsage(context.Background(), f.actor, line.ID, &model.UpdateConsumableRequest{Quantity: &five})
	require.NoError(t, err)
	assert.True(t, updated.TotalCost.Equal(decimal.NewFromInt(7500)))
	assert.True(t, updated.UnitCost.Equal(decimal.NewFromInt(1500)))
}

func TestRecordKeepsCatalogueSnapshot(t *testing.T) {
	f := newFixture(t)
	line := f.record(t, 1, 100, false)

	renamed := f.item
	renamed.Name = "Vicryl 2-0 (new supplier)"
	f.store.AddItem(renamed)

	lines, err := f.svc.ListUsage(context.Background(), f.actor, f.kase.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, line.ID, lines[0].ID)
	assert.Equal(t, "Vicryl 2-0", lines[0].ItemName)
}

func TestDeductionSuccess(t *testing.T) {
	f := newFixture(t)
	line := f.record(t, 4, 10, true)
	assert.True(t, line.IsDeductedFromStock)

	item, err := f.store.Inventory().GetItem(context.Background(), f.item.ID)
	require.NoError(t, err)
	assert.True(t, item.QuantityOnHand.Equal(decimal.NewFromInt(6)))
}

func TestDeductionFailureKeepsLine(t *testing.T) {
	f := newFixture(t)
	line := f.record(t, 50, 10, true)

	assert.False(t, line.IsDeductedFromStock)
	require.NotNil(t, line.StockDeductionError)

	stored, err := f.store.Consumables().GetByID(context.Background(), line.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsDeductedFromStock)
	assert.NotNil(t, stored.StockDeductionError)

	events := f.store.Events()
	assert.Equal(t, model.EventStockDeductionFailed, events[len(events)-1].EventType)

	summary, err := f.svc.Summarize(context.Background(), f.actor, f.kase.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.PendingStock)
}

func TestInventoryOutageOpensBreaker(t *testing.T) {
	f := newFixture(t)
	f.store.DeductErr = errors.New("connection refused")

	for i := 0; i < 6; i++ {
		line := f.record(t, 1, 10, true)
		assert.False(t, line.IsDeductedFromStock)
	}
	last := f.record(t, 1, 10, true)
	require.NotNil(t, last.StockDeductionError)
	assert.Equal(t, "inventory service unavailable", *last.StockDeductionError)
}

func TestInsufficientStockDoesNotTripBreaker(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		f.record(t, 100, 1, true)
	}
	line := f.record(t, 1, 1, true)
	assert.True(t, line.IsDeductedFromStock)
}

func TestSummarize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, 2, 100, false)

	notBillable := false
	_, err := f.svc.RecordUsage(ctx, f.actor, f.kase.ID, &model.RecordConsumableRequest{
		InventoryItemID: f.item.ID,
		Quantity:        decimal.NewFromInt(1),
		UnitCost:        decimal.RequireFromString("49.50"),
		Category:        model.CategoryDressings,
		UsagePhase:      model.UsagePhasePostOp,
		IsBillable:      &notBillable,
	})
	require.NoError(t, err)

	summary, err := f.svc.Summarize(ctx, f.actor, f.kase.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.LineCount)
	assert.Equal(t, "249.5", summary.TotalCost.String())
	assert.Equal(t, "200", summary.BillableCost.String())
	assert.Equal(t, "200", summary.ByCategory[string(model.CategorySutures)].String())
	assert.Equal(t, "49.5", summary.ByUsagePhase[model.UsagePhasePostOp].String())
}

func TestFinalizedCaseRejectsChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	line := f.record(t, 1, 100, false)

	kase, err := f.store.Cases().GetByID(ctx, f.kase.ID)
	require.NoError(t, err)
	kase.Status = model.CaseStatusCompleted
	require.NoError(t, f.store.Cases().Update(ctx, kase))

	two := decimal.NewFromInt(2)
	_, err = f.svc.UpdateUsage(ctx, f.actor, line.ID, &model.UpdateConsumableRequest{Quantity: &two})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCaseFinalized))

	err = f.svc.DeleteUsage(ctx, f.actor, line.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCaseFinalized))
}

func TestDeleteUsage(t *testing.T) {
	f := newFixture(t)
	line := f.record(t, 1, 100, false)

	require.NoError(t, f.svc.DeleteUsage(context.Background(), f.actor, line.ID))
	_, err := f.store.Consumables().GetByID(context.Background(), line.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestRecordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RecordUsage(ctx, f.actor, f.kase.ID, &model.RecordConsumableRequest{
		InventoryItemID: f.item.ID,
		Quantity:        decimal.Zero,
		Category:        model.CategorySutures,
		UsagePhase:      model.UsagePhaseIntraOp,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))

	_, err = f.svc.RecordUsage(ctx, f.actor, f.kase.ID, &model.RecordConsumableRequest{
		InventoryItemID: uuid.New(),
		Quantity:        decimal.NewFromInt(1),
		Category:        model.CategorySutures,
		UsagePhase:      model.UsagePhaseIntraOp,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	stranger := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	_, err = f.svc.ListUsage(ctx, stranger, f.kase.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestReport(t *testing.T) {
	f := newFixture(t)
	f.record(t, 3, 1500, false)
	f.record(t, 2, 1500, false)

	day := model.NewDate(2024, time.June, 1)
	report, err := f.svc.Report(context.Background(), f.actor, f.actor.FacilityID, day, day)
	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, 1, report.Items[0].CaseCount)
	assert.True(t, report.Items[0].TotalQuantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, report.TotalCost.Equal(decimal.NewFromInt(7500)))

	empty, err := f.svc.Report(context.Background(), f.actor, f.actor.FacilityID, day.AddDays(1), day.AddDays(2))
	require.NoError(t, err)
	assert.Empty(t, empty.Items)

	_, err = f.svc.Report(context.Background(), f.actor, f.actor.FacilityID, day, day.AddDays(-1))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}
