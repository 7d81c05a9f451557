package report

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
)

var monday = model.NewDate(2024, time.June, 3)

func seed(t *testing.T, store *memory.Store, facility, theatre uuid.UUID, date model.Date, start string, status model.CaseStatus) *model.SurgicalCase {
	t.Helper()
	clock, err := model.ParseClockTime(start)
	require.NoError(t, err)
	c := &model.SurgicalCase{
		CaseNumber:               "SUR" + date.Compact() + "-" + start[:2] + start[3:],
		FacilityID:               facility,
		TheatreID:                theatre,
		PatientID:                uuid.New(),
		ProcedureName:            "Appendicectomy",
		SurgeryType:              model.SurgeryTypeMajor,
		Priority:                 model.PriorityUrgent,
		Status:                   status,
		ScheduledDate:            date,
		ScheduledTime:            clock,
		EstimatedDurationMinutes: 45,
		LeadSurgeonID:            uuid.New(),
	}
	require.NoError(t, store.Cases().Create(context.Background(), c))
	return c
}

func newTestService(store *memory.Store) *Service {
	svc := NewService(store.Cases(), store.Theatres(), metrics.NewNop(), logger.Nop(), Config{DashboardTTL: time.Minute})
	svc.now = func() time.Time { return monday.Add(10 * time.Hour) }
	return svc
}

func TestScheduleByDateOrdersByTheatreAndTime(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	theatre := uuid.New()

	late := seed(t, store, actor.FacilityID, theatre, monday, "14:00", model.CaseStatusScheduled)
	early := seed(t, store, actor.FacilityID, theatre, monday, "08:00", model.CaseStatusScheduled)
	seed(t, store, actor.FacilityID, theatre, monday.AddDays(1), "08:00", model.CaseStatusScheduled)
	seed(t, store, uuid.New(), theatre, monday, "11:00", model.CaseStatusScheduled)

	day, err := svc.TodaySchedule(context.Background(), actor, actor.FacilityID)
	require.NoError(t, err)
	require.Len(t, day.Cases, 2)
	assert.Equal(t, early.ID, day.Cases[0].ID)
	assert.Equal(t, late.ID, day.Cases[1].ID)
}

func TestScheduleByWeekGroupsSevenDays(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	theatre := uuid.New()

	seed(t, store, actor.FacilityID, theatre, monday, "08:00", model.CaseStatusScheduled)
	seed(t, store, actor.FacilityID, theatre, monday.AddDays(2), "08:00", model.CaseStatusScheduled)
	seed(t, store, actor.FacilityID, theatre, monday.AddDays(2), "10:00", model.CaseStatusCancelled)
	seed(t, store, actor.FacilityID, theatre, monday.AddDays(7), "08:00", model.CaseStatusScheduled)

	week, err := svc.ScheduleByWeek(context.Background(), actor, actor.FacilityID, monday)
	require.NoError(t, err)
	require.Len(t, week.Days, 7)
	assert.Len(t, week.Days[0].Cases, 1)
	assert.Empty(t, week.Days[1].Cases)
	assert.Len(t, week.Days[2].Cases, 2)
	assert.True(t, week.Days[6].Date.Equal(monday.AddDays(6)))
}

func TestDashboard(t *testing.T) {
	store := memory.NewStore()
	svc := newTestService(store)
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	ctx := context.Background()

	for _, status := range []model.TheatreStatus{model.TheatreStatusInUse, model.TheatreStatusAvailable,
		model.TheatreStatusCleaning, model.TheatreStatusAvailable} {
		th := &model.Theatre{FacilityID: actor.FacilityID, Name: uuid.NewString(), Code: uuid.NewString()[:8],
			Type: model.TheatreTypeGeneral, Status: status, IsActive: true}
		require.NoError(t, store.Theatres().Create(ctx, th))
	}

	theatre := uuid.New()
	seed(t, store, actor.FacilityID, theatre, monday, "08:00", model.CaseStatusInProgress)
	seed(t, store, actor.FacilityID, theatre, monday, "10:00", model.CaseStatusScheduled)
	seed(t, store, actor.FacilityID, theatre, monday, "12:00", model.CaseStatusScheduled)
	seed(t, store, actor.FacilityID, theatre, monday.AddDays(-1), "15:00", model.CaseStatusPostOp)

	dash, err := svc.Dashboard(ctx, actor, actor.FacilityID)
	require.NoError(t, err)
	assert.Equal(t, 2, dash.ScheduledToday)
	assert.Len(t, dash.InProgressCases, 1)
	assert.Len(t, dash.PostOpCases, 1)
	assert.Equal(t, 4, dash.Occupancy.Total)
	assert.Equal(t, 2, dash.Occupancy.ByStatus[model.TheatreStatusAvailable])
	assert.InDelta(t, 25.0, dash.Occupancy.OccupancyPercent, 0.001)

	// served from cache until the TTL lapses
	seed(t, store, actor.FacilityID, theatre, monday, "16:00", model.CaseStatusScheduled)
	again, err := svc.Dashboard(ctx, actor, actor.FacilityID)
	require.NoError(t, err)
	assert.Same(t, dash, again)
}

func TestReportsRejectOtherFacility(t *testing.T) {
	svc := newTestService(memory.NewStore())
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}

	_, err := svc.Dashboard(context.Background(), actor, uuid.New())
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = svc.ScheduleByDate(context.Background(), actor, uuid.Nil, monday)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestOccupancyWithNoTheatres(t *testing.T) {
	occ := occupancy(map[model.TheatreStatus]int{})
	assert.Zero(t, occ.Total)
	assert.Zero(t, occ.OccupancyPercent)
}
