package theatre

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository/memory"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/logger"
)

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	svc := NewService(
		store,
		store.Theatres(),
		store.Cases(),
		audit.NewService(store.Audit()),
		event.NewEventService(store.Outbox()),
		logger.Nop(),
	)
	return svc, store
}

func register(t *testing.T, svc *Service, actor model.Actor, name, code string) *model.Theatre {
	t.Helper()
	theatre, err := svc.RegisterTheatre(context.Background(), actor, &model.CreateTheatreRequest{
		FacilityID: actor.FacilityID,
		Name:       name,
		Code:       code,
		Type:       model.TheatreTypeGeneral,
	})
	require.NoError(t, err)
	return theatre
}

func TestRegisterTheatre(t *testing.T) {
	svc, store := newTestService()
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}

	theatre := register(t, svc, actor, "Main Theatre 1", "ot1")

	assert.Equal(t, model.TheatreStatusAvailable, theatre.Status)
	assert.True(t, theatre.IsActive)
	assert.Equal(t, "OT1", theatre.Code)
	require.Len(t, store.AuditLogs(), 1)
	assert.Equal(t, model.AuditActionCreate, store.AuditLogs()[0].Action)
}

func TestRegisterTheatreDuplicateCode(t *testing.T) {
	svc, _ := newTestService()
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	register(t, svc, actor, "Main Theatre 1", "OT1")

	_, err := svc.RegisterTheatre(context.Background(), actor, &model.CreateTheatreRequest{
		FacilityID: actor.FacilityID,
		Name:       "Another",
		Code:       "OT1",
		Type:       model.TheatreTypeCardiac,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrDuplicateCode))

	// same code in another facility is fine
	other := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	register(t, svc, other, "Main Theatre 1", "OT1")
}

func TestListTheatresOrderedByName(t *testing.T) {
	svc, _ := newTestService()
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	register(t, svc, actor, "Cardiac", "C1")
	register(t, svc, actor, "Alpha", "A1")
	beta := register(t, svc, actor, "Beta", "B1")
	require.NoError(t, svc.DeactivateTheatre(context.Background(), actor, beta.ID))

	all, err := svc.ListTheatres(context.Background(), actor, actor.FacilityID, false)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Alpha", "Beta", "Cardiac"}, []string{all[0].Name, all[1].Name, all[2].Name})

	active, err := svc.ListTheatres(context.Background(), actor, actor.FacilityID, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestSetStatusIsUnconditionalAndAudited(t *testing.T) {
	svc, store := newTestService()
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	theatre := register(t, svc, actor, "Main", "M1")

	updated, err := svc.SetStatus(context.Background(), actor, theatre.ID, &model.SetTheatreStatusRequest{
		Status: model.TheatreStatusOutOfService,
		Reason: "air handling fault",
	})
	require.NoError(t, err)
	assert.Equal(t, model.TheatreStatusOutOfService, updated.Status)

	logs := store.AuditLogs()
	last := logs[len(logs)-1]
	assert.Equal(t, model.AuditActionStatusOverride, last.Action)
	require.NotNil(t, last.Reason)
	assert.Equal(t, "air handling fault", *last.Reason)

	events := store.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, model.EventTheatreStatusChanged, events[len(events)-1].EventType)
}

func TestSetStatusRejectsOtherFacility(t *testing.T) {
	svc, _ := newTestService()
	owner := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	theatre := register(t, svc, owner, "Main", "M1")

	stranger := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	_, err := svc.SetStatus(context.Background(), stranger, theatre.ID, &model.SetTheatreStatusRequest{
		Status: model.TheatreStatusMaintenance,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))
}

func TestApplyCaseStatusEmitsEvent(t *testing.T) {
	svc, store := newTestService()
	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	theatre := register(t, svc, actor, "Main", "M1")

	require.NoError(t, svc.ApplyCaseStatus(context.Background(), theatre.ID, model.TheatreStatusInUse, uuid.New()))

	got, err := svc.GetTheatre(context.Background(), actor, theatre.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TheatreStatusInUse, got.Status)
	assert.Len(t, store.Events(), 1)

	// no-op when already in that status
	require.NoError(t, svc.ApplyCaseStatus(context.Background(), theatre.ID, model.TheatreStatusInUse, uuid.New()))
	assert.Len(t, store.Events(), 1)
}
