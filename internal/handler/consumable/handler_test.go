package consumable

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	"github.com/jwalitptl/theatre-api/internal/repository/memory"
	"github.com/jwalitptl/theatre-api/internal/service/audit"
	consumableService "github.com/jwalitptl/theatre-api/internal/service/consumable"
	"github.com/jwalitptl/theatre-api/internal/service/event"
	"github.com/jwalitptl/theatre-api/pkg/logger"
	"github.com/jwalitptl/theatre-api/pkg/metrics"
	"github.com/jwalitptl/theatre-api/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterGin(); err != nil {
		panic(err)
	}
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int             `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Store
	kase   *model.SurgicalCase
	itemID uuid.UUID
}

func newTestServer(t *testing.T, status model.CaseStatus) *testServer {
	t.Helper()
	store := memory.NewStore()
	svc := consumableService.NewService(store, store.Consumables(), store.Cases(), store.Inventory(),
		audit.NewService(store.Audit()), event.NewEventService(store.Outbox()), metrics.NewNop(), logger.Nop())

	actor := model.Actor{UserID: uuid.New(), FacilityID: uuid.New()}
	started := time.Date(2024, time.June, 3, 8, 10, 0, 0, time.UTC)
	kase := &model.SurgicalCase{
		CaseNumber:               "SUR20240603-0001",
		FacilityID:               actor.FacilityID,
		TheatreID:                uuid.New(),
		PatientID:                uuid.New(),
		ProcedureName:            "Appendicectomy",
		SurgeryType:              model.SurgeryTypeMajor,
		Priority:                 model.PriorityEmergency,
		Status:                   status,
		ScheduledDate:            model.NewDate(2024, time.June, 3),
		ScheduledTime:            model.ClockTime(8 * 60),
		EstimatedDurationMinutes: 60,
		ActualStartTime:          &started,
		LeadSurgeonID:            uuid.New(),
	}
	require.NoError(t, store.Cases().Create(context.Background(), kase))

	itemID := uuid.New()
	store.AddItem(model.InventoryItem{
		Base:           model.Base{ID: itemID},
		FacilityID:     actor.FacilityID,
		Code:           "GLV-7",
		Name:           "Sterile gloves 7",
		Unit:           "pair",
		QuantityOnHand: decimal.NewFromInt(100),
	})

	engine := gin.New()
	api := engine.Group("/api/v1", func(c *gin.Context) {
		handler.SetActor(c, actor)
		c.Next()
	})
	NewHandler(svc).RegisterRoutes(api)

	return &testServer{engine: engine, store: store, kase: kase, itemID: itemID}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func (s *testServer) usage(qty int, deduct bool) gin.H {
	return gin.H{
		"inventory_item_id": s.itemID,
		"quantity":          qty,
		"unit_cost":         "12.50",
		"category":          "SURGICAL_SUPPLIES",
		"usage_phase":       "pre-op",
		"deduct_from_stock": deduct,
	}
}

func TestRecordListAndSummarize(t *testing.T) {
	s := newTestServer(t, model.CaseStatusInProgress)
	base := "/api/v1/cases/" + s.kase.ID.String() + "/consumables"

	code, resp := s.do(t, http.MethodPost, base, s.usage(4, true))
	require.Equal(t, http.StatusCreated, code)
	var line model.SurgeryConsumable
	require.NoError(t, json.Unmarshal(resp.Data, &line))
	assert.True(t, line.TotalCost.Equal(decimal.NewFromInt(50)))
	assert.True(t, line.IsDeductedFromStock)

	code, _ = s.do(t, http.MethodPost, base, s.usage(2, false))
	require.Equal(t, http.StatusCreated, code)

	code, resp = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, code)
	var lines []model.SurgeryConsumable
	require.NoError(t, json.Unmarshal(resp.Data, &lines))
	assert.Len(t, lines, 2)

	code, resp = s.do(t, http.MethodGet, base+"/summary", nil)
	require.Equal(t, http.StatusOK, code)
	var summary model.CostSummary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 2, summary.LineCount)
	assert.True(t, summary.TotalCost.Equal(decimal.NewFromInt(75)))
	assert.Zero(t, summary.PendingStock)
}

func TestRecordRejectsUnknownCategory(t *testing.T) {
	s := newTestServer(t, model.CaseStatusInProgress)

	body := s.usage(1, false)
	body["category"] = "SNACKS"
	code, _ := s.do(t, http.MethodPost, "/api/v1/cases/"+s.kase.ID.String()+"/consumables", body)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestFinalizedCaseLinesAreReadOnly(t *testing.T) {
	s := newTestServer(t, model.CaseStatusPostOp)
	code, resp := s.do(t, http.MethodPost, "/api/v1/cases/"+s.kase.ID.String()+"/consumables", s.usage(1, false))
	require.Equal(t, http.StatusCreated, code)
	var line model.SurgeryConsumable
	require.NoError(t, json.Unmarshal(resp.Data, &line))

	s.kase.Status = model.CaseStatusCompleted
	require.NoError(t, s.store.Cases().Update(context.Background(), s.kase))

	code, _ = s.do(t, http.MethodDelete, "/api/v1/consumables/"+line.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestReportRequiresRange(t *testing.T) {
	s := newTestServer(t, model.CaseStatusInProgress)

	code, _ := s.do(t, http.MethodGet, "/api/v1/consumables/report?from=2024-06-01", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodPost, "/api/v1/cases/"+s.kase.ID.String()+"/consumables", s.usage(2, false))
	require.Equal(t, http.StatusCreated, code)

	code, resp := s.do(t, http.MethodGet, "/api/v1/consumables/report?from=2024-06-01&to=2024-06-30", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}
