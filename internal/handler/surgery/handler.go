package surgery

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	surgeryService "github.com/jwalitptl/theatre-api/internal/service/surgery"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
)

type Handler struct {
	service surgeryService.SurgeryServicer
}

func NewHandler(service surgeryService.SurgeryServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	cases := r.Group("/cases")
	{
		cases.POST("", h.ScheduleCase)
		cases.GET("", h.ListCases)
		cases.POST("/conflicts", h.CheckConflicts)
		cases.GET("/:id", h.GetCase)
		cases.PUT("/:id/pre-op", h.UpdatePreOp)
		cases.POST("/:id/start", h.StartSurgery)
		cases.PUT("/:id/intra-op", h.UpdateIntraOp)
		cases.POST("/:id/complete", h.CompleteSurgery)
		cases.POST("/:id/discharge", h.Discharge)
		cases.POST("/:id/cancel", h.CancelCase)
		cases.POST("/:id/reschedule", h.RescheduleCase)
	}
}

func (h *Handler) ScheduleCase(c *gin.Context) {
	var req model.ScheduleCaseRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	kase, err := h.service.ScheduleCase(c.Request.Context(), handler.ActorFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, kase)
}

func (h *Handler) ListCases(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}
	if !handler.ActorFrom(c).CanAccess(facilityID) {
		httputil.RespondWithError(c, apperrors.Forbidden("cannot list another facility's cases"))
		return
	}

	filter := model.CaseFilter{FacilityID: facilityID}
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination", err))
		return
	}
	for name, dst := range map[string]**uuid.UUID{
		"theatre_id": &filter.TheatreID,
		"surgeon_id": &filter.SurgeonID,
		"patient_id": &filter.PatientID,
	} {
		if raw := c.Query(name); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
				return
			}
			*dst = &id
		}
	}
	if raw := c.Query("status"); raw != "" {
		status := model.CaseStatus(raw)
		if !status.Valid() {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid status", nil))
			return
		}
		filter.Status = &status
	}
	from, ok := handler.QueryDate(c, "from")
	if !ok {
		return
	}
	to, ok := handler.QueryDate(c, "to")
	if !ok {
		return
	}
	filter.From, filter.To = from, to
	filter.Pagination = filter.Pagination.Normalize()

	cases, total, err := h.service.ListCases(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithPagination(c, cases, filter.Limit, filter.Offset, total)
}

func (h *Handler) GetCase(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	kase, err := h.service.GetCase(c.Request.Context(), handler.ActorFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, kase)
}

// CheckConflicts returns the scheduled cases overlapping a proposed window.
// An empty list means the window is free.
func (h *Handler) CheckConflicts(c *gin.Context) {
	var req model.CheckConflictsRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	conflicts, err := h.service.CheckConflicts(c.Request.Context(), handler.ActorFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"has_conflicts": len(conflicts) > 0,
		"conflicts":     model.SummarizeConflicts(conflicts),
	})
}

func (h *Handler) UpdatePreOp(c *gin.Context) {
	var req model.UpdatePreOpRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.UpdatePreOp(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

func (h *Handler) StartSurgery(c *gin.Context) {
	h.mutate(c, nil, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.StartSurgery(c.Request.Context(), handler.ActorFrom(c), id)
	})
}

func (h *Handler) UpdateIntraOp(c *gin.Context) {
	var req model.UpdateIntraOpRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.UpdateIntraOp(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

func (h *Handler) CompleteSurgery(c *gin.Context) {
	var req model.CompleteSurgeryRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.CompleteSurgery(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

func (h *Handler) Discharge(c *gin.Context) {
	var req model.DischargeRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.Discharge(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

func (h *Handler) CancelCase(c *gin.Context) {
	var req model.CancelCaseRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.CancelCase(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

func (h *Handler) RescheduleCase(c *gin.Context) {
	var req model.RescheduleCaseRequest
	h.mutate(c, &req, func(c *gin.Context, id uuid.UUID) (*model.SurgicalCase, error) {
		return h.service.RescheduleCase(c.Request.Context(), handler.ActorFrom(c), id, &req)
	})
}

// mutate parses the case id and optional body, then runs a transition.
// Empty bodies are accepted for operations whose fields are all optional.
func (h *Handler) mutate(c *gin.Context, body interface{}, run func(*gin.Context, uuid.UUID) (*model.SurgicalCase, error)) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	if body != nil && c.Request.ContentLength != 0 && !handler.BindJSON(c, body) {
		return
	}

	kase, err := run(c, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, kase)
}
