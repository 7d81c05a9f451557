package consumable

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	consumableService "github.com/jwalitptl/theatre-api/internal/service/consumable"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
)

type Handler struct {
	service consumableService.ConsumableServicer
}

func NewHandler(service consumableService.ConsumableServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/cases/:id/consumables", h.RecordUsage)
	r.GET("/cases/:id/consumables", h.ListUsage)
	r.GET("/cases/:id/consumables/summary", h.Summarize)

	consumables := r.Group("/consumables")
	{
		consumables.PUT("/:id", h.UpdateUsage)
		consumables.DELETE("/:id", h.DeleteUsage)
		consumables.GET("/report", h.Report)
	}
}

func (h *Handler) RecordUsage(c *gin.Context) {
	caseID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.RecordConsumableRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	line, err := h.service.RecordUsage(c.Request.Context(), handler.ActorFrom(c), caseID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, line)
}

func (h *Handler) ListUsage(c *gin.Context) {
	caseID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	lines, err := h.service.ListUsage(c.Request.Context(), handler.ActorFrom(c), caseID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, lines)
}

func (h *Handler) Summarize(c *gin.Context) {
	caseID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	summary, err := h.service.Summarize(c.Request.Context(), handler.ActorFrom(c), caseID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, summary)
}

func (h *Handler) UpdateUsage(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateConsumableRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	line, err := h.service.UpdateUsage(c.Request.Context(), handler.ActorFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, line)
}

func (h *Handler) DeleteUsage(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteUsage(c.Request.Context(), handler.ActorFrom(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Report aggregates cost per item for cases started between from and to.
func (h *Handler) Report(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}
	from, ok := handler.QueryDate(c, "from")
	if !ok {
		return
	}
	to, ok := handler.QueryDate(c, "to")
	if !ok {
		return
	}
	if from == nil || to == nil {
		httputil.RespondWithError(c, apperrors.BadRequest("from and to are required", nil))
		return
	}

	report, err := h.service.Report(c.Request.Context(), handler.ActorFrom(c), facilityID, *from, *to)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, report)
}
