package report

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	reportService "github.com/jwalitptl/theatre-api/internal/service/report"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
)

type Handler struct {
	service reportService.ReportServicer
}

func NewHandler(service reportService.ReportServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	schedule := r.Group("/schedule")
	{
		schedule.GET("/today", h.Today)
		schedule.GET("/date/:date", h.ByDate)
		schedule.GET("/week/:date", h.ByWeek)
	}
	r.GET("/dashboard", h.Dashboard)
}

func (h *Handler) Today(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}

	day, err := h.service.TodaySchedule(c.Request.Context(), handler.ActorFrom(c), facilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, day)
}

func (h *Handler) ByDate(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}
	date, err := parseDateParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	day, err := h.service.ScheduleByDate(c.Request.Context(), handler.ActorFrom(c), facilityID, date)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, day)
}

// ByWeek returns seven days starting at the given date.
func (h *Handler) ByWeek(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}
	start, err := parseDateParam(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	week, err := h.service.ScheduleByWeek(c.Request.Context(), handler.ActorFrom(c), facilityID, start)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, week)
}

func (h *Handler) Dashboard(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}

	dashboard, err := h.service.Dashboard(c.Request.Context(), handler.ActorFrom(c), facilityID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, dashboard)
}

func parseDateParam(c *gin.Context) (model.Date, error) {
	d, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return model.Date{}, apperrors.BadRequest(err.Error(), nil)
	}
	return d, nil
}
