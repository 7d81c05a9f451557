package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
)

type AuditLister interface {
	List(ctx context.Context, filter model.AuditFilter) ([]*model.AuditLog, error)
}

type Handler struct {
	service AuditLister
}

func NewHandler(service AuditLister) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs", h.ListLogs)
		audit.GET("/logs/entity/:type/:id", h.GetEntityLogs)
		audit.GET("/export", h.ExportLogs)
	}
}

func (h *Handler) ListLogs(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	filter.EntityType = c.Query("entity_type")

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, logs)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	filter.EntityType = c.Param("type")
	filter.EntityID = &entityID

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, logs)
}

func (h *Handler) ExportLogs(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, apperrors.BadRequest("unsupported format", nil))
		return
	}
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	filter.EntityType = c.Query("entity_type")

	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, logs)
		return
	}

	filename := fmt.Sprintf("audit_logs_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	writer := csv.NewWriter(c.Writer)
	_ = writer.Write([]string{"ID", "User ID", "Facility ID", "Action", "Entity Type", "Entity ID", "Reason", "Created At"})
	for _, log := range logs {
		reason := ""
		if log.Reason != nil {
			reason = *log.Reason
		}
		_ = writer.Write([]string{
			log.ID.String(),
			log.UserID.String(),
			log.FacilityID.String(),
			log.Action,
			log.EntityType,
			log.EntityID.String(),
			reason,
			log.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}

// filter scopes the query to the caller's facility unless the caller is
// unrestricted.
func (h *Handler) filter(c *gin.Context) (model.AuditFilter, bool) {
	var filter model.AuditFilter
	if err := c.ShouldBindQuery(&filter.Pagination); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination", err))
		return filter, false
	}
	filter.Pagination = filter.Pagination.Normalize()

	facilityID, ok := handler.Facility(c)
	if !ok {
		return filter, false
	}
	if !handler.ActorFrom(c).CanAccess(facilityID) {
		httputil.RespondWithError(c, apperrors.Forbidden("cannot read another facility's audit log"))
		return filter, false
	}
	if facilityID != uuid.Nil {
		filter.FacilityID = &facilityID
	}
	return filter, true
}
