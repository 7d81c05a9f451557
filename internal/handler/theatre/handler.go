package theatre

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/theatre-api/internal/handler"
	"github.com/jwalitptl/theatre-api/internal/model"
	theatreService "github.com/jwalitptl/theatre-api/internal/service/theatre"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
)

type Handler struct {
	service theatreService.TheatreServicer
}

func NewHandler(service theatreService.TheatreServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	theatres := r.Group("/theatres")
	{
		theatres.POST("", h.RegisterTheatre)
		theatres.GET("", h.ListTheatres)
		theatres.GET("/:id", h.GetTheatre)
		theatres.PUT("/:id", h.UpdateTheatre)
		theatres.DELETE("/:id", h.DeactivateTheatre)
		theatres.PUT("/:id/status", h.SetStatus)
	}
}

func (h *Handler) RegisterTheatre(c *gin.Context) {
	var req model.CreateTheatreRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	theatre, err := h.service.RegisterTheatre(c.Request.Context(), handler.ActorFrom(c), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, theatre)
}

func (h *Handler) ListTheatres(c *gin.Context) {
	facilityID, ok := handler.Facility(c)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "true"))

	theatres, err := h.service.ListTheatres(c.Request.Context(), handler.ActorFrom(c), facilityID, activeOnly)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, theatres)
}

func (h *Handler) GetTheatre(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	theatre, err := h.service.GetTheatre(c.Request.Context(), handler.ActorFrom(c), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, theatre)
}

func (h *Handler) UpdateTheatre(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateTheatreRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	theatre, err := h.service.UpdateTheatre(c.Request.Context(), handler.ActorFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, theatre)
}

func (h *Handler) DeactivateTheatre(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeactivateTheatre(c.Request.Context(), handler.ActorFrom(c), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus is the administrative override.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	var req model.SetTheatreStatusRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	theatre, err := h.service.SetStatus(c.Request.Context(), handler.ActorFrom(c), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, theatre)
}
