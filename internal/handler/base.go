package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/theatre-api/internal/model"
	apperrors "github.com/jwalitptl/theatre-api/pkg/errors"
	"github.com/jwalitptl/theatre-api/pkg/httputil"
	"github.com/jwalitptl/theatre-api/pkg/validator"
)

const actorKey = "actor"

// SetActor stores the authenticated caller on the gin context.
func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(actorKey, actor)
}

// ActorFrom returns the caller set by the auth middleware. Routes mounted
// without it see the zero Actor.
func ActorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(model.Actor); ok {
			return actor
		}
	}
	return model.Actor{}
}

// ParseID reads a uuid path parameter and writes a 400 when it is malformed.
func ParseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes and validates the body, writing a 400 with per-field
// details on failure.
func BindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		if fields := validator.FieldErrors(err); fields != nil {
			httputil.RespondWithError(c, apperrors.Validation(fields))
			return false
		}
		httputil.RespondWithError(c, apperrors.BadRequest("malformed request body", err))
		return false
	}
	return true
}

// Facility resolves the facility_id query parameter, defaulting to the
// caller's own facility.
func Facility(c *gin.Context) (uuid.UUID, bool) {
	raw := c.Query("facility_id")
	if raw == "" {
		return ActorFrom(c).FacilityID, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid facility_id", err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter.
func QueryDate(c *gin.Context, name string) (*model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid "+name, err))
		return nil, false
	}
	return &d, true
}
