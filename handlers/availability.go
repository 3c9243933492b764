package handlers

import (
	"net/http"
	"time"

	"slotwise/models"
	"slotwise/services/availability"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
)

// AvailabilityHandler serves the public slot listing.
type AvailabilityHandler struct {
	Engine *availability.Engine
}

func NewAvailabilityHandler(engine *availability.Engine) *AvailabilityHandler {
	return &AvailabilityHandler{Engine: engine}
}

type availabilityQuery struct {
	EventTypeID string `form:"eventTypeId" binding:"required"`
	From        string `form:"from" binding:"required"`
	To          string `form:"to" binding:"required"`
	TimeZone    string `form:"timeZone"`
}

// GetAvailabilityHandler lists the bookable slots of an event type.
func (h *AvailabilityHandler) GetAvailabilityHandler(c *gin.Context) {
	logger := getLogger(c)

	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid query", err.Error())
		return
	}
	v := &models.ValidationError{}
	from, err := time.Parse(time.RFC3339, q.From)
	if err != nil {
		v.Add("from", "must be an RFC 3339 timestamp")
	}
	to, err := time.Parse(time.RFC3339, q.To)
	if err != nil {
		v.Add("to", "must be an RFC 3339 timestamp")
	}
	if err := v.OrNil(); err != nil {
		utils.RespondError(c, logger, err)
		return
	}

	res, err := h.Engine.ComputeSlots(c.Request.Context(), availability.Request{
		HostID:      c.Param("hostId"),
		EventTypeID: q.EventTypeID,
		From:        from,
		To:          to,
		TimeZone:    q.TimeZone,
	})
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
