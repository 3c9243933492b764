package handlers

import (
	"net/http"

	"slotwise/models"
	"slotwise/services/calendar"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CalendarHandler receives change notifications from calendar providers.
type CalendarHandler struct {
	Bus calendar.InvalidationBus
}

func NewCalendarHandler(bus calendar.InvalidationBus) *CalendarHandler {
	return &CalendarHandler{Bus: bus}
}

// NotificationHandler drops cached busy time of the notified calendar.
func (h *CalendarHandler) NotificationHandler(c *gin.Context) {
	logger := getLogger(c)

	var ev models.InvalidationEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid notification", err.Error())
		return
	}
	if err := h.Bus.Publish(c.Request.Context(), ev); err != nil {
		// the local replica is already invalidated, others catch up on TTL
		logger.Warn("invalidation fan-out failed", zap.String("credentialID", ev.CredentialID), zap.Error(err))
	}
	c.Status(http.StatusAccepted)
}
