package handlers

import (
	"net/http"
	"time"

	hostRepo "slotwise/database/repository/host"
	"slotwise/models"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HostHandler manages the availability setup of hosts.
type HostHandler struct {
	Directory hostRepo.Directory
}

func NewHostHandler(dir hostRepo.Directory) *HostHandler {
	return &HostHandler{Directory: dir}
}

// PutScheduleHandler replaces a host's weekly schedule and overrides.
func (h *HostHandler) PutScheduleHandler(c *gin.Context) {
	logger := getLogger(c)

	var s models.Schedule
	if err := c.ShouldBindJSON(&s); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}
	s.HostID = c.Param("hostId")
	s.UpdatedAt = time.Now().UTC()
	if err := s.Validate(); err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	if err := h.Directory.UpsertSchedule(c.Request.Context(), &s); err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	logger.Info("schedule updated", zap.String("hostID", s.HostID))
	c.JSON(http.StatusOK, s)
}

type eventTypeInput struct {
	Title string                `json:"title"`
	Rules models.EventTypeRules `json:"rules"`
}

// PutEventTypeHandler creates or replaces one event type of a host.
func (h *HostHandler) PutEventTypeHandler(c *gin.Context) {
	logger := getLogger(c)

	var input eventTypeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}
	if err := input.Rules.Validate(); err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	et := models.EventType{
		ID:        c.Param("eventTypeId"),
		HostID:    c.Param("hostId"),
		Title:     input.Title,
		Rules:     input.Rules,
		UpdatedAt: time.Now().UTC(),
	}
	if err := h.Directory.UpsertEventType(c.Request.Context(), &et); err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	logger.Info("event type updated", zap.String("hostID", et.HostID), zap.String("eventTypeID", et.ID))
	c.JSON(http.StatusOK, et)
}

type calendarsInput struct {
	Calendars []models.CalendarRef `json:"calendars" binding:"dive"`
}

// PutCalendarsHandler replaces the connected calendars of a host.
func (h *HostHandler) PutCalendarsHandler(c *gin.Context) {
	logger := getLogger(c)

	var input calendarsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}
	hostID := c.Param("hostId")
	if err := h.Directory.SetCalendars(c.Request.Context(), hostID, input.Calendars); err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hostId": hostID, "calendars": input.Calendars})
}
