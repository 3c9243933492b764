package handlers

import (
	"net/http"
	"time"

	"slotwise/models"
	"slotwise/services/booking"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
)

// BookingHandler exposes reservation and lifecycle endpoints.
type BookingHandler struct {
	Coordinator *booking.Coordinator
}

func NewBookingHandler(coord *booking.Coordinator) *BookingHandler {
	return &BookingHandler{Coordinator: coord}
}

type reserveInput struct {
	HostID         string          `json:"hostId" binding:"required"`
	EventTypeID    string          `json:"eventTypeId" binding:"required"`
	Start          time.Time       `json:"start" binding:"required"`
	End            time.Time       `json:"end" binding:"required"`
	Attendee       models.Attendee `json:"attendee" binding:"required"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

// ReserveHandler books a slot. The idempotency key may come from the body or
// the Idempotency-Key header.
func (h *BookingHandler) ReserveHandler(c *gin.Context) {
	logger := getLogger(c)

	var input reserveInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}
	key := input.IdempotencyKey
	if key == "" {
		key = c.GetHeader("Idempotency-Key")
	}

	b, err := h.Coordinator.Reserve(c.Request.Context(), booking.ReserveRequest{
		HostID:         input.HostID,
		EventTypeID:    input.EventTypeID,
		Interval:       models.Interval{Start: input.Start, End: input.End},
		Attendee:       input.Attendee,
		IdempotencyKey: key,
	})
	if err != nil {
		utils.RespondError(c, logger, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GetBookingHandler returns one booking.
func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	b, err := h.Coordinator.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type reasonInput struct {
	Reason string `json:"reason"`
}

func bindReason(c *gin.Context) (string, bool) {
	var input reasonInput
	if c.Request.ContentLength == 0 {
		return "", true
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return "", false
	}
	return input.Reason, true
}

func (h *BookingHandler) CancelHandler(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	b, err := h.Coordinator.Cancel(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		utils.RespondError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ApproveHandler(c *gin.Context) {
	b, err := h.Coordinator.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) DeclineHandler(c *gin.Context) {
	reason, ok := bindReason(c)
	if !ok {
		return
	}
	b, err := h.Coordinator.Decline(c.Request.Context(), c.Param("id"), reason)
	if err != nil {
		utils.RespondError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type rescheduleInput struct {
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required"`
}

// RescheduleHandler moves a confirmed booking and returns its replacement.
func (h *BookingHandler) RescheduleHandler(c *gin.Context) {
	var input rescheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid input", err.Error())
		return
	}
	b, err := h.Coordinator.Reschedule(c.Request.Context(), c.Param("id"), models.Interval{Start: input.Start, End: input.End})
	if err != nil {
		utils.RespondError(c, getLogger(c), err)
		return
	}
	c.JSON(http.StatusOK, b)
}
