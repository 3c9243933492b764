package handlers

import "github.com/gin-gonic/gin"

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Availability endpoints
	GetAvailabilityHandler gin.HandlerFunc

	// Booking endpoints
	ReserveHandler    gin.HandlerFunc
	GetBookingHandler gin.HandlerFunc
	CancelHandler     gin.HandlerFunc
	RescheduleHandler gin.HandlerFunc
	ApproveHandler    gin.HandlerFunc
	DeclineHandler    gin.HandlerFunc

	// Host setup endpoints
	PutScheduleHandler  gin.HandlerFunc
	PutEventTypeHandler gin.HandlerFunc
	PutCalendarsHandler gin.HandlerFunc

	// Calendar provider endpoints
	CalendarNotificationHandler gin.HandlerFunc
}

// NewHandlerBundle wires the handler structs into a bundle.
func NewHandlerBundle(a *AvailabilityHandler, b *BookingHandler, h *HostHandler, cal *CalendarHandler) *HandlerBundle {
	return &HandlerBundle{
		GetAvailabilityHandler: a.GetAvailabilityHandler,

		ReserveHandler:    b.ReserveHandler,
		GetBookingHandler: b.GetBookingHandler,
		CancelHandler:     b.CancelHandler,
		RescheduleHandler: b.RescheduleHandler,
		ApproveHandler:    b.ApproveHandler,
		DeclineHandler:    b.DeclineHandler,

		PutScheduleHandler:  h.PutScheduleHandler,
		PutEventTypeHandler: h.PutEventTypeHandler,
		PutCalendarsHandler: h.PutCalendarsHandler,

		CalendarNotificationHandler: cal.NotificationHandler,
	}
}
