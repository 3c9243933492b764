package routes

import (
	"net/http"
	"time"

	"slotwise/handlers"
	"slotwise/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterHostRoutes registers availability and host setup endpoints.
func RegisterHostRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/hosts/:hostId")
	{
		api.GET("/availability", hb.GetAvailabilityHandler)

		api.PUT("/schedule", hb.PutScheduleHandler)
		api.PUT("/event-types/:eventTypeId", hb.PutEventTypeHandler)
		api.PUT("/calendars", hb.PutCalendarsHandler)
	}
}

// RegisterBookingRoutes sets up the endpoints for the booking engine.
func RegisterBookingRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	bookingGroup := r.Group("/api/bookings")
	{
		bookingGroup.POST("", hb.ReserveHandler)
		bookingGroup.GET("/:id", hb.GetBookingHandler)
		bookingGroup.POST("/:id/cancel", hb.CancelHandler)
		bookingGroup.POST("/:id/reschedule", hb.RescheduleHandler)
		bookingGroup.POST("/:id/approve", hb.ApproveHandler)
		bookingGroup.POST("/:id/decline", hb.DeclineHandler)
	}
}

// RegisterCalendarRoutes registers the provider push notification endpoint.
func RegisterCalendarRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.POST("/api/calendars/notifications", hb.CalendarNotificationHandler)
}

// RegisterHealthRoute registers a health-check endpoint.
func RegisterHealthRoute(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		status := utils.GetHealthStatus()
		code := http.StatusOK
		if !status.Healthy() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": http.StatusText(code), "dependencies": status})
	})
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHostRoutes(r, hb)
	RegisterBookingRoutes(r, hb)
	RegisterCalendarRoutes(r, hb)
	RegisterHealthRoute(r)
}
