package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/slichti/studio-platform/internal/handler"    // import the handlers that implement business logic
	"github.com/slichti/studio-platform/internal/middleware" // import middleware for JWT authentication and role enforcement
)

// Handlers bundles every handler the API mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Classes      *handler.ClassHandler
	Appointments *handler.AppointmentHandler
	Bookings     *handler.BookingHandler
	Schedule     *handler.ScheduleHandler
	Members      *handler.MemberHandler
}

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Used by load balancers and monitoring to verify the service is up.
	e.GET("/healthz", handler.Health)
}

// RegisterAPI mounts the full API surface.  Login is public; everything
// else requires a bearer token.  Schedule mutations and attendance are
// staff-only; booking and waitlist endpoints accept both roles (members
// book themselves, staff book on a member's behalf) and additionally
// pass through the rate limiter since they absorb the rush when a
// popular class opens.
func RegisterAPI(e *echo.Echo, h Handlers, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	e.POST("/v1/auth/login", h.Auth.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(middleware.RoleStaff, middleware.RoleMember))

	// Booking and waitlist, rate limited.
	booking := auth.Group("")
	if rateLimit != nil {
		booking.Use(rateLimit)
	}
	booking.POST("/classes/:id/bookings", h.Bookings.CreateBooking)
	booking.POST("/classes/:id/waitlist", h.Bookings.JoinWaitlist)
	booking.POST("/bookings/:id/cancel", h.Bookings.CancelBooking)

	// Schedule browsing is open to both roles.
	auth.GET("/classes", h.Classes.List)
	auth.GET("/classes/:id", h.Classes.Get)
	auth.GET("/appointments/:id", h.Appointments.Get)

	// Staff-only: schedule mutations, attendance and reporting.
	staff := auth.Group("")
	staff.Use(middleware.RequireRole(middleware.RoleStaff))
	staff.POST("/staff", h.Auth.CreateStaff)
	staff.GET("/members/:id/credits", h.Members.Credits)
	staff.POST("/classes", h.Classes.Create)
	staff.PATCH("/classes/:id", h.Classes.Update)
	staff.POST("/classes/:id/cancel", h.Classes.Cancel)
	staff.GET("/classes/utilization", h.Classes.Utilization)
	staff.POST("/appointments", h.Appointments.Create)
	staff.POST("/appointments/:id/cancel", h.Appointments.Cancel)
	staff.POST("/bookings/:id/checkin", h.Bookings.CheckIn)
	staff.POST("/bookings/:id/noshow", h.Bookings.MarkNoShow)
	staff.POST("/classes/:id/checkin-all", h.Bookings.CheckInAll)
	staff.POST("/schedule/bulk-cancel", h.Schedule.BulkCancel)
	staff.POST("/schedule/bulk-update", h.Schedule.BulkUpdate)
	staff.POST("/schedule/bulk-move", h.Schedule.BulkMove)
}
