package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BenWork17/Vexeviet-BE/internal/handler"
	"github.com/BenWork17/Vexeviet-BE/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance: the health check used by load balancers
// and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterBooking registers the seat and booking endpoints under /v1.
// All routes require a valid JWT.  seatCache may be nil; when set it is
// applied only to the availability listing, the one hot read path.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, seatCache echo.MiddlewareFunc) {
	g := e.Group("/v1", middleware.JWTAuth(jwtSecret))

	// seat availability and bare holds for the seat-selection step
	if seatCache != nil {
		g.GET("/routes/:id/seats", h.ListSeats, seatCache)
	} else {
		g.GET("/routes/:id/seats", h.ListSeats)
	}
	g.POST("/routes/:id/hold", h.HoldSeats)
	g.DELETE("/routes/:id/hold/:holdId", h.ReleaseHold)

	// booking lifecycle
	g.POST("/bookings", h.CreateBooking)
	g.POST("/bookings/:id/confirm", h.ConfirmBooking)
	g.DELETE("/bookings/:id", h.CancelBooking)
	g.GET("/bookings/:id", h.GetBooking)
	g.GET("/bookings/code/:code", h.GetBookingByCode)
	g.GET("/my-bookings", h.ListBookings)
}
