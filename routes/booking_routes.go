package routes

import (
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/gofiber/fiber/v2"
)

func BookingRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	bookings := api.Group("/bookings", cfg.protected())
	bookings.Get("/me", h.GetUserBookings)
	bookings.Post("", cfg.limit("booking"), h.CreateBooking)
	bookings.Patch("/:bookingId/status", cfg.limit("booking-status"), h.UpdateBookingStatus)
}
